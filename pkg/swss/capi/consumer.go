// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package capi

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/selectable"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

const (
	typeConsumerStateTable = "ConsumerStateTable"

	// DefaultPopBatchSize is used when no batch size is given.
	DefaultPopBatchSize = 128
	// maxPopPerCall bounds the keys moved by one pop script.
	maxPopPerCall = 1024
)

// ConsumerStateTable pops the changes written by producer state tables.
type ConsumerStateTable uint64

type consumerStateTable struct {
	db        *dbConnector
	name      string
	keys      store.StateKeys
	batch     int
	pri       int
	initData  bool
	ev        *selectable.Event
	sub       store.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

func batchSize(p *int32) int {
	if p == nil || *p <= 0 {
		return DefaultPopBatchSize
	}
	return int(*p)
}

func priority(p *int32) int {
	if p == nil {
		return 0
	}
	return int(*p)
}

// timeoutDuration converts a native timeout; InfiniteTimeout blocks.
func timeoutDuration(ms uint32) time.Duration {
	if ms == InfiniteTimeout {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

func selectResult(r selectable.Result) SelectResult {
	switch r {
	case selectable.Data:
		return SelectResultData
	case selectable.Signal:
		return SelectResultSignal
	default:
		return SelectResultTimeout
	}
}

// ConsumerStateTableNew opens the consumer side of tableName over db. Nil
// popBatchSize or pri select the defaults.
func ConsumerStateTableNew(db DBConnector, tableName *byte, popBatchSize, pri *int32, out *ConsumerStateTable) Result {
	return try("ConsumerStateTableNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		c, err := getObject[dbConnector](typeDBConnector, uint64(db))
		if err != nil {
			return err
		}
		t, err := newConsumerStateTable(c, GoString(tableName), batchSize(popBatchSize), priority(pri))
		if err != nil {
			return err
		}
		*out = ConsumerStateTable(newHandle(typeConsumerStateTable, t))
		return nil
	})
}

func newConsumerStateTable(c *dbConnector, name string, batch, pri int) (*consumerStateTable, error) {
	ctx := context.Background()
	t := &consumerStateTable{
		db:    c,
		name:  name,
		keys:  store.NewStateKeys(name, c.sep, c.opts.DB),
		batch: batch,
		pri:   pri,
		done:  make(chan struct{}),
	}
	ev, err := selectable.NewEvent()
	if err != nil {
		return nil, err
	}
	t.ev = ev
	sub, err := c.st.Subscribe(ctx, t.keys.Channel)
	if err != nil {
		_ = ev.Close()
		return nil, err
	}
	t.sub = sub

	n, err := c.st.SCard(ctx, t.keys.KeySet)
	if err != nil {
		_ = t.close()
		return nil, err
	}
	if n > 0 {
		t.initData = true
		if err := ev.Notify(); err != nil {
			_ = t.close()
			return nil, err
		}
	}
	go t.watch()
	return t, nil
}

func (t *consumerStateTable) watch() {
	for {
		select {
		case <-t.done:
			return
		case _, ok := <-t.sub.Messages():
			if !ok {
				return
			}
			if err := t.ev.Notify(); err != nil {
				log().Warn("consumer state table notify failed", zap.String("table", t.name), zap.Error(err))
			}
		}
	}
}

func (t *consumerStateTable) close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.sub.Close()
		if cerr := t.ev.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

func (t *consumerStateTable) pops(ctx context.Context) ([]entry, error) {
	var out []entry
	for remaining := t.batch; remaining > 0; {
		n := min(remaining, maxPopPerCall)
		got, err := t.db.st.ConsumerPop(ctx, t.keys, n)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
		if len(got) < n {
			break
		}
		remaining -= len(got)
	}
	// Keys left behind by a full batch must be reported by the next wait.
	if len(out) >= t.batch {
		if left, err := t.db.st.SCard(ctx, t.keys.KeySet); err == nil && left > 0 {
			_ = t.ev.Notify()
		}
	}
	return out, nil
}

// ConsumerStateTableFree releases tbl.
func ConsumerStateTableFree(tbl ConsumerStateTable) Result {
	return try("ConsumerStateTableFree", func() error {
		t, err := dropHandle[consumerStateTable](typeConsumerStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		return t.close()
	})
}

func withConsumer(location string, tbl ConsumerStateTable, f func(ctx context.Context, t *consumerStateTable) error) Result {
	return try(location, func() error {
		t, err := getObject[consumerStateTable](typeConsumerStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		return f(context.Background(), t)
	})
}

// ConsumerStateTablePops moves up to the batch size of pending changes
// into the table and returns them.
func ConsumerStateTablePops(tbl ConsumerStateTable, outArr *KeyOpFieldValuesArray) Result {
	return withConsumer("ConsumerStateTablePops", tbl, func(ctx context.Context, t *consumerStateTable) error {
		if err := checkOut(outArr); err != nil {
			return err
		}
		entries, err := t.pops(ctx)
		if err != nil {
			return err
		}
		*outArr = makeKeyOpFieldValuesArray(entries)
		return nil
	})
}

// ConsumerStateTableGetFd stores the descriptor that becomes readable when
// changes are pending.
func ConsumerStateTableGetFd(tbl ConsumerStateTable, outFd *uint32) Result {
	return withConsumer("ConsumerStateTableGetFd", tbl, func(_ context.Context, t *consumerStateTable) error {
		if err := checkOut(outFd); err != nil {
			return err
		}
		*outFd = uint32(t.ev.Fd())
		return nil
	})
}

// ConsumerStateTableReadData waits up to timeoutMs for pending changes.
func ConsumerStateTableReadData(tbl ConsumerStateTable, timeoutMs uint32, interruptOnSignal uint8, outResult *SelectResult) Result {
	return withConsumer("ConsumerStateTableReadData", tbl, func(_ context.Context, t *consumerStateTable) error {
		if err := checkOut(outResult); err != nil {
			return err
		}
		r, err := t.ev.Wait(timeoutDuration(timeoutMs), interruptOnSignal != 0)
		if err != nil {
			return err
		}
		*outResult = selectResult(r)
		return nil
	})
}

// ConsumerStateTableHasData stores 1 when changes are pending.
func ConsumerStateTableHasData(tbl ConsumerStateTable, outHasData *uint8) Result {
	return withConsumer("ConsumerStateTableHasData", tbl, func(ctx context.Context, t *consumerStateTable) error {
		if err := checkOut(outHasData); err != nil {
			return err
		}
		n, err := t.db.st.SCard(ctx, t.keys.KeySet)
		if err != nil {
			return err
		}
		*outHasData = boolByte(n > 0)
		return nil
	})
}

// ConsumerStateTableInitializedWithData stores 1 when changes were pending
// when tbl was opened.
func ConsumerStateTableInitializedWithData(tbl ConsumerStateTable, out *uint8) Result {
	return withConsumer("ConsumerStateTableInitializedWithData", tbl, func(_ context.Context, t *consumerStateTable) error {
		if err := checkOut(out); err != nil {
			return err
		}
		*out = boolByte(t.initData)
		return nil
	})
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
