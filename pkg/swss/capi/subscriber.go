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
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/selectable"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

const typeSubscriberStateTable = "SubscriberStateTable"

// SubscriberStateTable reports changes to a plain table through keyspace
// notifications. The first pops return the table's existing content.
type SubscriberStateTable uint64

type keyEvent struct {
	key string
	del bool
}

type subscriberStateTable struct {
	db      *dbConnector
	name    string
	prefix  string
	channel string
	batch   int
	pri     int
	ev      *selectable.Event
	sub     store.Subscription
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	events []keyEvent
}

func keyspacePrefix(db int) string {
	return fmt.Sprintf("__keyspace@%d__:", db)
}

// SubscriberStateTableNew subscribes to tableName over db. Nil popBatchSize
// or pri select the defaults.
func SubscriberStateTableNew(db DBConnector, tableName *byte, popBatchSize, pri *int32, out *SubscriberStateTable) Result {
	return try("SubscriberStateTableNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		c, err := getObject[dbConnector](typeDBConnector, uint64(db))
		if err != nil {
			return err
		}
		t, err := newSubscriberStateTable(c, GoString(tableName), batchSize(popBatchSize), priority(pri))
		if err != nil {
			return err
		}
		*out = SubscriberStateTable(newHandle(typeSubscriberStateTable, t))
		return nil
	})
}

func newSubscriberStateTable(c *dbConnector, name string, batch, pri int) (*subscriberStateTable, error) {
	ctx := context.Background()
	t := &subscriberStateTable{
		db:      c,
		name:    name,
		prefix:  name + c.sep,
		channel: keyspacePrefix(c.opts.DB),
		batch:   batch,
		pri:     pri,
		done:    make(chan struct{}),
	}
	ev, err := selectable.NewEvent()
	if err != nil {
		return nil, err
	}
	t.ev = ev
	// Subscribe before listing so no change between the two is lost.
	sub, err := c.st.PSubscribe(ctx, t.channel+escapeGlob(t.prefix)+"*")
	if err != nil {
		_ = ev.Close()
		return nil, err
	}
	t.sub = sub

	existing, err := tableKeys(ctx, c, t.prefix)
	if err != nil {
		_ = t.close()
		return nil, err
	}
	for _, k := range existing {
		t.events = append(t.events, keyEvent{key: k})
	}
	if len(t.events) > 0 {
		if err := ev.Notify(); err != nil {
			_ = t.close()
			return nil, err
		}
	}
	go t.watch()
	return t, nil
}

func (t *subscriberStateTable) watch() {
	for {
		select {
		case <-t.done:
			return
		case m, ok := <-t.sub.Messages():
			if !ok {
				return
			}
			key, ok := strings.CutPrefix(m.Channel, t.channel+t.prefix)
			if !ok {
				continue
			}
			switch m.Payload {
			case "del", "expired", "evicted":
				t.push(keyEvent{key: key, del: true})
			case "hset", "hdel", "hmset", "hincrby", "hincrbyfloat", "hsetnx":
				t.push(keyEvent{key: key})
			}
		}
	}
}

func (t *subscriberStateTable) push(e keyEvent) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
	if err := t.ev.Notify(); err != nil {
		log().Warn("subscriber state table notify failed", zap.String("table", t.name), zap.Error(err))
	}
}

func (t *subscriberStateTable) pops(ctx context.Context) ([]entry, error) {
	t.mu.Lock()
	n := min(len(t.events), t.batch)
	events := t.events[:n:n]
	t.events = t.events[n:]
	left := len(t.events)
	t.mu.Unlock()

	out := make([]entry, 0, len(events))
	for _, e := range events {
		if e.del {
			out = append(out, entry{Key: e.key, Del: true})
			continue
		}
		fvs, err := t.db.st.HGetAll(ctx, t.prefix+e.key)
		if err != nil {
			return nil, err
		}
		// The hash may be gone by the time it is read.
		out = append(out, entry{Key: e.key, Del: len(fvs) == 0, Fields: fvs})
	}
	if left > 0 {
		_ = t.ev.Notify()
	}
	return out, nil
}

func (t *subscriberStateTable) close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.sub.Close()
		if cerr := t.ev.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// SubscriberStateTableFree releases tbl.
func SubscriberStateTableFree(tbl SubscriberStateTable) Result {
	return try("SubscriberStateTableFree", func() error {
		t, err := dropHandle[subscriberStateTable](typeSubscriberStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		return t.close()
	})
}

func withSubscriber(location string, tbl SubscriberStateTable, f func(ctx context.Context, t *subscriberStateTable) error) Result {
	return try(location, func() error {
		t, err := getObject[subscriberStateTable](typeSubscriberStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		return f(context.Background(), t)
	})
}

// SubscriberStateTablePops returns up to the batch size of changes.
func SubscriberStateTablePops(tbl SubscriberStateTable, outArr *KeyOpFieldValuesArray) Result {
	return withSubscriber("SubscriberStateTablePops", tbl, func(ctx context.Context, t *subscriberStateTable) error {
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

// SubscriberStateTableGetFd stores the descriptor that becomes readable
// when changes are queued.
func SubscriberStateTableGetFd(tbl SubscriberStateTable, outFd *uint32) Result {
	return withSubscriber("SubscriberStateTableGetFd", tbl, func(_ context.Context, t *subscriberStateTable) error {
		if err := checkOut(outFd); err != nil {
			return err
		}
		*outFd = uint32(t.ev.Fd())
		return nil
	})
}

// SubscriberStateTableReadData waits up to timeoutMs for changes.
func SubscriberStateTableReadData(tbl SubscriberStateTable, timeoutMs uint32, interruptOnSignal uint8, outResult *SelectResult) Result {
	return withSubscriber("SubscriberStateTableReadData", tbl, func(_ context.Context, t *subscriberStateTable) error {
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
