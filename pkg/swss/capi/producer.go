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
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

const typeProducerStateTable = "ProducerStateTable"

// ProducerStateTable writes pending changes that a consumer state table
// pops.
type ProducerStateTable uint64

type producerStateTable struct {
	db   *dbConnector
	name string
	keys store.StateKeys

	mu       sync.Mutex
	buffered bool
	pending  []entry
	// view is non-nil while a temporary view is being built.
	view map[string][]fieldValue
}

// ProducerStateTableNew opens the producer side of tableName over db.
func ProducerStateTableNew(db DBConnector, tableName *byte, out *ProducerStateTable) Result {
	return try("ProducerStateTableNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		c, err := getObject[dbConnector](typeDBConnector, uint64(db))
		if err != nil {
			return err
		}
		name := GoString(tableName)
		p := &producerStateTable{db: c, name: name, keys: store.NewStateKeys(name, c.sep, c.opts.DB)}
		*out = ProducerStateTable(newHandle(typeProducerStateTable, p))
		return nil
	})
}

// ProducerStateTableFree releases tbl. Buffered changes not yet flushed are
// discarded.
func ProducerStateTableFree(tbl ProducerStateTable) Result {
	return try("ProducerStateTableFree", func() error {
		_, err := dropHandle[producerStateTable](typeProducerStateTable, uint64(tbl))
		return err
	})
}

func withProducer(location string, tbl ProducerStateTable, f func(ctx context.Context, p *producerStateTable) error) Result {
	return try(location, func() error {
		p, err := getObject[producerStateTable](typeProducerStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		return f(context.Background(), p)
	})
}

// ProducerStateTableSetBuffered makes set and del queue until flush.
// Turning buffering off flushes.
func ProducerStateTableSetBuffered(tbl ProducerStateTable, buffered uint8) Result {
	return withProducer("ProducerStateTableSetBuffered", tbl, func(ctx context.Context, p *producerStateTable) error {
		p.buffered = buffered != 0
		if !p.buffered {
			return p.flushLocked(ctx)
		}
		return nil
	})
}

// ProducerStateTableSet records a pending set of key. The value strings are
// moved out.
func ProducerStateTableSet(tbl ProducerStateTable, key *byte, values FieldValueArray) Result {
	return withProducer("ProducerStateTableSet", tbl, func(ctx context.Context, p *producerStateTable) error {
		return p.apply(ctx, entry{Key: GoString(key), Fields: readFieldValueArray(values)})
	})
}

// ProducerStateTableDel records a pending delete of key.
func ProducerStateTableDel(tbl ProducerStateTable, key *byte) Result {
	return withProducer("ProducerStateTableDel", tbl, func(ctx context.Context, p *producerStateTable) error {
		return p.apply(ctx, entry{Key: GoString(key), Del: true})
	})
}

// ProducerStateTableFlush writes buffered changes.
func ProducerStateTableFlush(tbl ProducerStateTable) Result {
	return withProducer("ProducerStateTableFlush", tbl, func(ctx context.Context, p *producerStateTable) error {
		return p.flushLocked(ctx)
	})
}

// ProducerStateTableCount stores the number of keys with pending changes.
func ProducerStateTableCount(tbl ProducerStateTable, outCount *int64) Result {
	return withProducer("ProducerStateTableCount", tbl, func(ctx context.Context, p *producerStateTable) error {
		if err := checkOut(outCount); err != nil {
			return err
		}
		n, err := p.db.st.SCard(ctx, p.keys.KeySet)
		if err != nil {
			return err
		}
		*outCount = n
		return nil
	})
}

// ProducerStateTableClear drops every pending change.
func ProducerStateTableClear(tbl ProducerStateTable) Result {
	return withProducer("ProducerStateTableClear", tbl, func(ctx context.Context, p *producerStateTable) error {
		p.pending = nil
		temps, err := tableKeys(ctx, p.db, p.keys.StatePrefix+p.keys.TablePrefix)
		if err != nil {
			return err
		}
		del := []string{p.keys.KeySet, p.keys.DelSet}
		for _, k := range temps {
			del = append(del, p.keys.TempKey(k))
		}
		_, err = p.db.st.Del(ctx, del...)
		return err
	})
}

// ProducerStateTableCreateTempView starts collecting changes into a
// temporary view instead of writing them.
func ProducerStateTableCreateTempView(tbl ProducerStateTable) Result {
	return withProducer("ProducerStateTableCreateTempView", tbl, func(_ context.Context, p *producerStateTable) error {
		p.view = map[string][]fieldValue{}
		return nil
	})
}

var errNoTempView = errors.New("no temporary view was created")

// ProducerStateTableApplyTempView makes the table match the temporary
// view: keys absent from the view are deleted and keys whose content
// differs are set.
func ProducerStateTableApplyTempView(tbl ProducerStateTable) Result {
	return withProducer("ProducerStateTableApplyTempView", tbl, func(ctx context.Context, p *producerStateTable) error {
		if p.view == nil {
			return errNoTempView
		}
		view := p.view
		p.view = nil

		current, err := tableKeys(ctx, p.db, p.keys.TablePrefix)
		if err != nil {
			return err
		}
		for _, k := range current {
			if _, ok := view[k]; !ok {
				if err := p.apply(ctx, entry{Key: k, Del: true}); err != nil {
					return err
				}
			}
		}
		for _, k := range slices.Sorted(maps.Keys(view)) {
			have, err := p.db.st.HGetAll(ctx, p.keys.TableKey(k))
			if err != nil {
				return err
			}
			want := view[k]
			if sameFields(have, want) {
				continue
			}
			if err := p.apply(ctx, entry{Key: k, Fields: want}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *producerStateTable) apply(ctx context.Context, e entry) error {
	if p.view != nil {
		if e.Del {
			delete(p.view, e.Key)
		} else {
			p.view[e.Key] = mergeFields(p.view[e.Key], e.Fields)
		}
		return nil
	}
	if p.buffered {
		p.pending = append(p.pending, e)
		return nil
	}
	return p.write(ctx, e)
}

func (p *producerStateTable) write(ctx context.Context, e entry) error {
	if e.Del {
		return p.db.st.ProducerDel(ctx, p.keys, e.Key)
	}
	return p.db.st.ProducerSet(ctx, p.keys, e.Key, e.Fields)
}

func (p *producerStateTable) flushLocked(ctx context.Context) error {
	pending := p.pending
	p.pending = nil
	for i, e := range pending {
		if err := p.write(ctx, e); err != nil {
			p.pending = pending[i:]
			return err
		}
	}
	return nil
}

func mergeFields(base, update []fieldValue) []fieldValue {
	out := slices.Clone(base)
	for _, fv := range update {
		i := slices.IndexFunc(out, func(o fieldValue) bool { return o.Field == fv.Field })
		if i >= 0 {
			out[i] = fv
		} else {
			out = append(out, fv)
		}
	}
	return out
}

func sameFields(a, b []fieldValue) bool {
	if len(a) != len(b) {
		return false
	}
	m := make(map[string]string, len(a))
	for _, fv := range a {
		m[fv.Field] = fv.Value
	}
	for _, fv := range b {
		if v, ok := m[fv.Field]; !ok || v != fv.Value {
			return false
		}
	}
	return true
}
