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

package swss

import (
	"context"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

const typeProducerStateTable = "ProducerStateTable"

// ProducerStateTable writes changes of a table for its consumers.
type ProducerStateTable struct {
	owner[capi.ProducerStateTable]
	name string
}

// NewProducerStateTable opens the producer side of tableName on db. The
// table takes ownership of db.
func NewProducerStateTable(db *DBConnector, tableName string) (*ProducerStateTable, error) {
	h, err := openOn(db, tableName, capi.ProducerStateTableNew)
	if err != nil {
		return nil, err
	}
	p := &ProducerStateTable{
		owner: newOwner(typeProducerStateTable, h, db, capi.ProducerStateTableFree),
		name:  tableName,
	}
	track(p, &p.owner)
	return p, nil
}

// Name returns the table name.
func (p *ProducerStateTable) Name() string { return p.name }

// Close releases the table and its connector.
func (p *ProducerStateTable) Close() { p.close() }

// SetBuffered turns buffering of writes until Flush on or off.
func (p *ProducerStateTable) SetBuffered(buffered bool) error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	return check(capi.ProducerStateTableSetBuffered(h, boolArg(buffered)))
}

// Set writes fields to key.
func (p *ProducerStateTable) Set(key string, fields FieldSeq) error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	arr, ka, err := makeFieldValueArray(fields)
	if err != nil {
		return err
	}
	defer ka.Release()
	ck, err := ka.cstr(key)
	if err != nil {
		return err
	}
	return check(capi.ProducerStateTableSet(h, ck, arr))
}

// Del deletes key.
func (p *ProducerStateTable) Del(key string) error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	k := new(KeepAlive)
	defer k.Release()
	ck, err := k.cstr(key)
	if err != nil {
		return err
	}
	return check(capi.ProducerStateTableDel(h, ck))
}

// Push writes r with Set or Del.
func (p *ProducerStateTable) Push(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Operation == OpDel {
		return p.Del(r.Key)
	}
	return p.Set(r.Key, r.Fields.All())
}

// Flush sends buffered writes.
func (p *ProducerStateTable) Flush() error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	return check(capi.ProducerStateTableFlush(h))
}

// Count returns the number of keys not yet consumed.
func (p *ProducerStateTable) Count() (int64, error) {
	h, err := p.handle()
	if err != nil {
		return 0, err
	}
	var n int64
	err = check(capi.ProducerStateTableCount(h, &n))
	return n, err
}

// Clear drops every pending change.
func (p *ProducerStateTable) Clear() error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	return check(capi.ProducerStateTableClear(h))
}

// CreateTempView starts collecting writes into a view that replaces the
// whole table on ApplyTempView.
func (p *ProducerStateTable) CreateTempView() error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	return check(capi.ProducerStateTableCreateTempView(h))
}

// ApplyTempView replaces the table with the view, emitting the difference.
func (p *ProducerStateTable) ApplyTempView() error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	return check(capi.ProducerStateTableApplyTempView(h))
}

// SetContext is Set, abandoned when ctx ends.
func (p *ProducerStateTable) SetContext(ctx context.Context, key string, fields FieldSeq) error {
	return runBlocking(ctx, "ProducerStateTable.Set", func() error { return p.Set(key, fields) })
}

// DelContext is Del, abandoned when ctx ends.
func (p *ProducerStateTable) DelContext(ctx context.Context, key string) error {
	return runBlocking(ctx, "ProducerStateTable.Del", func() error { return p.Del(key) })
}

// FlushContext is Flush, abandoned when ctx ends.
func (p *ProducerStateTable) FlushContext(ctx context.Context) error {
	return runBlocking(ctx, "ProducerStateTable.Flush", p.Flush)
}
