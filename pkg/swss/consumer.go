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
	"time"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

const typeConsumerStateTable = "ConsumerStateTable"

// ConsumerOption configures a consumer table.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	popBatchSize *int
	priority     *int
}

// WithPopBatchSize sets the most records one Pops returns.
func WithPopBatchSize(n int) ConsumerOption {
	return func(o *consumerOptions) { o.popBatchSize = &n }
}

// WithPriority sets the priority of the table among selectables.
func WithPriority(pri int) ConsumerOption {
	return func(o *consumerOptions) { o.priority = &pri }
}

// native returns the option arguments; nil selects the native default.
func (o consumerOptions) native() (batch, pri *int32, err error) {
	if o.popBatchSize != nil {
		n, err := int32Arg(*o.popBatchSize, "pop batch size")
		if err != nil {
			return nil, nil, err
		}
		batch = &n
	}
	if o.priority != nil {
		n, err := int32Arg(*o.priority, "priority")
		if err != nil {
			return nil, nil, err
		}
		pri = &n
	}
	return batch, pri, nil
}

func applyConsumerOptions(opts []ConsumerOption) consumerOptions {
	var o consumerOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ConsumerStateTable pops the changes a ProducerStateTable writes.
type ConsumerStateTable struct {
	owner[capi.ConsumerStateTable]
	name string
}

var _ ReadinessWaiter = (*ConsumerStateTable)(nil)

// NewConsumerStateTable opens the consumer side of tableName on db. The
// table takes ownership of db.
func NewConsumerStateTable(db *DBConnector, tableName string, opts ...ConsumerOption) (*ConsumerStateTable, error) {
	batch, pri, err := applyConsumerOptions(opts).native()
	if err != nil {
		db.Close()
		return nil, err
	}
	h, err := openOn(db, tableName, func(db capi.DBConnector, name *byte, out *capi.ConsumerStateTable) capi.Result {
		return capi.ConsumerStateTableNew(db, name, batch, pri, out)
	})
	if err != nil {
		return nil, err
	}
	c := &ConsumerStateTable{
		owner: newOwner(typeConsumerStateTable, h, db, capi.ConsumerStateTableFree),
		name:  tableName,
	}
	track(c, &c.owner)
	return c, nil
}

// Name returns the table name.
func (c *ConsumerStateTable) Name() string { return c.name }

// Close releases the table and its connector.
func (c *ConsumerStateTable) Close() { c.close() }

// Pops returns the next batch of changes, oldest first.
func (c *ConsumerStateTable) Pops() ([]Record, error) {
	h, err := c.handle()
	if err != nil {
		return nil, err
	}
	return popRecords(h, capi.ConsumerStateTablePops)
}

// Fd returns a descriptor that is readable while changes are pending.
func (c *ConsumerStateTable) Fd() (int, error) {
	h, err := c.handle()
	if err != nil {
		return -1, err
	}
	return nativeFd(h, capi.ConsumerStateTableGetFd)
}

// ReadData waits up to timeout for changes; a negative timeout waits
// forever.
func (c *ConsumerStateTable) ReadData(timeout time.Duration, interruptOnSignal bool) (SelectResult, error) {
	h, err := c.handle()
	if err != nil {
		return 0, err
	}
	return nativeReadData(h, capi.ConsumerStateTableReadData, timeout, interruptOnSignal)
}

// HasData reports whether changes are pending.
func (c *ConsumerStateTable) HasData() (bool, error) {
	h, err := c.handle()
	if err != nil {
		return false, err
	}
	return nativeFlag(h, capi.ConsumerStateTableHasData)
}

// InitializedWithData reports whether changes were pending when the table
// was opened.
func (c *ConsumerStateTable) InitializedWithData() (bool, error) {
	h, err := c.handle()
	if err != nil {
		return false, err
	}
	return nativeFlag(h, capi.ConsumerStateTableInitializedWithData)
}

// PopsContext is Pops, abandoned when ctx ends.
func (c *ConsumerStateTable) PopsContext(ctx context.Context) ([]Record, error) {
	return RunBlocking(ctx, "ConsumerStateTable.Pops", c.Pops)
}

// ReadDataContext waits until changes are pending or ctx ends.
func (c *ConsumerStateTable) ReadDataContext(ctx context.Context) error {
	return readDataContext(ctx, c)
}
