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

const typeSubscriberStateTable = "SubscriberStateTable"

// SubscriberStateTable follows the contents of a table through keyspace
// notifications. The first Pops returns the existing entries.
type SubscriberStateTable struct {
	owner[capi.SubscriberStateTable]
	name string
}

var _ ReadinessWaiter = (*SubscriberStateTable)(nil)

// NewSubscriberStateTable subscribes to tableName on db. The table takes
// ownership of db.
func NewSubscriberStateTable(db *DBConnector, tableName string, opts ...ConsumerOption) (*SubscriberStateTable, error) {
	batch, pri, err := applyConsumerOptions(opts).native()
	if err != nil {
		db.Close()
		return nil, err
	}
	h, err := openOn(db, tableName, func(db capi.DBConnector, name *byte, out *capi.SubscriberStateTable) capi.Result {
		return capi.SubscriberStateTableNew(db, name, batch, pri, out)
	})
	if err != nil {
		return nil, err
	}
	s := &SubscriberStateTable{
		owner: newOwner(typeSubscriberStateTable, h, db, capi.SubscriberStateTableFree),
		name:  tableName,
	}
	track(s, &s.owner)
	return s, nil
}

// Name returns the table name.
func (s *SubscriberStateTable) Name() string { return s.name }

// Close releases the subscription and its connector.
func (s *SubscriberStateTable) Close() { s.close() }

// Pops returns the next batch of changes.
func (s *SubscriberStateTable) Pops() ([]Record, error) {
	h, err := s.handle()
	if err != nil {
		return nil, err
	}
	return popRecords(h, capi.SubscriberStateTablePops)
}

// Fd returns a descriptor that is readable while changes are pending.
func (s *SubscriberStateTable) Fd() (int, error) {
	h, err := s.handle()
	if err != nil {
		return -1, err
	}
	return nativeFd(h, capi.SubscriberStateTableGetFd)
}

// ReadData waits up to timeout for changes; a negative timeout waits
// forever.
func (s *SubscriberStateTable) ReadData(timeout time.Duration, interruptOnSignal bool) (SelectResult, error) {
	h, err := s.handle()
	if err != nil {
		return 0, err
	}
	return nativeReadData(h, capi.SubscriberStateTableReadData, timeout, interruptOnSignal)
}

// PopsContext is Pops, abandoned when ctx ends.
func (s *SubscriberStateTable) PopsContext(ctx context.Context) ([]Record, error) {
	return RunBlocking(ctx, "SubscriberStateTable.Pops", s.Pops)
}

// ReadDataContext waits until changes are pending or ctx ends.
func (s *SubscriberStateTable) ReadDataContext(ctx context.Context) error {
	return readDataContext(ctx, s)
}
