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
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

const (
	typeTransportClient             = "TransportClient"
	typeTransportServer             = "TransportServer"
	typeTransportProducerStateTable = "TransportProducerStateTable"
	typeTransportConsumerStateTable = "TransportConsumerStateTable"
)

// TransportClient sends table changes to a TransportServer endpoint.
type TransportClient struct {
	owner[capi.TransportClient]
	endpoint string
}

// NewTransportClient creates a client for endpoint. The server does not
// have to be bound yet.
func NewTransportClient(endpoint string) (*TransportClient, error) {
	k := new(KeepAlive)
	defer k.Release()
	ep, err := k.cstr(endpoint)
	if err != nil {
		return nil, err
	}
	var h capi.TransportClient
	if err := check(capi.TransportClientNew(ep, &h)); err != nil {
		return nil, err
	}
	c := &TransportClient{owner: newOwner(typeTransportClient, h, nil, capi.TransportClientFree), endpoint: endpoint}
	track(c, &c.owner)
	return c, nil
}

// Endpoint returns the endpoint the client sends to.
func (c *TransportClient) Endpoint() string { return c.endpoint }

// Close releases the client.
func (c *TransportClient) Close() { c.close() }

// IsConnected reports whether the client holds a connection.
func (c *TransportClient) IsConnected() (bool, error) {
	h, err := c.handle()
	if err != nil {
		return false, err
	}
	var v int8
	err = check(capi.TransportClientIsConnected(h, &v))
	return v == 1, err
}

// Connect connects the client if it is not connected.
func (c *TransportClient) Connect() error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	return check(capi.TransportClientConnect(h))
}

// SendMsg sends records for table of db.
func (c *TransportClient) SendMsg(db, table string, records []Record) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	arr, k, err := makeKeyOpFieldValuesArray(records)
	if err != nil {
		return err
	}
	defer k.Release()
	cdb, err := k.cstr(db)
	if err != nil {
		return err
	}
	ctable, err := k.cstr(table)
	if err != nil {
		return err
	}
	return check(capi.TransportClientSendMsg(h, cdb, ctable, arr))
}

// ConnectContext is Connect, abandoned when ctx ends.
func (c *TransportClient) ConnectContext(ctx context.Context) error {
	return runBlocking(ctx, "TransportClient.Connect", c.Connect)
}

// SendMsgContext is SendMsg, abandoned when ctx ends.
func (c *TransportClient) SendMsgContext(ctx context.Context, db, table string, records []Record) error {
	return runBlocking(ctx, "TransportClient.SendMsg", func() error { return c.SendMsg(db, table, records) })
}

// TransportServer receives table changes on an endpoint and hands them to
// the TransportConsumerStateTables registered with it. It keeps each of
// them alive until it is closed itself.
type TransportServer struct {
	r        *retention
	endpoint string
	cleanup  runtime.Cleanup
}

// retention is the native server and the consumers it dispatches to.
type retention struct {
	mu     sync.Mutex
	h      capi.TransportServer
	guards []*dropGuard
}

// release frees the server, which stops dispatch, and then lets go of the
// consumers.
func (r *retention) release() {
	r.mu.Lock()
	h, guards := r.h, r.guards
	r.h, r.guards = 0, nil
	r.mu.Unlock()
	if h == 0 {
		return
	}
	freeLogged(typeTransportServer, capi.TransportServerFree(h))
	for _, g := range slices.Backward(guards) {
		g.release()
	}
}

// retain registers g; it fails once the server is closed.
func (r *retention) retain(g *dropGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.h == 0 {
		return errClosed(typeTransportServer)
	}
	r.guards = append(r.guards, g)
	return nil
}

func (r *retention) handle() (capi.TransportServer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.h == 0 {
		return 0, errClosed(typeTransportServer)
	}
	return r.h, nil
}

// NewTransportServer binds endpoint.
func NewTransportServer(endpoint string) (*TransportServer, error) {
	k := new(KeepAlive)
	defer k.Release()
	ep, err := k.cstr(endpoint)
	if err != nil {
		return nil, err
	}
	var h capi.TransportServer
	if err := check(capi.TransportServerNew(ep, &h)); err != nil {
		return nil, err
	}
	s := &TransportServer{r: &retention{h: h}, endpoint: endpoint}
	s.cleanup = runtime.AddCleanup(s, (*retention).release, s.r)
	return s, nil
}

// Endpoint returns the bound endpoint.
func (s *TransportServer) Endpoint() string { return s.endpoint }

// Retained returns the number of consumers the server keeps alive.
func (s *TransportServer) Retained() int {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return len(s.r.guards)
}

// Close stops dispatching and releases the server's hold on its
// consumers. Calling it again does nothing.
func (s *TransportServer) Close() {
	s.cleanup.Stop()
	s.r.release()
}

// TransportProducerStateTable sends the changes of a table through a
// TransportClient, optionally also writing them to the database.
type TransportProducerStateTable struct {
	owner[capi.TransportProducerStateTable]
	name   string
	client *TransportClient
}

// NewTransportProducerStateTable creates a producer for tableName that
// sends through client. With dbPersistence the changes are also written to
// db in the background. The table takes ownership of db; client must stay
// open until the table is closed.
func NewTransportProducerStateTable(db *DBConnector, tableName string, client *TransportClient, dbPersistence bool) (*TransportProducerStateTable, error) {
	ch, err := client.handle()
	if err != nil {
		db.Close()
		return nil, err
	}
	h, err := openOn(db, tableName, func(db capi.DBConnector, name *byte, out *capi.TransportProducerStateTable) capi.Result {
		return capi.TransportProducerStateTableNew(db, name, ch, boolArg(dbPersistence), out)
	})
	if err != nil {
		return nil, err
	}
	p := &TransportProducerStateTable{
		owner:  newOwner(typeTransportProducerStateTable, h, db, capi.TransportProducerStateTableFree),
		name:   tableName,
		client: client,
	}
	track(p, &p.owner)
	return p, nil
}

// Name returns the table name.
func (p *TransportProducerStateTable) Name() string { return p.name }

// Close waits for pending database writes and releases the table and its
// connector.
func (p *TransportProducerStateTable) Close() { p.close() }

// Set sends fields for key.
func (p *TransportProducerStateTable) Set(key string, fields FieldSeq) error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	arr, k, err := makeFieldValueArray(fields)
	if err != nil {
		return err
	}
	defer k.Release()
	ck, err := k.cstr(key)
	if err != nil {
		return err
	}
	return check(capi.TransportProducerStateTableSet(h, ck, arr))
}

// Del sends a delete of key.
func (p *TransportProducerStateTable) Del(key string) error {
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
	return check(capi.TransportProducerStateTableDel(h, ck))
}

// Push sends r with Set or Del.
func (p *TransportProducerStateTable) Push(r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Operation == OpDel {
		return p.Del(r.Key)
	}
	return p.Set(r.Key, r.Fields.All())
}

// DBUpdaterQueueSize returns the number of changes not yet written to the
// database.
func (p *TransportProducerStateTable) DBUpdaterQueueSize() (uint64, error) {
	h, err := p.handle()
	if err != nil {
		return 0, err
	}
	var n uint64
	err = check(capi.TransportProducerStateTableDBUpdaterQueueSize(h, &n))
	return n, err
}

// SetContext is Set, abandoned when ctx ends.
func (p *TransportProducerStateTable) SetContext(ctx context.Context, key string, fields FieldSeq) error {
	return runBlocking(ctx, "TransportProducerStateTable.Set", func() error { return p.Set(key, fields) })
}

// DelContext is Del, abandoned when ctx ends.
func (p *TransportProducerStateTable) DelContext(ctx context.Context, key string) error {
	return runBlocking(ctx, "TransportProducerStateTable.Del", func() error { return p.Del(key) })
}

// TransportConsumerStateTable receives the changes of a table from a
// TransportServer. The server holds a reference to it, so its native
// object outlives Close until the server is closed as well.
type TransportConsumerStateTable struct {
	mu      sync.Mutex
	h       capi.TransportConsumerStateTable
	guard   *dropGuard
	name    string
	cleanup runtime.Cleanup
}

var _ ReadinessWaiter = (*TransportConsumerStateTable)(nil)

// NewTransportConsumerStateTable registers a consumer for tableName with
// server. The table takes ownership of db.
func NewTransportConsumerStateTable(db *DBConnector, tableName string, server *TransportServer, opts ...ConsumerOption) (*TransportConsumerStateTable, error) {
	batch, pri, err := applyConsumerOptions(opts).native()
	if err != nil {
		db.Close()
		return nil, err
	}
	sh, err := server.r.handle()
	if err != nil {
		db.Close()
		return nil, err
	}
	h, err := openOn(db, tableName, func(db capi.DBConnector, name *byte, out *capi.TransportConsumerStateTable) capi.Result {
		return capi.TransportConsumerStateTableNew(db, name, sh, batch, pri, out)
	})
	if err != nil {
		return nil, err
	}
	dbh := db.detach()
	g := newDropGuard(func() {
		freeLogged(typeTransportConsumerStateTable, capi.TransportConsumerStateTableFree(h))
		freeDBConnector(dbh)
	})
	if err := server.r.retain(g.acquire()); err != nil {
		// The server was closed concurrently and no longer calls it.
		g.release()
		g.release()
		return nil, err
	}
	t := &TransportConsumerStateTable{h: h, guard: g, name: tableName}
	t.cleanup = runtime.AddCleanup(t, (*dropGuard).release, g)
	return t, nil
}

// Name returns the table name.
func (t *TransportConsumerStateTable) Name() string { return t.name }

// Close releases the table's reference to the native consumer. Calling it
// again does nothing.
func (t *TransportConsumerStateTable) Close() {
	t.mu.Lock()
	g := t.guard
	t.guard, t.h = nil, 0
	t.mu.Unlock()
	if g == nil {
		return
	}
	t.cleanup.Stop()
	g.release()
}

func (t *TransportConsumerStateTable) handle() (capi.TransportConsumerStateTable, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.h == 0 {
		return 0, errClosed(typeTransportConsumerStateTable)
	}
	return t.h, nil
}

// Pops returns the next batch of received changes.
func (t *TransportConsumerStateTable) Pops() ([]Record, error) {
	h, err := t.handle()
	if err != nil {
		return nil, err
	}
	return popRecords(h, capi.TransportConsumerStateTablePops)
}

// Fd returns a descriptor that is readable while changes are pending.
func (t *TransportConsumerStateTable) Fd() (int, error) {
	h, err := t.handle()
	if err != nil {
		return -1, err
	}
	return nativeFd(h, capi.TransportConsumerStateTableGetFd)
}

// ReadData waits up to timeout for changes; a negative timeout waits
// forever.
func (t *TransportConsumerStateTable) ReadData(timeout time.Duration, interruptOnSignal bool) (SelectResult, error) {
	h, err := t.handle()
	if err != nil {
		return 0, err
	}
	return nativeReadData(h, capi.TransportConsumerStateTableReadData, timeout, interruptOnSignal)
}

// HasData reports whether changes are pending.
func (t *TransportConsumerStateTable) HasData() (bool, error) {
	h, err := t.handle()
	if err != nil {
		return false, err
	}
	return nativeFlag(h, capi.TransportConsumerStateTableHasData)
}

// HasCachedData reports whether more changes remain after the last Pops.
func (t *TransportConsumerStateTable) HasCachedData() (bool, error) {
	h, err := t.handle()
	if err != nil {
		return false, err
	}
	return nativeFlag(h, capi.TransportConsumerStateTableHasCachedData)
}

// InitializedWithData reports whether changes were pending when the table
// was created.
func (t *TransportConsumerStateTable) InitializedWithData() (bool, error) {
	h, err := t.handle()
	if err != nil {
		return false, err
	}
	return nativeFlag(h, capi.TransportConsumerStateTableInitializedWithData)
}

// PopsContext is Pops, abandoned when ctx ends.
func (t *TransportConsumerStateTable) PopsContext(ctx context.Context) ([]Record, error) {
	return RunBlocking(ctx, "TransportConsumerStateTable.Pops", t.Pops)
}

// ReadDataContext waits until changes are pending or ctx ends.
func (t *TransportConsumerStateTable) ReadDataContext(ctx context.Context) error {
	return readDataContext(ctx, t)
}
