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
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/selectable"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/transport"
)

const (
	typeTransportClient             = "TransportClient"
	typeTransportServer             = "TransportServer"
	typeTransportProducerStateTable = "TransportProducerStateTable"
	typeTransportConsumerStateTable = "TransportConsumerStateTable"

	dbUpdaterQueueDepth = 4096
)

// TransportClient sends keyed changes to a TransportServer.
type TransportClient uint64

// TransportServer receives keyed changes and dispatches them to the
// transport consumer state tables registered with it.
type TransportServer uint64

// TransportProducerStateTable sends changes through a TransportClient.
type TransportProducerStateTable uint64

// TransportConsumerStateTable queues changes delivered by a
// TransportServer.
type TransportConsumerStateTable uint64

func toTransportEntries(entries []entry) []transport.Entry {
	out := make([]transport.Entry, 0, len(entries))
	for _, e := range entries {
		te := transport.Entry{Key: e.Key, Op: transport.OpSet}
		if e.Del {
			te.Op = transport.OpDel
		}
		for _, fv := range e.Fields {
			te.Fields = append(te.Fields, transport.FieldValue{Field: fv.Field, Value: []byte(fv.Value)})
		}
		out = append(out, te)
	}
	return out
}

func fromTransportEntries(entries []transport.Entry) []entry {
	out := make([]entry, 0, len(entries))
	for _, te := range entries {
		e := entry{Key: te.Key, Del: te.Op == transport.OpDel}
		for _, fv := range te.Fields {
			e.Fields = append(e.Fields, fieldValue{Field: fv.Field, Value: string(fv.Value)})
		}
		out = append(out, e)
	}
	return out
}

// TransportClientNew creates a client for endpoint. The server does not
// need to be up yet.
func TransportClientNew(endpoint *byte, out *TransportClient) Result {
	return try("TransportClientNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		c, err := transport.NewClient(GoString(endpoint))
		if err != nil {
			return err
		}
		*out = TransportClient(newHandle(typeTransportClient, c))
		return nil
	})
}

// TransportClientFree closes c.
func TransportClientFree(c TransportClient) Result {
	return try("TransportClientFree", func() error {
		cl, err := dropHandle[transport.Client](typeTransportClient, uint64(c))
		if err != nil {
			return err
		}
		return cl.Close()
	})
}

func withClient(location string, c TransportClient, f func(cl *transport.Client) error) Result {
	return try(location, func() error {
		cl, err := getObject[transport.Client](typeTransportClient, uint64(c))
		if err != nil {
			return err
		}
		return f(cl)
	})
}

// TransportClientIsConnected stores 1 when c holds a connection.
func TransportClientIsConnected(c TransportClient, outIsConnected *int8) Result {
	return withClient("TransportClientIsConnected", c, func(cl *transport.Client) error {
		if err := checkOut(outIsConnected); err != nil {
			return err
		}
		putBool(outIsConnected, cl.IsConnected())
		return nil
	})
}

// TransportClientConnect connects c if it is not connected.
func TransportClientConnect(c TransportClient) Result {
	return withClient("TransportClientConnect", c, func(cl *transport.Client) error {
		return cl.Connect()
	})
}

// TransportClientSendMsg sends kcos for dbName/tableName. The value strings
// are moved out.
func TransportClientSendMsg(c TransportClient, dbName, tableName *byte, kcos KeyOpFieldValuesArray) Result {
	return withClient("TransportClientSendMsg", c, func(cl *transport.Client) error {
		return cl.SendMsg(GoString(dbName), GoString(tableName), toTransportEntries(readKeyOpFieldValuesArray(kcos)))
	})
}

// TransportServerNew binds endpoint.
func TransportServerNew(endpoint *byte, out *TransportServer) Result {
	return try("TransportServerNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		s, err := transport.NewServer(GoString(endpoint))
		if err != nil {
			return err
		}
		*out = TransportServer(newHandle(typeTransportServer, s))
		return nil
	})
}

// TransportServerFree stops dispatching and closes s. Once it returns no
// registered table is called again.
func TransportServerFree(s TransportServer) Result {
	return try("TransportServerFree", func() error {
		srv, err := dropHandle[transport.Server](typeTransportServer, uint64(s))
		if err != nil {
			return err
		}
		return srv.Close()
	})
}

type transportProducer struct {
	db     *dbConnector
	name   string
	client *transport.Client

	updates chan entry
	queued  atomic.Int64
	stopped chan struct{}
	tbl     *table
}

// TransportProducerStateTableNew creates a producer sending tableName
// changes through c. With dbPersistence the changes are also written to
// the table in db by a background updater.
func TransportProducerStateTableNew(db DBConnector, tableName *byte, c TransportClient, dbPersistence uint8, out *TransportProducerStateTable) Result {
	return try("TransportProducerStateTableNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		conn, err := getObject[dbConnector](typeDBConnector, uint64(db))
		if err != nil {
			return err
		}
		cl, err := getObject[transport.Client](typeTransportClient, uint64(c))
		if err != nil {
			return err
		}
		p := &transportProducer{db: conn, name: GoString(tableName), client: cl}
		if dbPersistence != 0 {
			p.tbl = &table{db: conn, name: p.name}
			p.updates = make(chan entry, dbUpdaterQueueDepth)
			p.stopped = make(chan struct{})
			go p.updateDB()
		}
		*out = TransportProducerStateTable(newHandle(typeTransportProducerStateTable, p))
		return nil
	})
}

func (p *transportProducer) updateDB() {
	defer close(p.stopped)
	ctx := context.Background()
	for e := range p.updates {
		var err error
		if e.Del {
			_, err = p.db.st.Del(ctx, p.tbl.key(e.Key))
		} else if len(e.Fields) > 0 {
			err = p.db.st.HSet(ctx, p.tbl.key(e.Key), e.Fields...)
		}
		p.queued.Add(-1)
		if err != nil {
			log().Warn("db updater write failed", zap.String("table", p.name), zap.String("key", e.Key), zap.Error(err))
		}
	}
}

func (p *transportProducer) send(e entry) error {
	if err := p.client.SendMsg(p.db.dbName(), p.name, toTransportEntries([]entry{e})); err != nil {
		return err
	}
	if p.updates != nil {
		p.queued.Add(1)
		p.updates <- e
	}
	return nil
}

func (p *transportProducer) close() {
	if p.updates != nil {
		close(p.updates)
		<-p.stopped
	}
}

// TransportProducerStateTableFree releases tbl after the updater has
// written every queued change.
func TransportProducerStateTableFree(tbl TransportProducerStateTable) Result {
	return try("TransportProducerStateTableFree", func() error {
		p, err := dropHandle[transportProducer](typeTransportProducerStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		p.close()
		return nil
	})
}

func withTransportProducer(location string, tbl TransportProducerStateTable, f func(p *transportProducer) error) Result {
	return try(location, func() error {
		p, err := getObject[transportProducer](typeTransportProducerStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		return f(p)
	})
}

// TransportProducerStateTableSet sends a set of key. The value strings are
// moved out.
func TransportProducerStateTableSet(tbl TransportProducerStateTable, key *byte, values FieldValueArray) Result {
	return withTransportProducer("TransportProducerStateTableSet", tbl, func(p *transportProducer) error {
		return p.send(entry{Key: GoString(key), Fields: readFieldValueArray(values)})
	})
}

// TransportProducerStateTableDel sends a delete of key.
func TransportProducerStateTableDel(tbl TransportProducerStateTable, key *byte) Result {
	return withTransportProducer("TransportProducerStateTableDel", tbl, func(p *transportProducer) error {
		return p.send(entry{Key: GoString(key), Del: true})
	})
}

// TransportProducerStateTableDBUpdaterQueueSize stores the number of
// changes waiting to be written to the database.
func TransportProducerStateTableDBUpdaterQueueSize(tbl TransportProducerStateTable, outSize *uint64) Result {
	return withTransportProducer("TransportProducerStateTableDBUpdaterQueueSize", tbl, func(p *transportProducer) error {
		if err := checkOut(outSize); err != nil {
			return err
		}
		*outSize = uint64(max(p.queued.Load(), 0))
		return nil
	})
}

type transportConsumer struct {
	db    *dbConnector
	name  string
	batch int
	pri   int
	ev    *selectable.Event

	mu    sync.Mutex
	queue []entry
	freed atomic.Bool
}

var _ transport.Handler = (*transportConsumer)(nil)

// TransportConsumerStateTableNew creates a consumer for tableName and
// registers it with s. s keeps calling the consumer until s is freed, so
// the consumer must not be freed before s.
func TransportConsumerStateTableNew(db DBConnector, tableName *byte, s TransportServer, popBatchSize, pri *int32, out *TransportConsumerStateTable) Result {
	return try("TransportConsumerStateTableNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		conn, err := getObject[dbConnector](typeDBConnector, uint64(db))
		if err != nil {
			return err
		}
		srv, err := getObject[transport.Server](typeTransportServer, uint64(s))
		if err != nil {
			return err
		}
		ev, err := selectable.NewEvent()
		if err != nil {
			return err
		}
		t := &transportConsumer{db: conn, name: GoString(tableName), batch: batchSize(popBatchSize), pri: priority(pri), ev: ev}
		srv.Register(conn.dbName(), t.name, t)
		*out = TransportConsumerStateTable(newHandle(typeTransportConsumerStateTable, t))
		return nil
	})
}

// HandleEntries queues entries delivered by the server.
func (t *transportConsumer) HandleEntries(entries []transport.Entry) {
	if t.freed.Load() {
		useAfterFree(typeTransportConsumerStateTable)
		return
	}
	t.mu.Lock()
	t.queue = append(t.queue, fromTransportEntries(entries)...)
	t.mu.Unlock()
	if err := t.ev.Notify(); err != nil {
		log().Warn("transport consumer notify failed", zap.String("table", t.name), zap.Error(err))
	}
}

func (t *transportConsumer) pops() []entry {
	t.mu.Lock()
	n := min(len(t.queue), t.batch)
	out := t.queue[:n:n]
	t.queue = t.queue[n:]
	left := len(t.queue)
	t.mu.Unlock()
	if left > 0 {
		_ = t.ev.Notify()
	}
	return out
}

func (t *transportConsumer) queued() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// TransportConsumerStateTableFree releases tbl. The server it was
// registered with must already be freed.
func TransportConsumerStateTableFree(tbl TransportConsumerStateTable) Result {
	return try("TransportConsumerStateTableFree", func() error {
		t, err := dropHandle[transportConsumer](typeTransportConsumerStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		t.freed.Store(true)
		return t.ev.Close()
	})
}

var errFreed = errors.New("object already freed")

func withTransportConsumer(location string, tbl TransportConsumerStateTable, f func(t *transportConsumer) error) Result {
	return try(location, func() error {
		t, err := getObject[transportConsumer](typeTransportConsumerStateTable, uint64(tbl))
		if err != nil {
			return err
		}
		if t.freed.Load() {
			return errFreed
		}
		return f(t)
	})
}

// TransportConsumerStateTablePops returns up to the batch size of queued
// changes.
func TransportConsumerStateTablePops(tbl TransportConsumerStateTable, outArr *KeyOpFieldValuesArray) Result {
	return withTransportConsumer("TransportConsumerStateTablePops", tbl, func(t *transportConsumer) error {
		if err := checkOut(outArr); err != nil {
			return err
		}
		*outArr = makeKeyOpFieldValuesArray(t.pops())
		return nil
	})
}

// TransportConsumerStateTableGetFd stores the descriptor that becomes
// readable when changes are queued.
func TransportConsumerStateTableGetFd(tbl TransportConsumerStateTable, outFd *uint32) Result {
	return withTransportConsumer("TransportConsumerStateTableGetFd", tbl, func(t *transportConsumer) error {
		if err := checkOut(outFd); err != nil {
			return err
		}
		*outFd = uint32(t.ev.Fd())
		return nil
	})
}

// TransportConsumerStateTableReadData waits up to timeoutMs for changes.
func TransportConsumerStateTableReadData(tbl TransportConsumerStateTable, timeoutMs uint32, interruptOnSignal uint8, outResult *SelectResult) Result {
	return withTransportConsumer("TransportConsumerStateTableReadData", tbl, func(t *transportConsumer) error {
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

// TransportConsumerStateTableHasData stores 1 when changes are queued.
func TransportConsumerStateTableHasData(tbl TransportConsumerStateTable, out *uint8) Result {
	return withTransportConsumer("TransportConsumerStateTableHasData", tbl, func(t *transportConsumer) error {
		if err := checkOut(out); err != nil {
			return err
		}
		*out = boolByte(t.queued() > 0)
		return nil
	})
}

// TransportConsumerStateTableHasCachedData stores 1 when more changes are
// queued than one pop returns.
func TransportConsumerStateTableHasCachedData(tbl TransportConsumerStateTable, out *uint8) Result {
	return withTransportConsumer("TransportConsumerStateTableHasCachedData", tbl, func(t *transportConsumer) error {
		if err := checkOut(out); err != nil {
			return err
		}
		*out = boolByte(t.queued() > t.batch)
		return nil
	})
}

// TransportConsumerStateTableInitializedWithData stores 0: nothing can be
// queued before the table is registered.
func TransportConsumerStateTableInitializedWithData(tbl TransportConsumerStateTable, out *uint8) Result {
	return withTransportConsumer("TransportConsumerStateTableInitializedWithData", tbl, func(t *transportConsumer) error {
		if err := checkOut(out); err != nil {
			return err
		}
		*out = 0
		return nil
	})
}
