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
	"net"
	"os"
	"strconv"
	"testing"
	"time"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/store/memstore"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/transport"
)

const testPort = 6379

var testHost string

func TestMain(m *testing.M) {
	testHost = "capi-" + uuid.NewString()
	srv, err := memstore.Listen(memstore.Options{
		Addr:                 net.JoinHostPort(testHost, strconv.Itoa(testPort)),
		NotifyKeyspaceEvents: true,
	})
	if err != nil {
		panic(err)
	}
	dbconfig.Default().Set(dbconfig.Key{}, &dbconfig.Config{
		Instances: map[string]dbconfig.Instance{"redis": {Hostname: testHost, Port: testPort}},
		Databases: map[string]dbconfig.Database{
			"APPL_DB":     {ID: 0, Separator: ":", Instance: "redis"},
			"LOGLEVEL_DB": {ID: 3, Separator: ":", Instance: "redis"},
			"CONFIG_DB":   {ID: 4, Separator: "|", Instance: "redis"},
			"STATE_DB":    {ID: 6, Separator: "|", Instance: "redis"},
		},
	})
	code := m.Run()
	_ = srv.Close()
	os.Exit(code)
}

// cstr returns a Go-owned NUL-terminated copy of s.
func cstr(s string) *byte {
	b := append([]byte(s), 0)
	return &b[0]
}

func ok(t *testing.T, r Result) {
	t.Helper()
	if r.OK() {
		return
	}
	msg, loc := refString(StrRef(r.Message)), refString(StrRef(r.Location))
	r.Free()
	t.Fatalf("%s: %s", loc, msg)
}

func failed(t *testing.T, r Result) string {
	t.Helper()
	require.False(t, r.OK(), "call unexpectedly succeeded")
	msg := refString(StrRef(r.Message))
	r.Free()
	return msg
}

func uniqueTable(prefix string) string {
	return prefix + "_" + uuid.NewString()[:8]
}

func openNamed(t *testing.T, name string) DBConnector {
	t.Helper()
	var db DBConnector
	ok(t, DBConnectorNewNamed(cstr(name), 1000, 1, &db))
	t.Cleanup(func() { ok(t, DBConnectorFree(db)) })
	return db
}

// hostFieldValues builds a caller-owned array; the returned func releases
// the value strings after the call has moved them out.
func hostFieldValues(kv ...string) (FieldValueArray, func()) {
	if len(kv) == 0 {
		return FieldValueArray{}, func() {}
	}
	data := make([]FieldValueTuple, len(kv)/2)
	for i := range data {
		data[i] = FieldValueTuple{Field: cstr(kv[2*i]), Value: newStringFrom(kv[2*i+1])}
	}
	return FieldValueArray{Len: uint64(len(data)), Data: &data[0]}, func() {
		for _, d := range data {
			StringFree(d.Value)
		}
	}
}

func takeFieldValues(arr FieldValueArray) map[string]string {
	out := map[string]string{}
	for _, e := range arr.Entries() {
		out[GoString(e.Field)] = takeString(e.Value)
		Free(unsafe.Pointer(e.Field))
		StringFree(e.Value)
	}
	FieldValueArrayFree(arr)
	return out
}

type record struct {
	key    string
	del    bool
	fields map[string]string
}

func takeRecords(arr KeyOpFieldValuesArray) []record {
	var out []record
	for _, e := range arr.Entries() {
		out = append(out, record{
			key:    GoString(e.Key),
			del:    e.Operation == KeyOperationDel,
			fields: takeFieldValues(e.FieldValues),
		})
		Free(unsafe.Pointer(e.Key))
	}
	KeyOpFieldValuesArrayFree(arr)
	return out
}

func takeStrings(arr StringArray) []string {
	var out []string
	for _, p := range arr.Entries() {
		out = append(out, GoString(p))
		Free(unsafe.Pointer(p))
	}
	StringArrayFree(arr)
	return out
}

func TestStringLifecycle(t *testing.T) {
	before := Stats()
	data := []byte("a\x00b")
	s := StringNew(&data[0], uint64(len(data)))
	assert.True(t, IsLive(unsafe.Pointer(s)))
	assert.EqualValues(t, 3, StrRefLength(StrRef(s)))
	assert.Equal(t, "a\x00b", refString(StrRef(s)))
	assert.Equal(t, "a", GoString(StrRefCStr(StrRef(s))))
	StringFree(s)
	StringFree(nil)

	d := Stats().Sub(before)
	assert.EqualValues(t, 1, d.Allocs)
	assert.EqualValues(t, 1, d.Frees)
	assert.EqualValues(t, 0, d.InvalidFrees)
	assert.Zero(t, d.Live)
}

func TestDoubleFreeIsCounted(t *testing.T) {
	before := Stats()
	s := StringNewCStr(cstr("x"))
	StringFree(s)
	StringFree(s)
	assert.EqualValues(t, 1, Stats().Sub(before).InvalidFrees)
}

func TestStrictModePanicsOnInvalidFree(t *testing.T) {
	prev := SetStrict(true)
	defer SetStrict(prev)

	p := CString("x")
	Free(unsafe.Pointer(p))
	assert.Panics(t, func() { Free(unsafe.Pointer(p)) })
}

func TestEmptyArraysHaveNilData(t *testing.T) {
	before := Stats()
	arr := makeFieldValueArray(nil)
	assert.Nil(t, arr.Data)
	assert.Empty(t, arr.Entries())
	FieldValueArrayFree(arr)
	StringArrayFree(makeStringArray(nil))
	KeyOpFieldValuesArrayFree(makeKeyOpFieldValuesArray(nil))
	assert.Equal(t, HeapStats{}, Stats().Sub(before))
}

func TestFailureCarriesLocation(t *testing.T) {
	before := Stats()
	var v String
	r := DBConnectorGet(DBConnector(1<<62), cstr("k"), &v)
	require.False(t, r.OK())
	assert.Equal(t, "DBConnectorGet", refString(StrRef(r.Location)))
	assert.Contains(t, refString(StrRef(r.Message)), "DBConnector")
	r.Free()
	assert.Zero(t, Stats().Sub(before).Live)
}

func TestTryRecoversPanics(t *testing.T) {
	msg := failed(t, try("boom", func() error { panic("exploded") }))
	assert.Equal(t, "exploded", msg)
}

func TestNullOutputPointer(t *testing.T) {
	msg := failed(t, DBConnectorNewNamed(cstr("APPL_DB"), 0, 1, nil))
	assert.Contains(t, msg, "null output")
}

func TestDBConnectorOperations(t *testing.T) {
	db := openNamed(t, "STATE_DB")
	var status int8
	ok(t, DBConnectorFlushDB(db, &status))
	assert.EqualValues(t, 1, status)

	var v String
	ok(t, DBConnectorGet(db, cstr("missing"), &v))
	assert.Nil(t, v)

	val := newStringFrom("hello")
	ok(t, DBConnectorSet(db, cstr("k"), StrRef(val)))
	StringFree(val)
	ok(t, DBConnectorGet(db, cstr("k"), &v))
	require.NotNil(t, v)
	assert.Equal(t, "hello", takeString(v))
	StringFree(v)

	var exists int8
	ok(t, DBConnectorExists(db, cstr("k"), &exists))
	assert.EqualValues(t, 1, exists)
	ok(t, DBConnectorDel(db, cstr("k"), &status))
	assert.EqualValues(t, 1, status)
	ok(t, DBConnectorExists(db, cstr("k"), &exists))
	assert.EqualValues(t, 0, exists)

	for field, value := range map[string]string{"a": "1", "b": "2"} {
		s := newStringFrom(value)
		ok(t, DBConnectorHSet(db, cstr("h"), cstr(field), StrRef(s)))
		StringFree(s)
	}
	ok(t, DBConnectorHGet(db, cstr("h"), cstr("a"), &v))
	assert.Equal(t, "1", takeString(v))
	StringFree(v)
	ok(t, DBConnectorHGet(db, cstr("h"), cstr("zz"), &v))
	assert.Nil(t, v)

	var all FieldValueArray
	ok(t, DBConnectorHGetAll(db, cstr("h"), &all))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, takeFieldValues(all))

	ok(t, DBConnectorHExists(db, cstr("h"), cstr("b"), &exists))
	assert.EqualValues(t, 1, exists)
	ok(t, DBConnectorHDel(db, cstr("h"), cstr("b"), &status))
	assert.EqualValues(t, 1, status)
	ok(t, DBConnectorHExists(db, cstr("h"), cstr("b"), &exists))
	assert.EqualValues(t, 0, exists)
}

func TestDBConnectorTCPAndUnknownName(t *testing.T) {
	var db DBConnector
	ok(t, DBConnectorNewTCP(0, cstr(testHost), testPort, 1000, &db))
	ok(t, DBConnectorFree(db))

	msg := failed(t, DBConnectorNewNamed(cstr("NO_SUCH_DB"), 1000, 1, &db))
	assert.Contains(t, msg, "NO_SUCH_DB")

	assert.Contains(t, failed(t, DBConnectorFree(DBConnector(0))), "invalid DBConnector handle")
}

func TestDoubleHandleFree(t *testing.T) {
	var db DBConnector
	ok(t, DBConnectorNewNamed(cstr("APPL_DB"), 0, 1, &db))
	ok(t, DBConnectorFree(db))
	msg := failed(t, DBConnectorFree(db))
	assert.Contains(t, msg, "DBConnector")
}

func TestTableOperations(t *testing.T) {
	db := openNamed(t, "APPL_DB")
	name := uniqueTable("TABLE")
	var tbl Table
	ok(t, TableNew(db, cstr(name), &tbl))
	defer func() { ok(t, TableFree(tbl)) }()

	values, release := hostFieldValues("mtu", "9100", "admin", "up")
	ok(t, TableSet(tbl, cstr("Ethernet0"), values))
	release()

	var got FieldValueArray
	var exists int8
	ok(t, TableGet(tbl, cstr("Ethernet0"), &got, &exists))
	assert.EqualValues(t, 1, exists)
	assert.Equal(t, map[string]string{"mtu": "9100", "admin": "up"}, takeFieldValues(got))

	ok(t, TableGet(tbl, cstr("Ethernet4"), &got, &exists))
	assert.EqualValues(t, 0, exists)
	assert.Nil(t, got.Data)

	s := newStringFrom("1500")
	ok(t, TableHSet(tbl, cstr("Ethernet0"), cstr("mtu"), StrRef(s)))
	StringFree(s)
	var v String
	ok(t, TableHGet(tbl, cstr("Ethernet0"), cstr("mtu"), &v, &exists))
	assert.EqualValues(t, 1, exists)
	assert.Equal(t, "1500", takeString(v))
	StringFree(v)

	ok(t, TableHDel(tbl, cstr("Ethernet0"), cstr("admin")))
	ok(t, TableHGet(tbl, cstr("Ethernet0"), cstr("admin"), &v, &exists))
	assert.EqualValues(t, 0, exists)

	var keys StringArray
	ok(t, TableGetKeys(tbl, &keys))
	assert.Equal(t, []string{"Ethernet0"}, takeStrings(keys))

	ok(t, TableDel(tbl, cstr("Ethernet0")))
	ok(t, TableGetKeys(tbl, &keys))
	assert.Empty(t, takeStrings(keys))
}

func newConsumer(t *testing.T, db DBConnector, name string, batch int32) ConsumerStateTable {
	t.Helper()
	var c ConsumerStateTable
	ok(t, ConsumerStateTableNew(db, cstr(name), &batch, nil, &c))
	t.Cleanup(func() { ok(t, ConsumerStateTableFree(c)) })
	return c
}

func readConsumer(t *testing.T, c ConsumerStateTable, timeoutMs uint32) SelectResult {
	t.Helper()
	var r SelectResult
	ok(t, ConsumerStateTableReadData(c, timeoutMs, 0, &r))
	return r
}

func popConsumer(t *testing.T, c ConsumerStateTable) []record {
	t.Helper()
	var arr KeyOpFieldValuesArray
	ok(t, ConsumerStateTablePops(c, &arr))
	return takeRecords(arr)
}

func TestProducerConsumerStateTable(t *testing.T) {
	db := openNamed(t, "APPL_DB")
	name := uniqueTable("ROUTE_TABLE")

	var p ProducerStateTable
	ok(t, ProducerStateTableNew(db, cstr(name), &p))
	defer func() { ok(t, ProducerStateTableFree(p)) }()
	c := newConsumer(t, db, name, 128)

	var initData uint8
	ok(t, ConsumerStateTableInitializedWithData(c, &initData))
	assert.Zero(t, initData)

	start := time.Now()
	assert.Equal(t, SelectResultTimeout, readConsumer(t, c, 100))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	values, release := hostFieldValues("nexthop", "10.0.0.1")
	ok(t, ProducerStateTableSet(p, cstr("10.1.0.0/16"), values))
	release()

	var n int64
	ok(t, ProducerStateTableCount(p, &n))
	assert.EqualValues(t, 1, n)

	require.Equal(t, SelectResultData, readConsumer(t, c, 1000))
	assert.Equal(t, []record{{key: "10.1.0.0/16", fields: map[string]string{"nexthop": "10.0.0.1"}}}, popConsumer(t, c))

	ok(t, ProducerStateTableDel(p, cstr("10.1.0.0/16")))
	require.Equal(t, SelectResultData, readConsumer(t, c, 1000))
	assert.Equal(t, []record{{key: "10.1.0.0/16", del: true, fields: map[string]string{}}}, popConsumer(t, c))

	var hasData uint8
	ok(t, ConsumerStateTableHasData(c, &hasData))
	assert.Zero(t, hasData)
}

func TestConsumerBatchesAndRenotifies(t *testing.T) {
	db := openNamed(t, "APPL_DB")
	name := uniqueTable("BATCH_TABLE")

	var p ProducerStateTable
	ok(t, ProducerStateTableNew(db, cstr(name), &p))
	defer func() { ok(t, ProducerStateTableFree(p)) }()
	ok(t, ProducerStateTableSetBuffered(p, 1))
	for i := range 5 {
		values, release := hostFieldValues("i", strconv.Itoa(i))
		ok(t, ProducerStateTableSet(p, cstr("k"+strconv.Itoa(i)), values))
		release()
	}
	ok(t, ProducerStateTableFlush(p))

	c := newConsumer(t, db, name, 2)
	var initData uint8
	ok(t, ConsumerStateTableInitializedWithData(c, &initData))
	assert.EqualValues(t, 1, initData)

	seen := 0
	for seen < 5 {
		require.Equal(t, SelectResultData, readConsumer(t, c, 1000))
		got := popConsumer(t, c)
		assert.LessOrEqual(t, len(got), 2)
		seen += len(got)
	}
	assert.Equal(t, 5, seen)
}

func TestProducerTempView(t *testing.T) {
	db := openNamed(t, "APPL_DB")
	name := uniqueTable("VIEW_TABLE")
	var p ProducerStateTable
	ok(t, ProducerStateTableNew(db, cstr(name), &p))
	defer func() { ok(t, ProducerStateTableFree(p)) }()

	msg := failed(t, ProducerStateTableApplyTempView(p))
	assert.Contains(t, msg, "view")

	var tbl Table
	ok(t, TableNew(db, cstr(name), &tbl))
	defer func() { ok(t, TableFree(tbl)) }()
	for _, k := range []string{"keep", "drop"} {
		values, release := hostFieldValues("v", "old")
		ok(t, TableSet(tbl, cstr(k), values))
		release()
	}

	ok(t, ProducerStateTableCreateTempView(p))
	values, release := hostFieldValues("v", "new")
	ok(t, ProducerStateTableSet(p, cstr("keep"), values))
	release()
	ok(t, ProducerStateTableApplyTempView(p))

	c := newConsumer(t, db, name, 128)
	require.Equal(t, SelectResultData, readConsumer(t, c, 1000))
	got := map[string]record{}
	for _, r := range popConsumer(t, c) {
		got[r.key] = r
	}
	assert.True(t, got["drop"].del)
	assert.Equal(t, map[string]string{"v": "new"}, got["keep"].fields)

	ok(t, ProducerStateTableClear(p))
	var n int64
	ok(t, ProducerStateTableCount(p, &n))
	assert.Zero(t, n)
}

func TestSubscriberStateTable(t *testing.T) {
	db := openNamed(t, "APPL_DB")
	name := uniqueTable("SUB_TABLE")
	var tbl Table
	ok(t, TableNew(db, cstr(name), &tbl))
	defer func() { ok(t, TableFree(tbl)) }()

	values, release := hostFieldValues("a", "1")
	ok(t, TableSet(tbl, cstr("existing"), values))
	release()

	var s SubscriberStateTable
	ok(t, SubscriberStateTableNew(db, cstr(name), nil, nil, &s))
	defer func() { ok(t, SubscriberStateTableFree(s)) }()

	read := func() []record {
		var r SelectResult
		ok(t, SubscriberStateTableReadData(s, 1000, 0, &r))
		require.Equal(t, SelectResultData, r)
		var arr KeyOpFieldValuesArray
		ok(t, SubscriberStateTablePops(s, &arr))
		return takeRecords(arr)
	}
	assert.Equal(t, []record{{key: "existing", fields: map[string]string{"a": "1"}}}, read())

	values, release = hostFieldValues("b", "2")
	ok(t, TableSet(tbl, cstr("later"), values))
	release()
	assert.Equal(t, []record{{key: "later", fields: map[string]string{"b": "2"}}}, read())

	ok(t, TableDel(tbl, cstr("later")))
	assert.Equal(t, []record{{key: "later", del: true, fields: map[string]string{}}}, read())

	var fd uint32
	ok(t, SubscriberStateTableGetFd(s, &fd))
	assert.NotZero(t, fd)
}

func TestTransportRoundTrip(t *testing.T) {
	db := openNamed(t, "APPL_DB")
	name := uniqueTable("ZMQ_TABLE")
	endpoint := "inproc://" + uuid.NewString()

	var srv TransportServer
	ok(t, TransportServerNew(cstr(endpoint), &srv))
	var cons TransportConsumerStateTable
	ok(t, TransportConsumerStateTableNew(db, cstr(name), srv, nil, nil, &cons))

	var cl TransportClient
	ok(t, TransportClientNew(cstr(endpoint), &cl))
	ok(t, TransportClientConnect(cl))
	var connected int8
	ok(t, TransportClientIsConnected(cl, &connected))
	assert.EqualValues(t, 1, connected)

	var prod TransportProducerStateTable
	ok(t, TransportProducerStateTableNew(db, cstr(name), cl, 1, &prod))

	values, release := hostFieldValues("f", "v")
	ok(t, TransportProducerStateTableSet(prod, cstr("k1"), values))
	release()

	var r SelectResult
	ok(t, TransportConsumerStateTableReadData(cons, 1000, 0, &r))
	require.Equal(t, SelectResultData, r)
	var arr KeyOpFieldValuesArray
	ok(t, TransportConsumerStateTablePops(cons, &arr))
	assert.Equal(t, []record{{key: "k1", fields: map[string]string{"f": "v"}}}, takeRecords(arr))

	var initData uint8
	ok(t, TransportConsumerStateTableInitializedWithData(cons, &initData))
	assert.Zero(t, initData)

	ok(t, TransportProducerStateTableFree(prod))
	var tbl Table
	ok(t, TableNew(db, cstr(name), &tbl))
	var got FieldValueArray
	var exists int8
	ok(t, TableGet(tbl, cstr("k1"), &got, &exists))
	assert.EqualValues(t, 1, exists)
	assert.Equal(t, map[string]string{"f": "v"}, takeFieldValues(got))
	ok(t, TableFree(tbl))

	before := Stats()
	ok(t, TransportClientFree(cl))
	ok(t, TransportServerFree(srv))
	ok(t, TransportConsumerStateTableFree(cons))
	assert.Zero(t, Stats().Sub(before).UseAfterFree)
}

func TestTransportConsumerFreedBeforeServer(t *testing.T) {
	db := openNamed(t, "APPL_DB")
	name := uniqueTable("ZMQ_TABLE")
	endpoint := "inproc://" + uuid.NewString()

	var srv TransportServer
	ok(t, TransportServerNew(cstr(endpoint), &srv))
	defer func() { ok(t, TransportServerFree(srv)) }()
	var cons TransportConsumerStateTable
	ok(t, TransportConsumerStateTableNew(db, cstr(name), srv, nil, nil, &cons))

	before := Stats()
	ok(t, TransportConsumerStateTableFree(cons))

	var cl TransportClient
	ok(t, TransportClientNew(cstr(endpoint), &cl))
	defer func() { ok(t, TransportClientFree(cl)) }()
	kfvs := makeKeyOpFieldValuesArray([]entry{{Key: "k", Fields: []fieldValue{{Field: "f", Value: "v"}}}})
	ok(t, TransportClientSendMsg(cl, cstr("APPL_DB"), cstr(name), kfvs))
	takeRecords(kfvs)

	assert.Eventually(t, func() bool {
		return Stats().Sub(before).UseAfterFree == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConfigDBConnector(t *testing.T) {
	var c ConfigDBConnector
	ok(t, ConfigDBConnectorNew(0, nil, &c))
	defer func() { ok(t, ConfigDBConnectorFree(c)) }()

	var entryOut FieldValueArray
	msg := failed(t, ConfigDBConnectorGetEntry(c, cstr("PORT"), cstr("Ethernet0"), &entryOut))
	assert.Contains(t, msg, "not connected")

	db := openNamed(t, "CONFIG_DB")
	s := newStringFrom("1")
	ok(t, DBConnectorSet(db, cstr(configDBInitKey), StrRef(s)))
	StringFree(s)
	ok(t, ConfigDBConnectorConnect(c, 1, 0))

	var unix ConfigDBConnector
	ok(t, ConfigDBConnectorNew(1, nil, &unix))
	assert.Contains(t, failed(t, ConfigDBConnectorConnect(unix, 0, 0)), "unix socket")
	ok(t, ConfigDBConnectorFree(unix))

	table := uniqueTable("PORT")
	data, release := hostFieldValues("mtu", "9100", "speed", "100000")
	ok(t, ConfigDBConnectorSetEntry(c, cstr(table), cstr("Ethernet0"), &data))
	release()
	mod, release := hostFieldValues("mtu", "1500")
	ok(t, ConfigDBConnectorModEntry(c, cstr(table), cstr("Ethernet0"), &mod))
	release()

	ok(t, ConfigDBConnectorGetEntry(c, cstr(table), cstr("Ethernet0"), &entryOut))
	assert.Equal(t, map[string]string{"mtu": "1500", "speed": "100000"}, takeFieldValues(entryOut))

	replace, release := hostFieldValues("mtu", "9000")
	ok(t, ConfigDBConnectorSetEntry(c, cstr(table), cstr("Ethernet4"), &replace))
	release()

	var keys StringArray
	ok(t, ConfigDBConnectorGetKeys(c, cstr(table), 1, &keys))
	assert.ElementsMatch(t, []string{"Ethernet0", "Ethernet4"}, takeStrings(keys))
	ok(t, ConfigDBConnectorGetKeys(c, cstr(table), 0, &keys))
	assert.ElementsMatch(t, []string{table + "|Ethernet0", table + "|Ethernet4"}, takeStrings(keys))

	var tableOut KeyOpFieldValuesArray
	ok(t, ConfigDBConnectorGetTable(c, cstr(table), &tableOut))
	assert.ElementsMatch(t, []record{
		{key: "Ethernet0", fields: map[string]string{"mtu": "1500", "speed": "100000"}},
		{key: "Ethernet4", fields: map[string]string{"mtu": "9000"}},
	}, takeRecords(tableOut))

	ok(t, ConfigDBConnectorSetEntry(c, cstr(table), cstr("Ethernet4"), nil))
	ok(t, ConfigDBConnectorGetKeys(c, cstr(table), 1, &keys))
	assert.Equal(t, []string{"Ethernet0"}, takeStrings(keys))

	ok(t, ConfigDBConnectorDeleteTable(c, cstr(table)))
	ok(t, ConfigDBConnectorGetKeys(c, cstr(table), 1, &keys))
	assert.Empty(t, takeStrings(keys))
}

func TestSonicV2Connector(t *testing.T) {
	var c SonicV2Connector
	ok(t, SonicV2ConnectorNew(0, nil, &c))
	defer func() { ok(t, SonicV2ConnectorFree(c)) }()

	var ns String
	ok(t, SonicV2ConnectorGetNamespace(c, &ns))
	assert.Empty(t, takeString(ns))
	StringFree(ns)

	var id int32
	ok(t, SonicV2ConnectorGetDBID(c, cstr("STATE_DB"), &id))
	assert.EqualValues(t, 6, id)
	var list StringArray
	ok(t, SonicV2ConnectorGetDBList(c, &list))
	assert.Equal(t, []string{"APPL_DB", "CONFIG_DB", "LOGLEVEL_DB", "STATE_DB"}, takeStrings(list))

	var exists int8
	assert.Contains(t, failed(t, SonicV2ConnectorExists(c, cstr("APPL_DB"), cstr("k"), &exists)), "not connected")
	ok(t, SonicV2ConnectorConnect(c, cstr("APPL_DB"), 0))

	hash := uniqueTable("HASH")
	var n int64
	ok(t, SonicV2ConnectorSet(c, cstr("APPL_DB"), cstr(hash), cstr("f"), cstr("None"), 0, &n))
	assert.EqualValues(t, 1, n)
	var v String
	ok(t, SonicV2ConnectorGet(c, cstr("APPL_DB"), cstr(hash), cstr("f"), 0, &v))
	assert.Nil(t, v)

	data, release := hostFieldValues("a", "1", "b", "2")
	ok(t, SonicV2ConnectorHMSet(c, cstr("APPL_DB"), cstr(hash), &data))
	release()
	var all FieldValueArray
	ok(t, SonicV2ConnectorGetAll(c, cstr("APPL_DB"), cstr(hash), 1, &all))
	assert.Equal(t, map[string]string{"f": "None", "a": "1", "b": "2"}, takeFieldValues(all))

	var keys StringArray
	ok(t, SonicV2ConnectorKeys(c, cstr("APPL_DB"), cstr(hash), 0, &keys))
	assert.Equal(t, []string{hash}, takeStrings(keys))

	var client DBConnector
	ok(t, SonicV2ConnectorGetRedisClient(c, cstr("APPL_DB"), &client))
	ok(t, DBConnectorExists(client, cstr(hash), &exists))
	assert.EqualValues(t, 1, exists)
	ok(t, DBConnectorFree(client))

	ok(t, SonicV2ConnectorDeleteAllByPattern(c, cstr("APPL_DB"), cstr(hash)))
	ok(t, SonicV2ConnectorExists(c, cstr("APPL_DB"), cstr(hash), &exists))
	assert.Zero(t, exists)

	ok(t, SonicV2ConnectorCloseDB(c, cstr("APPL_DB")))
	assert.Contains(t, failed(t, SonicV2ConnectorDel(c, cstr("APPL_DB"), cstr(hash), 0, &n)), "not connected")
}

func TestEventPublisher(t *testing.T) {
	endpoint := "inproc://" + uuid.NewString()
	t.Setenv("SWSS_EVENTS_ENDPOINT", endpoint)

	var p EventPublisher
	ok(t, EventPublisherNew(cstr("bgp"), &p))
	defer func() { ok(t, EventPublisherFree(p)) }()

	// Nothing is bound yet; the event is dropped.
	ok(t, EventPublisherPublish(p, cstr("down"), nil))

	var srv TransportServer
	ok(t, TransportServerNew(cstr(endpoint), &srv))
	defer func() { ok(t, TransportServerFree(srv)) }()
	received := make(chan entry, 4)
	server, err := getObject[transport.Server](typeTransportServer, uint64(srv))
	require.NoError(t, err)
	server.Register(EventsDB, "bgp", transport.HandlerFunc(func(entries []transport.Entry) {
		for _, e := range fromTransportEntries(entries) {
			received <- e
		}
	}))

	params, release := hostFieldValues("peer", "10.0.0.2")
	ok(t, EventPublisherPublish(p, cstr("state"), &params))
	release()

	select {
	case e := <-received:
		assert.Equal(t, "bgp:state", e.Key)
		fields := map[string]string{}
		for _, fv := range e.Fields {
			fields[fv.Field] = fv.Value
		}
		assert.Equal(t, "10.0.0.2", fields["peer"])
		assert.NotEmpty(t, fields[EventRuntimeIDField])
		assert.Equal(t, "2", fields[EventSequenceField])
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}

	ok(t, EventPublisherDeinit(p))
	assert.Contains(t, failed(t, EventPublisherPublish(p, cstr("state"), nil)), "deinitialized")
}

func TestLoggerLink(t *testing.T) {
	component := uniqueTable("orchagent")
	levels := make(chan string, 8)
	outputs := make(chan string, 8)
	ok(t, LoggerLinkToDBWithOutput(cstr(component),
		func(c, p *byte) {
			assert.Equal(t, component, GoString(c))
			levels <- GoString(p)
		},
		cstr("NOTICE"),
		func(_, o *byte) { outputs <- GoString(o) },
		cstr("SYSLOG"),
	))
	t.Cleanup(func() {
		loggerLinks.Lock()
		l := loggerLinks.m[component]
		delete(loggerLinks.m, component)
		loggerLinks.Unlock()
		l.stop()
	})

	next := func(ch chan string) string {
		t.Helper()
		select {
		case v := <-ch:
			return v
		case <-time.After(2 * time.Second):
			t.Fatal("no notification")
			return ""
		}
	}
	assert.Equal(t, "NOTICE", next(levels))
	assert.Equal(t, "SYSLOG", next(outputs))

	db := openNamed(t, "LOGLEVEL_DB")
	var p ProducerStateTable
	ok(t, ProducerStateTableNew(db, cstr(component), &p))
	defer func() { ok(t, ProducerStateTableFree(p)) }()
	values, release := hostFieldValues(LogLevelField, "DEBUG", LogOutputField, "SYSLOG")
	ok(t, ProducerStateTableSet(p, cstr(component), values))
	release()

	assert.Equal(t, "DEBUG", next(levels))
	assert.Empty(t, outputs)

	ok(t, LoggerRestartLogger())
	values, release = hostFieldValues(LogOutputField, "STDERR")
	ok(t, ProducerStateTableSet(p, cstr(component), values))
	release()
	assert.Equal(t, "STDERR", next(outputs))
}
