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

package swss_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonic-net/sonic-swss-common/pkg/swss"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/swsstest"
)

func newSonicV2(t *testing.T, r *swsstest.Redis) *swss.SonicV2Connector {
	t.Helper()
	c, err := swss.NewSonicV2Connector(!r.IsTCP(), "")
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestSonicV2ConnectorDatabases(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)
	assert.Equal(t, !r.IsTCP(), c.UseUnixSocketPath())
	assert.Empty(t, c.Netns())

	ns, err := c.Namespace()
	require.NoError(t, err)
	assert.Empty(t, ns)

	names, err := c.DBList()
	require.NoError(t, err)
	assert.Equal(t, []string{"APPL_DB", "CONFIG_DB", "DPU_APPL_DB", "DPU_STATE_DB", "LOGLEVEL_DB", "STATE_DB"}, names)

	id, err := c.DBID("STATE_DB")
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	sep, err := c.DBSeparator("APPL_DB")
	require.NoError(t, err)
	assert.Equal(t, ":", sep)

	_, err = c.DBID("MISSING_DB")
	assert.ErrorIs(t, err, swss.ErrNative)
}

func TestSonicV2ConnectorHashes(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)

	_, err := c.Get("APPL_DB", "key0", "field1", false)
	assert.ErrorIs(t, err, swss.ErrNative, "not connected yet")

	require.NoError(t, c.Connect("APPL_DB", false))

	n, err := c.Set("APPL_DB", "key0", "field1", "value2", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = c.Set("APPL_DB", "key0", "field1", "value3", false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "field already existed")

	v, err := c.Get("APPL_DB", "key0", "field1", false)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "value3", v.String())
	v.Free()

	_, err = c.Set("APPL_DB", "kkk3", "field3", "", false)
	require.NoError(t, err)
	v, err = c.Get("APPL_DB", "kkk3", "field3", false)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.IsEmpty())
	v.Free()

	_, err = c.Set("APPL_DB", "kkk3", "field3", "None", false)
	require.NoError(t, err)
	v, err = c.Get("APPL_DB", "kkk3", "field3", false)
	require.NoError(t, err)
	assert.Nil(t, v, "None reads back as absent")
	v, err = c.Get("APPL_DB", "kkk3", "missing", false)
	require.NoError(t, err)
	assert.Nil(t, v)

	ok, err := c.HExists("APPL_DB", "kkk3", "field3")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.Exists("APPL_DB", "kkk_missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.HMSet("APPL_DB", "key5", swss.Pairs("field1", "value3", "field2", "value4")))
	require.NoError(t, c.HMSet("APPL_DB", "key5", swss.Pairs("field5", "value5")))
	fvs, err := c.GetAll("APPL_DB", "key5", false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"field1": "value3", "field2": "value4", "field5": "value5"}, fvs.Strings())
	fvs.Free()

	fvs, err = c.GetAll("APPL_DB", "missing", false)
	require.NoError(t, err)
	assert.Empty(t, fvs)

	n, err = c.Del("APPL_DB", "key5", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, err = c.Del("APPL_DB", "key5", false)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestSonicV2ConnectorKeys(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)
	require.NoError(t, c.Connect("STATE_DB", false))

	for _, k := range []string{"key11", "key12", "key13", "other"} {
		_, err := c.Set("STATE_DB", k, "field1", "value2", false)
		require.NoError(t, err)
	}
	keys, err := c.Keys("STATE_DB", "key*", false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"key11", "key12", "key13"}, keys)
	keys, err = c.Keys("STATE_DB", "", false)
	require.NoError(t, err)
	assert.Len(t, keys, 4)

	require.NoError(t, c.DeleteAllByPattern("STATE_DB", "key1*"))
	keys, err = c.Keys("STATE_DB", "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, keys)

	// Databases are separate: STATE_DB keys are not in APPL_DB.
	require.NoError(t, c.Connect("APPL_DB", false))
	keys, err = c.Keys("APPL_DB", "", false)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSonicV2ConnectorBlockingGetAll(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)
	require.NoError(t, c.Connect("APPL_DB", true))

	go func() {
		time.Sleep(200 * time.Millisecond)
		w, err := swss.NewSonicV2Connector(!r.IsTCP(), "")
		if !assert.NoError(t, err) {
			return
		}
		defer w.Close()
		if assert.NoError(t, w.Connect("APPL_DB", false)) {
			_, err = w.Set("APPL_DB", "key0_coming", "field1", "value2", false)
			assert.NoError(t, err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	fvs, err := c.GetAllContext(ctx, "APPL_DB", "key0_coming", true)
	require.NoError(t, err)
	defer fvs.Free()
	assert.Equal(t, map[string]string{"field1": "value2"}, fvs.Strings())

	ctx, cancel = context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.GetContext(ctx, "APPL_DB", "never", "field", true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSonicV2ConnectorContext(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)
	ctx := context.Background()
	require.NoError(t, c.ConnectContext(ctx, "CONFIG_DB", false))

	n, err := c.SetContext(ctx, "CONFIG_DB", "PORT|Ethernet0", "mtu", "9100", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, c.HMSetContext(ctx, "CONFIG_DB", "PORT|Ethernet0", swss.Pairs("speed", "100000")))

	v, err := c.GetContext(ctx, "CONFIG_DB", "PORT|Ethernet0", "mtu", false)
	require.NoError(t, err)
	assert.Equal(t, "9100", v.String())
	v.Free()
	ok, err := c.HExistsContext(ctx, "CONFIG_DB", "PORT|Ethernet0", "speed")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.ExistsContext(ctx, "CONFIG_DB", "PORT|Ethernet0")
	require.NoError(t, err)
	assert.True(t, ok)
	fvs, err := c.GetAllContext(ctx, "CONFIG_DB", "PORT|Ethernet0", false)
	require.NoError(t, err)
	assert.Len(t, fvs, 2)
	fvs.Free()
	keys, err := c.KeysContext(ctx, "CONFIG_DB", "PORT|*", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"PORT|Ethernet0"}, keys)

	// The same entry is visible through CONFIG_DB's own connector.
	cfg := newConfigDB(t, r)
	require.NoError(t, cfg.Connect(false, false))
	entry, err := cfg.GetEntry("PORT", "Ethernet0")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"mtu": "9100", "speed": "100000"}, entry.Strings())
	entry.Free()

	n, err = c.DelContext(ctx, "CONFIG_DB", "PORT|Ethernet0", false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, c.DeleteAllByPatternContext(ctx, "CONFIG_DB", "PORT|*"))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.ExistsContext(canceled, "CONFIG_DB", "PORT|Ethernet0")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSonicV2ConnectorPublish(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)
	require.NoError(t, c.Connect("APPL_DB", false))

	n, err := c.Publish("APPL_DB", "nobody", "hello")
	require.NoError(t, err)
	assert.Zero(t, n)

	s, err := swss.NewSubscriberStateTable(r.DBConnector(t, 0), "PORT_TABLE")
	require.NoError(t, err)
	defer s.Close()
	n, err = c.PublishContext(context.Background(), "APPL_DB", "__keyspace@0__:PORT_TABLE:Ethernet0", "hset")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSonicV2ConnectorRedisClient(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)

	_, err := c.RedisClient("APPL_DB")
	assert.ErrorIs(t, err, swss.ErrNative, "not connected yet")

	require.NoError(t, c.Connect("APPL_DB", false))
	_, err = c.Set("APPL_DB", "h", "f", "v", false)
	require.NoError(t, err)

	db, err := c.RedisClient("APPL_DB")
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, swss.NamedConnection{DBName: "APPL_DB", IsTCP: r.IsTCP()}, db.ConnectionInfo())
	v, err := db.HGet("h", "f")
	require.NoError(t, err)
	assert.Equal(t, "v", v.String())
	v.Free()

	// The client is a separate connection.
	require.NoError(t, c.CloseDB("APPL_DB"))
	ok, err := db.Exists("h")
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = c.Exists("APPL_DB", "h")
	assert.ErrorIs(t, err, swss.ErrNative)
}

func TestSonicV2ConnectorCloseAll(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)
	require.NoError(t, c.Connect("APPL_DB", false))
	require.NoError(t, c.Connect("STATE_DB", false))
	require.NoError(t, c.Connect("STATE_DB", false), "reconnect replaces the connection")

	require.NoError(t, c.CloseAll())
	_, err := c.Exists("STATE_DB", "k")
	assert.ErrorIs(t, err, swss.ErrNative)

	require.NoError(t, c.Connect("STATE_DB", false))
	_, err = c.Exists("STATE_DB", "k")
	require.NoError(t, err)

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Connect("APPL_DB", false), swss.ErrInvariant)
	_, err = c.Namespace()
	assert.ErrorIs(t, err, swss.ErrInvariant)
}

func TestSonicV2ConnectorEncoding(t *testing.T) {
	r := newRedis(t)
	c := newSonicV2(t, r)
	require.NoError(t, c.Connect("APPL_DB", false))
	_, err := c.Set("APPL_DB", "h\x00", "f", "v", false)
	assert.ErrorIs(t, err, swss.ErrEncoding)
	assert.ErrorIs(t, c.HMSet("APPL_DB", "h", swss.Pairs("f\x00", "v")), swss.ErrEncoding)
}
