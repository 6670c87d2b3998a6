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

const typeSonicV2Connector = "SonicV2Connector"

// SonicV2Connector reaches every database of a namespace by name. Each
// database is connected separately with Connect.
type SonicV2Connector struct {
	owner[capi.SonicV2Connector]
	useUnix bool
	netns   string
}

// NewSonicV2Connector creates a connector for the databases of netns; an
// empty netns is the default namespace. It does not connect.
func NewSonicV2Connector(useUnixSocketPath bool, netns string) (*SonicV2Connector, error) {
	k := new(KeepAlive)
	defer k.Release()
	cns, err := k.cstr(netns)
	if err != nil {
		return nil, err
	}
	var h capi.SonicV2Connector
	if err := check(capi.SonicV2ConnectorNew(boolArg(useUnixSocketPath), cns, &h)); err != nil {
		return nil, err
	}
	c := &SonicV2Connector{
		owner:   newOwner(typeSonicV2Connector, h, nil, capi.SonicV2ConnectorFree),
		useUnix: useUnixSocketPath,
		netns:   netns,
	}
	track(c, &c.owner)
	return c, nil
}

// Close closes every connection and releases the connector.
func (c *SonicV2Connector) Close() { c.close() }

// UseUnixSocketPath reports whether databases are reached over unix
// sockets.
func (c *SonicV2Connector) UseUnixSocketPath() bool { return c.useUnix }

// Netns returns the namespace the connector was created for.
func (c *SonicV2Connector) Netns() string { return c.netns }

// takeStr copies and frees a string the native side must return.
func takeStr(s capi.String, what string) (string, error) {
	o := adoptString(s)
	if o == nil {
		return "", errorf(KindNative, "native %s is null", what)
	}
	defer o.Free()
	return o.Str()
}

// call runs a native call taking the names in args, in order.
func (c *SonicV2Connector) call(f func(h capi.SonicV2Connector, args []*byte) capi.Result, args ...string) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	k := new(KeepAlive)
	defer k.Release()
	cargs := make([]*byte, len(args))
	for i, a := range args {
		if cargs[i], err = k.cstr(a); err != nil {
			return err
		}
	}
	return check(f(h, cargs))
}

// Namespace returns the namespace as the native side reports it.
func (c *SonicV2Connector) Namespace() (string, error) {
	var out capi.String
	if err := c.call(func(h capi.SonicV2Connector, _ []*byte) capi.Result {
		return capi.SonicV2ConnectorGetNamespace(h, &out)
	}); err != nil {
		return "", err
	}
	return takeStr(out, "namespace")
}

// Connect connects to dbName. With retryOn it retries until connected.
func (c *SonicV2Connector) Connect(dbName string, retryOn bool) error {
	return c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorConnect(h, a[0], boolArg(retryOn))
	}, dbName)
}

// CloseDB closes the connection to dbName.
func (c *SonicV2Connector) CloseDB(dbName string) error {
	return c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorCloseDB(h, a[0])
	}, dbName)
}

// CloseAll closes every connection; the connector stays usable.
func (c *SonicV2Connector) CloseAll() error {
	return c.call(func(h capi.SonicV2Connector, _ []*byte) capi.Result {
		return capi.SonicV2ConnectorCloseAll(h)
	})
}

// DBList returns the database names of the namespace.
func (c *SonicV2Connector) DBList() ([]string, error) {
	var arr capi.StringArray
	if err := c.call(func(h capi.SonicV2Connector, _ []*byte) capi.Result {
		return capi.SonicV2ConnectorGetDBList(h, &arr)
	}); err != nil {
		return nil, err
	}
	return takeStringArray(arr)
}

// DBID returns the index of dbName.
func (c *SonicV2Connector) DBID(dbName string) (int, error) {
	var id int32
	err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorGetDBID(h, a[0], &id)
	}, dbName)
	return int(id), err
}

// DBSeparator returns the key separator of dbName.
func (c *SonicV2Connector) DBSeparator(dbName string) (string, error) {
	var out capi.String
	if err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorGetDBSeparator(h, a[0], &out)
	}, dbName); err != nil {
		return "", err
	}
	return takeStr(out, "separator")
}

// RedisClient opens a separate DBConnector to the connected database
// dbName. The caller closes it.
func (c *SonicV2Connector) RedisClient(dbName string) (*DBConnector, error) {
	var h capi.DBConnector
	if err := c.call(func(sh capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorGetRedisClient(sh, a[0], &h)
	}, dbName); err != nil {
		return nil, err
	}
	var info ConnectionInfo = NamedConnection{DBName: dbName, IsTCP: !c.useUnix}
	if c.netns != "" {
		info = KeyedConnection{DBName: dbName, IsTCP: !c.useUnix, Netns: c.netns}
	}
	return adoptDBConnector(h, info, 0), nil
}

// Publish publishes message on channel of dbName and returns the number of
// subscribers that received it.
func (c *SonicV2Connector) Publish(dbName, channel, message string) (int64, error) {
	var n int64
	err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorPublish(h, a[0], a[1], a[2], &n)
	}, dbName, channel, message)
	return n, err
}

// Exists reports whether key exists in dbName.
func (c *SonicV2Connector) Exists(dbName, key string) (bool, error) {
	var v int8
	err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorExists(h, a[0], a[1], &v)
	}, dbName, key)
	return v == 1, err
}

// Keys returns the keys of dbName matching pattern; an empty pattern
// matches every key. With blocking it waits until a key matches.
func (c *SonicV2Connector) Keys(dbName, pattern string, blocking bool) ([]string, error) {
	var arr capi.StringArray
	args := []string{dbName}
	if pattern != "" {
		args = append(args, pattern)
	}
	if err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		var p *byte
		if len(a) > 1 {
			p = a[1]
		}
		return capi.SonicV2ConnectorKeys(h, a[0], p, boolArg(blocking), &arr)
	}, args...); err != nil {
		return nil, err
	}
	return takeStringArray(arr)
}

// Get returns field key of hash, or nil when it is absent or stored as
// "None". With blocking it waits for the field.
func (c *SonicV2Connector) Get(dbName, hash, key string, blocking bool) (*OwnedString, error) {
	var out capi.String
	if err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorGet(h, a[0], a[1], a[2], boolArg(blocking), &out)
	}, dbName, hash, key); err != nil {
		return nil, err
	}
	return takeOptionalString(out), nil
}

// HExists reports whether field key of hash exists.
func (c *SonicV2Connector) HExists(dbName, hash, key string) (bool, error) {
	var v int8
	err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorHExists(h, a[0], a[1], a[2], &v)
	}, dbName, hash, key)
	return v == 1, err
}

// GetAll returns every field of hash. With blocking it waits until the hash
// exists.
func (c *SonicV2Connector) GetAll(dbName, hash string, blocking bool) (FieldValues, error) {
	var arr capi.FieldValueArray
	if err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorGetAll(h, a[0], a[1], boolArg(blocking), &arr)
	}, dbName, hash); err != nil {
		return nil, err
	}
	return takeFieldValueArray(arr)
}

// HMSet merges values into the hash key.
func (c *SonicV2Connector) HMSet(dbName, key string, values FieldSeq) error {
	arr, vk, err := makeFieldValueArray(values)
	if err != nil {
		return err
	}
	defer vk.Release()
	vk.pin(&arr)
	return c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorHMSet(h, a[0], a[1], &arr)
	}, dbName, key)
}

// Set sets field key of hash to value and returns 1 when the field is new.
// With blocking a failed write is retried.
func (c *SonicV2Connector) Set(dbName, hash, key, value string, blocking bool) (int64, error) {
	var n int64
	err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorSet(h, a[0], a[1], a[2], a[3], boolArg(blocking), &n)
	}, dbName, hash, key, value)
	return n, err
}

// Del deletes key and returns the number of keys removed. With blocking a
// failed delete is retried.
func (c *SonicV2Connector) Del(dbName, key string, blocking bool) (int64, error) {
	var n int64
	err := c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorDel(h, a[0], a[1], boolArg(blocking), &n)
	}, dbName, key)
	return n, err
}

// DeleteAllByPattern deletes every key of dbName matching pattern.
func (c *SonicV2Connector) DeleteAllByPattern(dbName, pattern string) error {
	return c.call(func(h capi.SonicV2Connector, a []*byte) capi.Result {
		return capi.SonicV2ConnectorDeleteAllByPattern(h, a[0], a[1])
	}, dbName, pattern)
}

// ConnectContext is Connect, abandoned when ctx ends.
func (c *SonicV2Connector) ConnectContext(ctx context.Context, dbName string, retryOn bool) error {
	return runBlocking(ctx, "SonicV2Connector.Connect", func() error { return c.Connect(dbName, retryOn) })
}

// PublishContext is Publish, abandoned when ctx ends.
func (c *SonicV2Connector) PublishContext(ctx context.Context, dbName, channel, message string) (int64, error) {
	return RunBlocking(ctx, "SonicV2Connector.Publish", func() (int64, error) { return c.Publish(dbName, channel, message) })
}

// ExistsContext is Exists, abandoned when ctx ends.
func (c *SonicV2Connector) ExistsContext(ctx context.Context, dbName, key string) (bool, error) {
	return RunBlocking(ctx, "SonicV2Connector.Exists", func() (bool, error) { return c.Exists(dbName, key) })
}

// KeysContext is Keys, abandoned when ctx ends.
func (c *SonicV2Connector) KeysContext(ctx context.Context, dbName, pattern string, blocking bool) ([]string, error) {
	return RunBlocking(ctx, "SonicV2Connector.Keys", func() ([]string, error) { return c.Keys(dbName, pattern, blocking) })
}

// GetContext is Get, abandoned when ctx ends.
func (c *SonicV2Connector) GetContext(ctx context.Context, dbName, hash, key string, blocking bool) (*OwnedString, error) {
	return RunBlocking(ctx, "SonicV2Connector.Get", func() (*OwnedString, error) { return c.Get(dbName, hash, key, blocking) })
}

// HExistsContext is HExists, abandoned when ctx ends.
func (c *SonicV2Connector) HExistsContext(ctx context.Context, dbName, hash, key string) (bool, error) {
	return RunBlocking(ctx, "SonicV2Connector.HExists", func() (bool, error) { return c.HExists(dbName, hash, key) })
}

// GetAllContext is GetAll, abandoned when ctx ends.
func (c *SonicV2Connector) GetAllContext(ctx context.Context, dbName, hash string, blocking bool) (FieldValues, error) {
	return RunBlocking(ctx, "SonicV2Connector.GetAll", func() (FieldValues, error) { return c.GetAll(dbName, hash, blocking) })
}

// HMSetContext is HMSet, abandoned when ctx ends.
func (c *SonicV2Connector) HMSetContext(ctx context.Context, dbName, key string, values FieldSeq) error {
	return runBlocking(ctx, "SonicV2Connector.HMSet", func() error { return c.HMSet(dbName, key, values) })
}

// SetContext is Set, abandoned when ctx ends.
func (c *SonicV2Connector) SetContext(ctx context.Context, dbName, hash, key, value string, blocking bool) (int64, error) {
	return RunBlocking(ctx, "SonicV2Connector.Set", func() (int64, error) { return c.Set(dbName, hash, key, value, blocking) })
}

// DelContext is Del, abandoned when ctx ends.
func (c *SonicV2Connector) DelContext(ctx context.Context, dbName, key string, blocking bool) (int64, error) {
	return RunBlocking(ctx, "SonicV2Connector.Del", func() (int64, error) { return c.Del(dbName, key, blocking) })
}

// DeleteAllByPatternContext is DeleteAllByPattern, abandoned when ctx ends.
func (c *SonicV2Connector) DeleteAllByPatternContext(ctx context.Context, dbName, pattern string) error {
	return runBlocking(ctx, "SonicV2Connector.DeleteAllByPattern", func() error { return c.DeleteAllByPattern(dbName, pattern) })
}
