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
	"fmt"
	"runtime"
	"time"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

const typeDBConnector = "DBConnector"

// DefaultCloneTimeout is the connection timeout used by Clone.
const DefaultCloneTimeout = 15 * time.Second

// ConnectionInfo describes how a DBConnector reached its database. It is
// one of TCPConnection, UnixConnection, NamedConnection or KeyedConnection.
type ConnectionInfo interface {
	fmt.Stringer
	connect(timeout time.Duration) (capi.DBConnector, error)
}

// TCPConnection selects database DBID on Host:Port.
type TCPConnection struct {
	DBID int
	Host string
	Port uint16
}

// UnixConnection selects database DBID over the unix socket SockPath.
type UnixConnection struct {
	DBID     int
	SockPath string
}

// NamedConnection selects a database of the local configuration by name.
type NamedConnection struct {
	DBName string
	IsTCP  bool
}

// KeyedConnection selects a database of the global configuration by name,
// container and namespace.
type KeyedConnection struct {
	DBName        string
	IsTCP         bool
	ContainerName string
	Netns         string
}

func (c TCPConnection) String() string {
	return fmt.Sprintf("tcp://%s:%d/%d", c.Host, c.Port, c.DBID)
}

func (c UnixConnection) String() string {
	return fmt.Sprintf("unix://%s/%d", c.SockPath, c.DBID)
}

func (c NamedConnection) String() string {
	return fmt.Sprintf("%s (tcp=%t)", c.DBName, c.IsTCP)
}

func (c KeyedConnection) String() string {
	return fmt.Sprintf("%s@%s/%s (tcp=%t)", c.DBName, c.ContainerName, c.Netns, c.IsTCP)
}

func (c TCPConnection) connect(timeout time.Duration) (capi.DBConnector, error) {
	id, err := int32Arg(c.DBID, "db id")
	if err != nil {
		return 0, err
	}
	k := new(KeepAlive)
	defer k.Release()
	host, err := k.cstr(c.Host)
	if err != nil {
		return 0, err
	}
	var h capi.DBConnector
	return h, check(capi.DBConnectorNewTCP(id, host, c.Port, connTimeoutMs(timeout), &h))
}

func (c UnixConnection) connect(timeout time.Duration) (capi.DBConnector, error) {
	id, err := int32Arg(c.DBID, "db id")
	if err != nil {
		return 0, err
	}
	k := new(KeepAlive)
	defer k.Release()
	path, err := k.cstr(c.SockPath)
	if err != nil {
		return 0, err
	}
	var h capi.DBConnector
	return h, check(capi.DBConnectorNewUnix(id, path, connTimeoutMs(timeout), &h))
}

func (c NamedConnection) connect(timeout time.Duration) (capi.DBConnector, error) {
	k := new(KeepAlive)
	defer k.Release()
	name, err := k.cstr(c.DBName)
	if err != nil {
		return 0, err
	}
	var h capi.DBConnector
	return h, check(capi.DBConnectorNewNamed(name, connTimeoutMs(timeout), boolArg(c.IsTCP), &h))
}

func (c KeyedConnection) connect(timeout time.Duration) (capi.DBConnector, error) {
	k := new(KeepAlive)
	defer k.Release()
	name, err := k.cstr(c.DBName)
	if err != nil {
		return 0, err
	}
	container, err := k.cstr(c.ContainerName)
	if err != nil {
		return 0, err
	}
	netns, err := k.cstr(c.Netns)
	if err != nil {
		return 0, err
	}
	var h capi.DBConnector
	return h, check(capi.DBConnectorNewKeyed(name, connTimeoutMs(timeout), boolArg(c.IsTCP), container, netns, &h))
}

// DBConnector is a connection to one logical database. It is not safe for
// concurrent use; give each goroutine its own Clone.
type DBConnector struct {
	h       capi.DBConnector
	info    ConnectionInfo
	timeout time.Duration
	cleanup runtime.Cleanup
}

// Connect opens a connection described by info. A timeout of zero or less
// blocks until connected.
func Connect(info ConnectionInfo, timeout time.Duration) (*DBConnector, error) {
	h, err := info.connect(timeout)
	if err != nil {
		return nil, err
	}
	return adoptDBConnector(h, info, timeout), nil
}

// adoptDBConnector takes ownership of a connection opened as info.
func adoptDBConnector(h capi.DBConnector, info ConnectionInfo, timeout time.Duration) *DBConnector {
	d := &DBConnector{h: h, info: info, timeout: timeout}
	d.cleanup = runtime.AddCleanup(d, freeDBConnector, h)
	return d
}

func freeDBConnector(h capi.DBConnector) {
	freeLogged(typeDBConnector, capi.DBConnectorFree(h))
}

// NewDBConnectorTCP connects to database dbID on host:port.
func NewDBConnectorTCP(dbID int, host string, port uint16, timeout time.Duration) (*DBConnector, error) {
	return Connect(TCPConnection{DBID: dbID, Host: host, Port: port}, timeout)
}

// NewDBConnectorUnix connects to database dbID over a unix socket.
func NewDBConnectorUnix(dbID int, sockPath string, timeout time.Duration) (*DBConnector, error) {
	return Connect(UnixConnection{DBID: dbID, SockPath: sockPath}, timeout)
}

// NewDBConnectorNamed connects to the database dbName of the local
// configuration.
func NewDBConnectorNamed(dbName string, isTCP bool, timeout time.Duration) (*DBConnector, error) {
	return Connect(NamedConnection{DBName: dbName, IsTCP: isTCP}, timeout)
}

// NewDBConnectorKeyed connects to the database dbName of the container and
// namespace in the global configuration.
func NewDBConnectorKeyed(dbName string, isTCP bool, timeout time.Duration, containerName, netns string) (*DBConnector, error) {
	return Connect(KeyedConnection{DBName: dbName, IsTCP: isTCP, ContainerName: containerName, Netns: netns}, timeout)
}

// ConnectionInfo returns how d was connected.
func (d *DBConnector) ConnectionInfo() ConnectionInfo { return d.info }

// Timeout returns the connection timeout d was opened with.
func (d *DBConnector) Timeout() time.Duration { return d.timeout }

// Clone opens a second connection to the same database with
// DefaultCloneTimeout. It panics if the connection fails; use TryClone to
// handle the error.
func (d *DBConnector) Clone() *DBConnector { return d.CloneTimeout(DefaultCloneTimeout) }

// CloneTimeout is Clone with the given connection timeout.
func (d *DBConnector) CloneTimeout(timeout time.Duration) *DBConnector {
	c, err := d.TryClone(timeout)
	if err != nil {
		panic(fmt.Sprintf("swss: clone of %s failed: %v", d.info, err))
	}
	return c
}

// TryClone opens a second connection to the same database.
func (d *DBConnector) TryClone(timeout time.Duration) (*DBConnector, error) {
	return Connect(d.info, timeout)
}

func (d *DBConnector) handle() (capi.DBConnector, error) {
	if d == nil || d.h == 0 {
		return 0, errClosed(typeDBConnector)
	}
	return d.h, nil
}

// Close releases the connection. Calling it again does nothing.
func (d *DBConnector) Close() {
	if d == nil || d.h == 0 {
		return
	}
	h := d.h
	d.h = 0
	d.cleanup.Stop()
	freeDBConnector(h)
}

// keyCall runs a native call taking one key.
func (d *DBConnector) keyCall(key string, f func(h capi.DBConnector, key *byte) capi.Result) error {
	h, err := d.handle()
	if err != nil {
		return err
	}
	k := new(KeepAlive)
	defer k.Release()
	ck, err := k.cstr(key)
	if err != nil {
		return err
	}
	return check(f(h, ck))
}

// fieldCall runs a native call taking a key and a field.
func (d *DBConnector) fieldCall(key, field string, f func(h capi.DBConnector, key, field *byte) capi.Result) error {
	h, err := d.handle()
	if err != nil {
		return err
	}
	k := new(KeepAlive)
	defer k.Release()
	ck, err := k.cstr(key)
	if err != nil {
		return err
	}
	cf, err := k.cstr(field)
	if err != nil {
		return err
	}
	return check(f(h, ck, cf))
}

// Del deletes key and reports whether it existed.
func (d *DBConnector) Del(key string) (bool, error) {
	var status int8
	err := d.keyCall(key, func(h capi.DBConnector, k *byte) capi.Result {
		return capi.DBConnectorDel(h, k, &status)
	})
	return status == 1, err
}

// Set stores value under key.
func (d *DBConnector) Set(key string, value []byte) error {
	return d.keyCall(key, func(h capi.DBConnector, k *byte) capi.Result {
		ka := new(KeepAlive)
		defer ka.Release()
		return capi.DBConnectorSet(h, k, capi.StrRef(ka.value(value)))
	})
}

// SetView stores the viewed string under key without copying it.
func (d *DBConnector) SetView(key string, value StringView) error {
	ref := value.ref()
	if ref == nil {
		return errorf(KindInvariant, "value for %q was freed", key)
	}
	err := d.keyCall(key, func(h capi.DBConnector, k *byte) capi.Result {
		return capi.DBConnectorSet(h, k, ref)
	})
	runtime.KeepAlive(value.o)
	return err
}

// Get returns the value of key, or nil when it does not exist.
func (d *DBConnector) Get(key string) (*OwnedString, error) {
	var out capi.String
	if err := d.keyCall(key, func(h capi.DBConnector, k *byte) capi.Result {
		return capi.DBConnectorGet(h, k, &out)
	}); err != nil {
		return nil, err
	}
	return takeOptionalString(out), nil
}

// Exists reports whether key exists.
func (d *DBConnector) Exists(key string) (bool, error) {
	var exists int8
	err := d.keyCall(key, func(h capi.DBConnector, k *byte) capi.Result {
		return capi.DBConnectorExists(h, k, &exists)
	})
	return exists == 1, err
}

// HDel deletes field of the hash key and reports whether it existed.
func (d *DBConnector) HDel(key, field string) (bool, error) {
	var status int8
	err := d.fieldCall(key, field, func(h capi.DBConnector, k, f *byte) capi.Result {
		return capi.DBConnectorHDel(h, k, f, &status)
	})
	return status == 1, err
}

// HSet sets field of the hash key.
func (d *DBConnector) HSet(key, field string, value []byte) error {
	return d.fieldCall(key, field, func(h capi.DBConnector, k, f *byte) capi.Result {
		ka := new(KeepAlive)
		defer ka.Release()
		return capi.DBConnectorHSet(h, k, f, capi.StrRef(ka.value(value)))
	})
}

// HGet returns field of the hash key, or nil when it does not exist.
func (d *DBConnector) HGet(key, field string) (*OwnedString, error) {
	var out capi.String
	if err := d.fieldCall(key, field, func(h capi.DBConnector, k, f *byte) capi.Result {
		return capi.DBConnectorHGet(h, k, f, &out)
	}); err != nil {
		return nil, err
	}
	return takeOptionalString(out), nil
}

// HGetAll returns every field of the hash key. A missing key yields an
// empty map.
func (d *DBConnector) HGetAll(key string) (FieldValues, error) {
	var arr capi.FieldValueArray
	if err := d.keyCall(key, func(h capi.DBConnector, k *byte) capi.Result {
		return capi.DBConnectorHGetAll(h, k, &arr)
	}); err != nil {
		return nil, err
	}
	return takeFieldValueArray(arr)
}

// HExists reports whether field of the hash key exists.
func (d *DBConnector) HExists(key, field string) (bool, error) {
	var exists int8
	err := d.fieldCall(key, field, func(h capi.DBConnector, k, f *byte) capi.Result {
		return capi.DBConnectorHExists(h, k, f, &exists)
	})
	return exists == 1, err
}

// FlushDB removes every key of the database.
func (d *DBConnector) FlushDB() (bool, error) {
	h, err := d.handle()
	if err != nil {
		return false, err
	}
	var status int8
	err = check(capi.DBConnectorFlushDB(h, &status))
	return status == 1, err
}

// GetContext is Get, abandoned when ctx ends.
func (d *DBConnector) GetContext(ctx context.Context, key string) (*OwnedString, error) {
	return RunBlocking(ctx, "DBConnector.Get", func() (*OwnedString, error) { return d.Get(key) })
}

// SetContext is Set, abandoned when ctx ends.
func (d *DBConnector) SetContext(ctx context.Context, key string, value []byte) error {
	return runBlocking(ctx, "DBConnector.Set", func() error { return d.Set(key, value) })
}

// DelContext is Del, abandoned when ctx ends.
func (d *DBConnector) DelContext(ctx context.Context, key string) (bool, error) {
	return RunBlocking(ctx, "DBConnector.Del", func() (bool, error) { return d.Del(key) })
}

// HGetContext is HGet, abandoned when ctx ends.
func (d *DBConnector) HGetContext(ctx context.Context, key, field string) (*OwnedString, error) {
	return RunBlocking(ctx, "DBConnector.HGet", func() (*OwnedString, error) { return d.HGet(key, field) })
}

// HSetContext is HSet, abandoned when ctx ends.
func (d *DBConnector) HSetContext(ctx context.Context, key, field string, value []byte) error {
	return runBlocking(ctx, "DBConnector.HSet", func() error { return d.HSet(key, field, value) })
}

// HGetAllContext is HGetAll, abandoned when ctx ends.
func (d *DBConnector) HGetAllContext(ctx context.Context, key string) (FieldValues, error) {
	return RunBlocking(ctx, "DBConnector.HGetAll", func() (FieldValues, error) { return d.HGetAll(key) })
}

// FlushDBContext is FlushDB, abandoned when ctx ends.
func (d *DBConnector) FlushDBContext(ctx context.Context) (bool, error) {
	return RunBlocking(ctx, "DBConnector.FlushDB", d.FlushDB)
}

// ExistsContext is Exists, abandoned when ctx ends.
func (d *DBConnector) ExistsContext(ctx context.Context, key string) (bool, error) {
	return RunBlocking(ctx, "DBConnector.Exists", func() (bool, error) { return d.Exists(key) })
}

// HDelContext is HDel, abandoned when ctx ends.
func (d *DBConnector) HDelContext(ctx context.Context, key, field string) (bool, error) {
	return RunBlocking(ctx, "DBConnector.HDel", func() (bool, error) { return d.HDel(key, field) })
}

// HExistsContext is HExists, abandoned when ctx ends.
func (d *DBConnector) HExistsContext(ctx context.Context, key, field string) (bool, error) {
	return RunBlocking(ctx, "DBConnector.HExists", func() (bool, error) { return d.HExists(key, field) })
}

// CloneContext is TryClone, abandoned when ctx ends. A connection that
// completes after ctx ended is released by its cleanup.
func (d *DBConnector) CloneContext(ctx context.Context, timeout time.Duration) (*DBConnector, error) {
	return RunBlocking(ctx, "DBConnector.Clone", func() (*DBConnector, error) { return d.TryClone(timeout) })
}

// detach hands the native connection to a new owner; d is closed afterwards.
func (d *DBConnector) detach() capi.DBConnector {
	h := d.h
	d.h = 0
	d.cleanup.Stop()
	return h
}
