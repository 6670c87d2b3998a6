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
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
	_ "github.com/sonic-net/sonic-swss-common/pkg/swss/store/memstore"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/store/redisstore"
)

func init() {
	store.SetFallback(redisstore.Driver{})
}

const typeDBConnector = "DBConnector"

// InfiniteTimeout as a timeout_ms argument means no limit: connections
// never time out and readiness waits block.
const InfiniteTimeout = math.MaxUint32

// DBConnector is a connection to one logical database.
type DBConnector uint64

type dbConnector struct {
	st   store.Store
	opts store.Options
	name string
	sep  string
}

func msDuration(ms uint32) time.Duration {
	if ms == InfiniteTimeout {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func openConnector(opts store.Options, name string, key dbconfig.Key) (*dbConnector, error) {
	st, err := store.Open(context.Background(), opts)
	if err != nil {
		return nil, err
	}
	reg := dbconfig.Default()
	if name == "" {
		name = reg.NameByID(opts.DB, key)
	}
	sep := dbconfig.DefaultSeparator
	if name != "" {
		if s, err := reg.Separator(name, key); err == nil && s != "" {
			sep = s
		}
	}
	return &dbConnector{st: st, opts: opts, name: name, sep: sep}, nil
}

// dbName names the database in transport messages: its configured name, or
// its index when it has none.
func (c *dbConnector) dbName() string {
	if c.name != "" {
		return c.name
	}
	return strconv.Itoa(c.opts.DB)
}

func namedOptions(dbName string, isTCP bool, timeout time.Duration, key dbconfig.Key) (store.Options, error) {
	db, inst, err := dbconfig.Default().Lookup(dbName, key)
	if err != nil {
		return store.Options{}, err
	}
	opts := store.Options{DB: db.ID, Timeout: timeout}
	if isTCP {
		opts.Network = "tcp"
		opts.Addr = net.JoinHostPort(inst.Hostname, strconv.Itoa(inst.Port))
	} else {
		if inst.UnixSocketPath == "" {
			return store.Options{}, fmt.Errorf("instance %q of %s has no unix socket path", db.Instance, dbName)
		}
		opts.Network = "unix"
		opts.Addr = inst.UnixSocketPath
	}
	return opts, nil
}

func putConnector(c *dbConnector, out *DBConnector) {
	*out = DBConnector(newHandle(typeDBConnector, c))
}

// DBConnectorNewTCP connects to database dbID on hostname:port.
func DBConnectorNewTCP(dbID int32, hostname *byte, port uint16, timeoutMs uint32, out *DBConnector) Result {
	return try("DBConnectorNewTCP", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		opts := store.Options{
			Network: "tcp",
			Addr:    net.JoinHostPort(GoString(hostname), strconv.Itoa(int(port))),
			DB:      int(dbID),
			Timeout: msDuration(timeoutMs),
		}
		c, err := openConnector(opts, "", dbconfig.Key{})
		if err != nil {
			return err
		}
		putConnector(c, out)
		return nil
	})
}

// DBConnectorNewUnix connects to database dbID over a unix socket.
func DBConnectorNewUnix(dbID int32, sockPath *byte, timeoutMs uint32, out *DBConnector) Result {
	return try("DBConnectorNewUnix", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		opts := store.Options{Network: "unix", Addr: GoString(sockPath), DB: int(dbID), Timeout: msDuration(timeoutMs)}
		c, err := openConnector(opts, "", dbconfig.Key{})
		if err != nil {
			return err
		}
		putConnector(c, out)
		return nil
	})
}

// DBConnectorNewNamed connects to a database of the local configuration
// by name.
func DBConnectorNewNamed(dbName *byte, timeoutMs uint32, isTCPConn uint8, out *DBConnector) Result {
	return try("DBConnectorNewNamed", func() error {
		return newKeyed(GoString(dbName), timeoutMs, isTCPConn != 0, dbconfig.Key{}, out)
	})
}

// DBConnectorNewKeyed connects to a database of the global configuration,
// selected by container name and namespace.
func DBConnectorNewKeyed(dbName *byte, timeoutMs uint32, isTCPConn uint8, containerName, netns *byte, out *DBConnector) Result {
	return try("DBConnectorNewKeyed", func() error {
		key := dbconfig.Key{Namespace: GoString(netns), ContainerName: GoString(containerName)}
		return newKeyed(GoString(dbName), timeoutMs, isTCPConn != 0, key, out)
	})
}

func newKeyed(name string, timeoutMs uint32, isTCP bool, key dbconfig.Key, out *DBConnector) error {
	if err := checkOut(out); err != nil {
		return err
	}
	opts, err := namedOptions(name, isTCP, msDuration(timeoutMs), key)
	if err != nil {
		return err
	}
	c, err := openConnector(opts, name, key)
	if err != nil {
		return err
	}
	putConnector(c, out)
	return nil
}

// DBConnectorFree closes db.
func DBConnectorFree(db DBConnector) Result {
	return try("DBConnectorFree", func() error {
		c, err := dropHandle[dbConnector](typeDBConnector, uint64(db))
		if err != nil {
			return err
		}
		return c.st.Close()
	})
}

func withConnector(location string, db DBConnector, f func(ctx context.Context, c *dbConnector) error) Result {
	return try(location, func() error {
		c, err := getObject[dbConnector](typeDBConnector, uint64(db))
		if err != nil {
			return err
		}
		return f(context.Background(), c)
	})
}

func putBool(out *int8, b bool) {
	if b {
		*out = 1
	} else {
		*out = 0
	}
}

// DBConnectorDel deletes key; outStatus is 1 when it existed.
func DBConnectorDel(db DBConnector, key *byte, outStatus *int8) Result {
	return withConnector("DBConnectorDel", db, func(ctx context.Context, c *dbConnector) error {
		if err := checkOut(outStatus); err != nil {
			return err
		}
		n, err := c.st.Del(ctx, GoString(key))
		if err != nil {
			return err
		}
		putBool(outStatus, n > 0)
		return nil
	})
}

// DBConnectorSet sets key to value. value is only viewed.
func DBConnectorSet(db DBConnector, key *byte, value StrRef) Result {
	return withConnector("DBConnectorSet", db, func(ctx context.Context, c *dbConnector) error {
		return c.st.Set(ctx, GoString(key), refString(value))
	})
}

// DBConnectorGet stores the value of key in outValue, or nil when absent.
func DBConnectorGet(db DBConnector, key *byte, outValue *String) Result {
	return withConnector("DBConnectorGet", db, func(ctx context.Context, c *dbConnector) error {
		if err := checkOut(outValue); err != nil {
			return err
		}
		v, ok, err := c.st.Get(ctx, GoString(key))
		if err != nil {
			return err
		}
		*outValue = nil
		if ok {
			*outValue = newStringFrom(v)
		}
		return nil
	})
}

// DBConnectorExists reports whether key exists.
func DBConnectorExists(db DBConnector, key *byte, outExists *int8) Result {
	return withConnector("DBConnectorExists", db, func(ctx context.Context, c *dbConnector) error {
		if err := checkOut(outExists); err != nil {
			return err
		}
		ok, err := c.st.Exists(ctx, GoString(key))
		if err != nil {
			return err
		}
		putBool(outExists, ok)
		return nil
	})
}

// DBConnectorHDel deletes a hash field; outResult is 1 when it existed.
func DBConnectorHDel(db DBConnector, key, field *byte, outResult *int8) Result {
	return withConnector("DBConnectorHDel", db, func(ctx context.Context, c *dbConnector) error {
		if err := checkOut(outResult); err != nil {
			return err
		}
		n, err := c.st.HDel(ctx, GoString(key), GoString(field))
		if err != nil {
			return err
		}
		putBool(outResult, n > 0)
		return nil
	})
}

// DBConnectorHSet sets a hash field. value is only viewed.
func DBConnectorHSet(db DBConnector, key, field *byte, value StrRef) Result {
	return withConnector("DBConnectorHSet", db, func(ctx context.Context, c *dbConnector) error {
		return c.st.HSet(ctx, GoString(key), fieldValue{Field: GoString(field), Value: refString(value)})
	})
}

// DBConnectorHGet stores a hash field in outValue, or nil when absent.
func DBConnectorHGet(db DBConnector, key, field *byte, outValue *String) Result {
	return withConnector("DBConnectorHGet", db, func(ctx context.Context, c *dbConnector) error {
		if err := checkOut(outValue); err != nil {
			return err
		}
		v, ok, err := c.st.HGet(ctx, GoString(key), GoString(field))
		if err != nil {
			return err
		}
		*outValue = nil
		if ok {
			*outValue = newStringFrom(v)
		}
		return nil
	})
}

// DBConnectorHGetAll stores every field of a hash in outArr.
func DBConnectorHGetAll(db DBConnector, key *byte, outArr *FieldValueArray) Result {
	return withConnector("DBConnectorHGetAll", db, func(ctx context.Context, c *dbConnector) error {
		if err := checkOut(outArr); err != nil {
			return err
		}
		fvs, err := c.st.HGetAll(ctx, GoString(key))
		if err != nil {
			return err
		}
		*outArr = makeFieldValueArray(fvs)
		return nil
	})
}

// DBConnectorHExists reports whether a hash field exists.
func DBConnectorHExists(db DBConnector, key, field *byte, outExists *int8) Result {
	return withConnector("DBConnectorHExists", db, func(ctx context.Context, c *dbConnector) error {
		if err := checkOut(outExists); err != nil {
			return err
		}
		ok, err := c.st.HExists(ctx, GoString(key), GoString(field))
		if err != nil {
			return err
		}
		putBool(outExists, ok)
		return nil
	})
}

// DBConnectorFlushDB removes every key of the database.
func DBConnectorFlushDB(db DBConnector, outStatus *int8) Result {
	return withConnector("DBConnectorFlushDB", db, func(ctx context.Context, c *dbConnector) error {
		if err := checkOut(outStatus); err != nil {
			return err
		}
		err := c.st.FlushDB(ctx)
		putBool(outStatus, err == nil)
		return err
	})
}

// SonicDBConfigInitialize loads the local database configuration. An empty
// or nil path reads the default location.
func SonicDBConfigInitialize(path *byte) Result {
	return try("SonicDBConfigInitialize", func() error {
		return dbconfig.Default().Initialize(GoString(path))
	})
}

// SonicDBConfigInitializeGlobal loads the global database configuration.
func SonicDBConfigInitializeGlobal(path *byte) Result {
	return try("SonicDBConfigInitializeGlobal", func() error {
		return dbconfig.Default().InitializeGlobal(GoString(path))
	})
}
