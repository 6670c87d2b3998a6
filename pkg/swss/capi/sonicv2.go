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
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

const (
	typeSonicV2Connector = "SonicV2Connector"

	// noneValue is read back as an absent field.
	noneValue = "None"

	sonicV2PollInterval = 100 * time.Millisecond
	sonicV2RetryBackoff = time.Second
)

// SonicV2Connector addresses every database of a namespace by name, with
// one connection per connected database.
type SonicV2Connector uint64

type sonicV2Connector struct {
	useUnix bool
	key     dbconfig.Key

	mu  sync.Mutex
	dbs map[string]*dbConnector
}

// dialNamed opens a connection to the database name of key. With retry it
// keeps trying until it succeeds.
func dialNamed(name string, useUnix bool, key dbconfig.Key, retry bool) (*dbConnector, error) {
	for {
		opts, err := namedOptions(name, !useUnix, 0, key)
		if err == nil {
			var db *dbConnector
			if db, err = openConnector(opts, name, key); err == nil {
				return db, nil
			}
		}
		if !retry {
			return nil, err
		}
		log().Warn("database connect failed, retrying", zap.String("db", name), zap.Error(err))
		time.Sleep(sonicV2RetryBackoff)
	}
}

// SonicV2ConnectorNew creates a connector for the databases of netns. It
// does not connect.
func SonicV2ConnectorNew(useUnixSocketPath uint8, netns *byte, out *SonicV2Connector) Result {
	return try("SonicV2ConnectorNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		c := &sonicV2Connector{
			useUnix: useUnixSocketPath != 0,
			key:     dbconfig.Key{Namespace: GoString(netns)},
			dbs:     map[string]*dbConnector{},
		}
		*out = SonicV2Connector(newHandle(typeSonicV2Connector, c))
		return nil
	})
}

// SonicV2ConnectorFree closes every connection of c.
func SonicV2ConnectorFree(c SonicV2Connector) Result {
	return try("SonicV2ConnectorFree", func() error {
		sc, err := dropHandle[sonicV2Connector](typeSonicV2Connector, uint64(c))
		if err != nil {
			return err
		}
		return sc.closeAll()
	})
}

func (sc *sonicV2Connector) closeAll() error {
	sc.mu.Lock()
	dbs := sc.dbs
	sc.dbs = map[string]*dbConnector{}
	sc.mu.Unlock()
	var first error
	for _, db := range dbs {
		if err := db.st.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (sc *sonicV2Connector) conn(name string) (*dbConnector, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	db, ok := sc.dbs[name]
	if !ok {
		return nil, fmt.Errorf("database %s is not connected", name)
	}
	return db, nil
}

func withSonicV2(location string, c SonicV2Connector, f func(sc *sonicV2Connector) error) Result {
	return try(location, func() error {
		sc, err := getObject[sonicV2Connector](typeSonicV2Connector, uint64(c))
		if err != nil {
			return err
		}
		return f(sc)
	})
}

// withSonicV2DB runs f on the connection to dbName.
func withSonicV2DB(location string, c SonicV2Connector, dbName *byte, f func(ctx context.Context, db *dbConnector) error) Result {
	return withSonicV2(location, c, func(sc *sonicV2Connector) error {
		db, err := sc.conn(GoString(dbName))
		if err != nil {
			return err
		}
		return f(context.Background(), db)
	})
}

// SonicV2ConnectorGetNamespace stores the namespace of c.
func SonicV2ConnectorGetNamespace(c SonicV2Connector, outNamespace *String) Result {
	return withSonicV2("SonicV2ConnectorGetNamespace", c, func(sc *sonicV2Connector) error {
		if err := checkOut(outNamespace); err != nil {
			return err
		}
		*outNamespace = newStringFrom(sc.key.Namespace)
		return nil
	})
}

// SonicV2ConnectorConnect connects to dbName, replacing an earlier
// connection to it. With retryOn it retries failed connects.
func SonicV2ConnectorConnect(c SonicV2Connector, dbName *byte, retryOn uint8) Result {
	return withSonicV2("SonicV2ConnectorConnect", c, func(sc *sonicV2Connector) error {
		name := GoString(dbName)
		db, err := dialNamed(name, sc.useUnix, sc.key, retryOn != 0)
		if err != nil {
			return err
		}
		sc.mu.Lock()
		old := sc.dbs[name]
		sc.dbs[name] = db
		sc.mu.Unlock()
		if old != nil {
			_ = old.st.Close()
		}
		return nil
	})
}

// SonicV2ConnectorCloseDB closes the connection to dbName, if any.
func SonicV2ConnectorCloseDB(c SonicV2Connector, dbName *byte) Result {
	return withSonicV2("SonicV2ConnectorCloseDB", c, func(sc *sonicV2Connector) error {
		name := GoString(dbName)
		sc.mu.Lock()
		db := sc.dbs[name]
		delete(sc.dbs, name)
		sc.mu.Unlock()
		if db == nil {
			return nil
		}
		return db.st.Close()
	})
}

// SonicV2ConnectorCloseAll closes every connection of c.
func SonicV2ConnectorCloseAll(c SonicV2Connector) Result {
	return withSonicV2("SonicV2ConnectorCloseAll", c, func(sc *sonicV2Connector) error {
		return sc.closeAll()
	})
}

// SonicV2ConnectorGetDBList stores the database names of the namespace.
func SonicV2ConnectorGetDBList(c SonicV2Connector, outList *StringArray) Result {
	return withSonicV2("SonicV2ConnectorGetDBList", c, func(sc *sonicV2Connector) error {
		if err := checkOut(outList); err != nil {
			return err
		}
		names, err := dbconfig.Default().DatabaseNames(sc.key)
		if err != nil {
			return err
		}
		*outList = makeStringArray(names)
		return nil
	})
}

// SonicV2ConnectorGetDBID stores the index of dbName.
func SonicV2ConnectorGetDBID(c SonicV2Connector, dbName *byte, outID *int32) Result {
	return withSonicV2("SonicV2ConnectorGetDBID", c, func(sc *sonicV2Connector) error {
		if err := checkOut(outID); err != nil {
			return err
		}
		db, _, err := dbconfig.Default().Lookup(GoString(dbName), sc.key)
		if err != nil {
			return err
		}
		*outID = int32(db.ID)
		return nil
	})
}

// SonicV2ConnectorGetDBSeparator stores the key separator of dbName.
func SonicV2ConnectorGetDBSeparator(c SonicV2Connector, dbName *byte, outSep *String) Result {
	return withSonicV2("SonicV2ConnectorGetDBSeparator", c, func(sc *sonicV2Connector) error {
		if err := checkOut(outSep); err != nil {
			return err
		}
		sep, err := dbconfig.Default().Separator(GoString(dbName), sc.key)
		if err != nil {
			return err
		}
		*outSep = newStringFrom(sep)
		return nil
	})
}

// SonicV2ConnectorGetRedisClient opens a DBConnector to the connected
// database dbName. The caller frees it.
func SonicV2ConnectorGetRedisClient(c SonicV2Connector, dbName *byte, out *DBConnector) Result {
	return withSonicV2DB("SonicV2ConnectorGetRedisClient", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(out); err != nil {
			return err
		}
		st, err := store.Open(ctx, db.opts)
		if err != nil {
			return err
		}
		putConnector(&dbConnector{st: st, opts: db.opts, name: db.name, sep: db.sep}, out)
		return nil
	})
}

// SonicV2ConnectorPublish publishes message on channel of dbName and
// stores the number of receivers.
func SonicV2ConnectorPublish(c SonicV2Connector, dbName, channel, message *byte, outCount *int64) Result {
	return withSonicV2DB("SonicV2ConnectorPublish", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outCount); err != nil {
			return err
		}
		n, err := db.st.Publish(ctx, GoString(channel), GoString(message))
		if err != nil {
			return err
		}
		*outCount = n
		return nil
	})
}

// SonicV2ConnectorExists reports whether key exists in dbName.
func SonicV2ConnectorExists(c SonicV2Connector, dbName, key *byte, outExists *int8) Result {
	return withSonicV2DB("SonicV2ConnectorExists", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outExists); err != nil {
			return err
		}
		ok, err := db.st.Exists(ctx, GoString(key))
		if err != nil {
			return err
		}
		putBool(outExists, ok)
		return nil
	})
}

// waitFor calls read until it reports a result. Without blocking it calls
// read once.
func waitFor(blocking bool, read func() (bool, error)) error {
	for {
		found, err := read()
		if err != nil || found || !blocking {
			return err
		}
		time.Sleep(sonicV2PollInterval)
	}
}

// retryWrite calls write until it succeeds. Without blocking it calls
// write once.
func retryWrite(blocking bool, name string, write func() error) error {
	for {
		err := write()
		if err == nil || !blocking {
			return err
		}
		log().Warn("database write failed, retrying", zap.String("db", name), zap.Error(err))
		time.Sleep(sonicV2RetryBackoff)
	}
}

// SonicV2ConnectorKeys stores the keys of dbName matching pattern; a nil
// pattern matches every key. With blocking it waits for a match.
func SonicV2ConnectorKeys(c SonicV2Connector, dbName, pattern *byte, blocking uint8, outKeys *StringArray) Result {
	return withSonicV2DB("SonicV2ConnectorKeys", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outKeys); err != nil {
			return err
		}
		p := "*"
		if pattern != nil {
			p = GoString(pattern)
		}
		var keys []string
		err := waitFor(blocking != 0, func() (bool, error) {
			var err error
			keys, err = db.st.Keys(ctx, p)
			return len(keys) > 0, err
		})
		if err != nil {
			return err
		}
		*outKeys = makeStringArray(keys)
		return nil
	})
}

// SonicV2ConnectorGet stores field key of hash in outValue, or nil when
// absent or "None". With blocking it waits for the field.
func SonicV2ConnectorGet(c SonicV2Connector, dbName, hash, key *byte, blocking uint8, outValue *String) Result {
	return withSonicV2DB("SonicV2ConnectorGet", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outValue); err != nil {
			return err
		}
		h, f := GoString(hash), GoString(key)
		var (
			v  string
			ok bool
		)
		err := waitFor(blocking != 0, func() (bool, error) {
			var err error
			v, ok, err = db.st.HGet(ctx, h, f)
			return ok, err
		})
		if err != nil {
			return err
		}
		*outValue = nil
		if ok && v != noneValue {
			*outValue = newStringFrom(v)
		}
		return nil
	})
}

// SonicV2ConnectorHExists reports whether field key of hash exists.
func SonicV2ConnectorHExists(c SonicV2Connector, dbName, hash, key *byte, outExists *int8) Result {
	return withSonicV2DB("SonicV2ConnectorHExists", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outExists); err != nil {
			return err
		}
		ok, err := db.st.HExists(ctx, GoString(hash), GoString(key))
		if err != nil {
			return err
		}
		putBool(outExists, ok)
		return nil
	})
}

// SonicV2ConnectorGetAll stores every field of hash. With blocking it
// waits until the hash exists.
func SonicV2ConnectorGetAll(c SonicV2Connector, dbName, hash *byte, blocking uint8, outArr *FieldValueArray) Result {
	return withSonicV2DB("SonicV2ConnectorGetAll", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outArr); err != nil {
			return err
		}
		h := GoString(hash)
		var fvs []fieldValue
		err := waitFor(blocking != 0, func() (bool, error) {
			var err error
			fvs, err = db.st.HGetAll(ctx, h)
			return len(fvs) > 0, err
		})
		if err != nil {
			return err
		}
		*outArr = makeFieldValueArray(fvs)
		return nil
	})
}

// SonicV2ConnectorHMSet merges values into key. The value strings are
// moved out.
func SonicV2ConnectorHMSet(c SonicV2Connector, dbName, key *byte, values *FieldValueArray) Result {
	return withSonicV2DB("SonicV2ConnectorHMSet", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if values == nil {
			return nil
		}
		fvs := readFieldValueArray(*values)
		if len(fvs) == 0 {
			return nil
		}
		return db.st.HSet(ctx, GoString(key), fvs...)
	})
}

// SonicV2ConnectorSet sets field key of hash to value and stores 1 when
// the field is new. With blocking a failed write is retried.
func SonicV2ConnectorSet(c SonicV2Connector, dbName, hash, key, value *byte, blocking uint8, outResult *int64) Result {
	return withSonicV2DB("SonicV2ConnectorSet", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outResult); err != nil {
			return err
		}
		h, f, v := GoString(hash), GoString(key), GoString(value)
		return retryWrite(blocking != 0, db.name, func() error {
			existed, err := db.st.HExists(ctx, h, f)
			if err != nil {
				return err
			}
			if err := db.st.HSet(ctx, h, fieldValue{Field: f, Value: v}); err != nil {
				return err
			}
			*outResult = 1
			if existed {
				*outResult = 0
			}
			return nil
		})
	})
}

// SonicV2ConnectorDel deletes key and stores the number of keys removed.
// With blocking a failed delete is retried.
func SonicV2ConnectorDel(c SonicV2Connector, dbName, key *byte, blocking uint8, outResult *int64) Result {
	return withSonicV2DB("SonicV2ConnectorDel", c, dbName, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outResult); err != nil {
			return err
		}
		k := GoString(key)
		return retryWrite(blocking != 0, db.name, func() error {
			n, err := db.st.Del(ctx, k)
			*outResult = n
			return err
		})
	})
}

// SonicV2ConnectorDeleteAllByPattern deletes every key of dbName matching
// pattern.
func SonicV2ConnectorDeleteAllByPattern(c SonicV2Connector, dbName, pattern *byte) Result {
	return withSonicV2DB("SonicV2ConnectorDeleteAllByPattern", c, dbName, func(ctx context.Context, db *dbConnector) error {
		keys, err := db.st.Keys(ctx, GoString(pattern))
		if err != nil || len(keys) == 0 {
			return err
		}
		_, err = db.st.Del(ctx, keys...)
		return err
	})
}
