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
	"fmt"
	"sync"
	"time"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
)

const (
	typeConfigDBConnector = "ConfigDBConnector"

	configDBName         = "CONFIG_DB"
	configDBSeparator    = "|"
	configDBInitKey      = "CONFIG_DB_INITIALIZED"
	configDBPollInterval = 100 * time.Millisecond
)

// ConfigDBConnector accesses CONFIG_DB, whose keys are TABLE|key.
type ConfigDBConnector uint64

type configDBConnector struct {
	useUnix bool
	key     dbconfig.Key

	mu sync.Mutex
	db *dbConnector
}

var errNotConnected = errors.New("config db connector is not connected")

// ConfigDBConnectorNew creates a connector for the CONFIG_DB of netns.
// It does not connect.
func ConfigDBConnectorNew(useUnixSocketPath uint8, netns *byte, out *ConfigDBConnector) Result {
	return try("ConfigDBConnectorNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		c := &configDBConnector{useUnix: useUnixSocketPath != 0, key: dbconfig.Key{Namespace: GoString(netns)}}
		*out = ConfigDBConnector(newHandle(typeConfigDBConnector, c))
		return nil
	})
}

// ConfigDBConnectorFree closes c.
func ConfigDBConnectorFree(c ConfigDBConnector) Result {
	return try("ConfigDBConnectorFree", func() error {
		cc, err := dropHandle[configDBConnector](typeConfigDBConnector, uint64(c))
		if err != nil {
			return err
		}
		cc.mu.Lock()
		defer cc.mu.Unlock()
		if cc.db == nil {
			return nil
		}
		return cc.db.st.Close()
	})
}

// ConfigDBConnectorConnect connects to CONFIG_DB. With waitForInit it
// blocks until CONFIG_DB_INITIALIZED is set; with retryOn it retries
// failed connects.
func ConfigDBConnectorConnect(c ConfigDBConnector, waitForInit, retryOn uint8) Result {
	return try("ConfigDBConnectorConnect", func() error {
		cc, err := getObject[configDBConnector](typeConfigDBConnector, uint64(c))
		if err != nil {
			return err
		}
		db, err := cc.dial(retryOn != 0)
		if err != nil {
			return err
		}
		if waitForInit != 0 {
			if err := waitInitialized(context.Background(), db); err != nil {
				_ = db.st.Close()
				return err
			}
		}
		cc.mu.Lock()
		old := cc.db
		cc.db = db
		cc.mu.Unlock()
		if old != nil {
			_ = old.st.Close()
		}
		return nil
	})
}

func (cc *configDBConnector) dial(retry bool) (*dbConnector, error) {
	db, err := dialNamed(configDBName, cc.useUnix, cc.key, retry)
	if err != nil {
		return nil, err
	}
	db.sep = configDBSeparator
	return db, nil
}

func waitInitialized(ctx context.Context, db *dbConnector) error {
	for {
		v, ok, err := db.st.Get(ctx, configDBInitKey)
		if err != nil {
			return err
		}
		if ok && v == "1" {
			return nil
		}
		time.Sleep(configDBPollInterval)
	}
}

func withConfigDB(location string, c ConfigDBConnector, f func(ctx context.Context, db *dbConnector) error) Result {
	return try(location, func() error {
		cc, err := getObject[configDBConnector](typeConfigDBConnector, uint64(c))
		if err != nil {
			return err
		}
		cc.mu.Lock()
		db := cc.db
		cc.mu.Unlock()
		if db == nil {
			return errNotConnected
		}
		return f(context.Background(), db)
	})
}

func configKey(table, key string) string {
	return fmt.Sprintf("%s%s%s", table, configDBSeparator, key)
}

// ConfigDBConnectorGetEntry stores the fields of table|key.
func ConfigDBConnectorGetEntry(c ConfigDBConnector, table, key *byte, outEntry *FieldValueArray) Result {
	return withConfigDB("ConfigDBConnectorGetEntry", c, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outEntry); err != nil {
			return err
		}
		fvs, err := db.st.HGetAll(ctx, configKey(GoString(table), GoString(key)))
		if err != nil {
			return err
		}
		*outEntry = makeFieldValueArray(fvs)
		return nil
	})
}

// ConfigDBConnectorGetKeys stores the keys of table. With split the table
// name is removed from each key.
func ConfigDBConnectorGetKeys(c ConfigDBConnector, table *byte, split uint8, outKeys *StringArray) Result {
	return withConfigDB("ConfigDBConnectorGetKeys", c, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outKeys); err != nil {
			return err
		}
		prefix := configKey(GoString(table), "")
		keys, err := tableKeys(ctx, db, prefix)
		if err != nil {
			return err
		}
		if split == 0 {
			for i, k := range keys {
				keys[i] = prefix + k
			}
		}
		*outKeys = makeStringArray(keys)
		return nil
	})
}

// ConfigDBConnectorGetTable stores every entry of table as a set record.
func ConfigDBConnectorGetTable(c ConfigDBConnector, table *byte, outTable *KeyOpFieldValuesArray) Result {
	return withConfigDB("ConfigDBConnectorGetTable", c, func(ctx context.Context, db *dbConnector) error {
		if err := checkOut(outTable); err != nil {
			return err
		}
		name := GoString(table)
		keys, err := tableKeys(ctx, db, configKey(name, ""))
		if err != nil {
			return err
		}
		entries := make([]entry, 0, len(keys))
		for _, k := range keys {
			fvs, err := db.st.HGetAll(ctx, configKey(name, k))
			if err != nil {
				return err
			}
			entries = append(entries, entry{Key: k, Fields: fvs})
		}
		*outTable = makeKeyOpFieldValuesArray(entries)
		return nil
	})
}

// ConfigDBConnectorSetEntry replaces table|key with data. Empty data
// deletes the entry. The value strings are moved out.
func ConfigDBConnectorSetEntry(c ConfigDBConnector, table, key *byte, data *FieldValueArray) Result {
	return withConfigDB("ConfigDBConnectorSetEntry", c, func(ctx context.Context, db *dbConnector) error {
		k := configKey(GoString(table), GoString(key))
		var fvs []fieldValue
		if data != nil {
			fvs = readFieldValueArray(*data)
		}
		if _, err := db.st.Del(ctx, k); err != nil {
			return err
		}
		if len(fvs) == 0 {
			return nil
		}
		return db.st.HSet(ctx, k, fvs...)
	})
}

// ConfigDBConnectorModEntry merges data into table|key. Empty data deletes
// the entry.
func ConfigDBConnectorModEntry(c ConfigDBConnector, table, key *byte, data *FieldValueArray) Result {
	return withConfigDB("ConfigDBConnectorModEntry", c, func(ctx context.Context, db *dbConnector) error {
		k := configKey(GoString(table), GoString(key))
		var fvs []fieldValue
		if data != nil {
			fvs = readFieldValueArray(*data)
		}
		if len(fvs) == 0 {
			_, err := db.st.Del(ctx, k)
			return err
		}
		return db.st.HSet(ctx, k, fvs...)
	})
}

// ConfigDBConnectorDeleteTable deletes every entry of table.
func ConfigDBConnectorDeleteTable(c ConfigDBConnector, table *byte) Result {
	return withConfigDB("ConfigDBConnectorDeleteTable", c, func(ctx context.Context, db *dbConnector) error {
		prefix := configKey(GoString(table), "")
		keys, err := tableKeys(ctx, db, prefix)
		if err != nil || len(keys) == 0 {
			return err
		}
		for i, k := range keys {
			keys[i] = prefix + k
		}
		_, err = db.st.Del(ctx, keys...)
		return err
	})
}
