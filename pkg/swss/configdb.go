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

const typeConfigDBConnector = "ConfigDBConnector"

// ConfigDBConnector reads and writes CONFIG_DB entries, addressed by table
// and key.
type ConfigDBConnector struct {
	owner[capi.ConfigDBConnector]
}

// NewConfigDBConnector creates a connector for the CONFIG_DB of netns. It
// does not connect; call Connect.
func NewConfigDBConnector(useUnixSocketPath bool, netns string) (*ConfigDBConnector, error) {
	k := new(KeepAlive)
	defer k.Release()
	cns, err := k.cstr(netns)
	if err != nil {
		return nil, err
	}
	var h capi.ConfigDBConnector
	if err := check(capi.ConfigDBConnectorNew(boolArg(useUnixSocketPath), cns, &h)); err != nil {
		return nil, err
	}
	c := &ConfigDBConnector{owner: newOwner(typeConfigDBConnector, h, nil, capi.ConfigDBConnectorFree)}
	track(c, &c.owner)
	return c, nil
}

// Close releases the connector.
func (c *ConfigDBConnector) Close() { c.close() }

// Connect connects to CONFIG_DB. With waitForInit it blocks until the
// database is marked initialized; with retryOn it retries failed connects.
func (c *ConfigDBConnector) Connect(waitForInit, retryOn bool) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	return check(capi.ConfigDBConnectorConnect(h, boolArg(waitForInit), boolArg(retryOn)))
}

// ConnectContext is Connect, abandoned when ctx ends.
func (c *ConfigDBConnector) ConnectContext(ctx context.Context, waitForInit, retryOn bool) error {
	return runBlocking(ctx, "ConfigDBConnector.Connect", func() error { return c.Connect(waitForInit, retryOn) })
}

// GetEntry returns the fields of table|key; a missing entry is empty.
func (c *ConfigDBConnector) GetEntry(table, key string) (FieldValues, error) {
	h, err := c.handle()
	if err != nil {
		return nil, err
	}
	k := new(KeepAlive)
	defer k.Release()
	ct, err := k.cstr(table)
	if err != nil {
		return nil, err
	}
	ck, err := k.cstr(key)
	if err != nil {
		return nil, err
	}
	var arr capi.FieldValueArray
	if err := check(capi.ConfigDBConnectorGetEntry(h, ct, ck, &arr)); err != nil {
		return nil, err
	}
	return takeFieldValueArray(arr)
}

// GetKeys returns the keys of table. With split they are returned without
// the table name.
func (c *ConfigDBConnector) GetKeys(table string, split bool) ([]string, error) {
	h, err := c.handle()
	if err != nil {
		return nil, err
	}
	k := new(KeepAlive)
	defer k.Release()
	ct, err := k.cstr(table)
	if err != nil {
		return nil, err
	}
	var arr capi.StringArray
	if err := check(capi.ConfigDBConnectorGetKeys(h, ct, boolArg(split), &arr)); err != nil {
		return nil, err
	}
	return takeStringArray(arr)
}

// GetTable returns every entry of table by key.
func (c *ConfigDBConnector) GetTable(table string) (map[string]FieldValues, error) {
	h, err := c.handle()
	if err != nil {
		return nil, err
	}
	k := new(KeepAlive)
	defer k.Release()
	ct, err := k.cstr(table)
	if err != nil {
		return nil, err
	}
	var arr capi.KeyOpFieldValuesArray
	if err := check(capi.ConfigDBConnectorGetTable(h, ct, &arr)); err != nil {
		return nil, err
	}
	records, err := takeKeyOpFieldValuesArray(arr)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FieldValues, len(records))
	for _, r := range records {
		out[r.Key] = r.Fields
	}
	return out, nil
}

// entryCall runs a write of table|key with data; nil data is passed as a
// null array.
func (c *ConfigDBConnector) entryCall(table, key string, data FieldSeq, write func(capi.ConfigDBConnector, *byte, *byte, *capi.FieldValueArray) capi.Result) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	var (
		arr  capi.FieldValueArray
		parr *capi.FieldValueArray
	)
	k := new(KeepAlive)
	defer k.Release()
	if data != nil {
		a, ak, err := makeFieldValueArray(data)
		if err != nil {
			return err
		}
		k.nest(ak)
		arr, parr = a, &arr
		k.pin(parr)
	}
	ct, err := k.cstr(table)
	if err != nil {
		return err
	}
	ck, err := k.cstr(key)
	if err != nil {
		return err
	}
	return check(write(h, ct, ck, parr))
}

// SetEntry replaces table|key with data. Nil or empty data deletes the
// entry.
func (c *ConfigDBConnector) SetEntry(table, key string, data FieldSeq) error {
	return c.entryCall(table, key, data, capi.ConfigDBConnectorSetEntry)
}

// ModEntry merges data into table|key. Nil or empty data deletes the entry.
func (c *ConfigDBConnector) ModEntry(table, key string, data FieldSeq) error {
	return c.entryCall(table, key, data, capi.ConfigDBConnectorModEntry)
}

// DeleteTable deletes every entry of table.
func (c *ConfigDBConnector) DeleteTable(table string) error {
	h, err := c.handle()
	if err != nil {
		return err
	}
	k := new(KeepAlive)
	defer k.Release()
	ct, err := k.cstr(table)
	if err != nil {
		return err
	}
	return check(capi.ConfigDBConnectorDeleteTable(h, ct))
}

// GetEntryContext is GetEntry, abandoned when ctx ends.
func (c *ConfigDBConnector) GetEntryContext(ctx context.Context, table, key string) (FieldValues, error) {
	return RunBlocking(ctx, "ConfigDBConnector.GetEntry", func() (FieldValues, error) { return c.GetEntry(table, key) })
}

// GetKeysContext is GetKeys, abandoned when ctx ends.
func (c *ConfigDBConnector) GetKeysContext(ctx context.Context, table string, split bool) ([]string, error) {
	return RunBlocking(ctx, "ConfigDBConnector.GetKeys", func() ([]string, error) { return c.GetKeys(table, split) })
}

// GetTableContext is GetTable, abandoned when ctx ends.
func (c *ConfigDBConnector) GetTableContext(ctx context.Context, table string) (map[string]FieldValues, error) {
	return RunBlocking(ctx, "ConfigDBConnector.GetTable", func() (map[string]FieldValues, error) { return c.GetTable(table) })
}

// SetEntryContext is SetEntry, abandoned when ctx ends.
func (c *ConfigDBConnector) SetEntryContext(ctx context.Context, table, key string, data FieldSeq) error {
	return runBlocking(ctx, "ConfigDBConnector.SetEntry", func() error { return c.SetEntry(table, key, data) })
}

// ModEntryContext is ModEntry, abandoned when ctx ends.
func (c *ConfigDBConnector) ModEntryContext(ctx context.Context, table, key string, data FieldSeq) error {
	return runBlocking(ctx, "ConfigDBConnector.ModEntry", func() error { return c.ModEntry(table, key, data) })
}

// DeleteTableContext is DeleteTable, abandoned when ctx ends.
func (c *ConfigDBConnector) DeleteTableContext(ctx context.Context, table string) error {
	return runBlocking(ctx, "ConfigDBConnector.DeleteTable", func() error { return c.DeleteTable(table) })
}
