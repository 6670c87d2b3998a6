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

const typeTable = "Table"

// Table reads and writes the hashes of one table directly.
type Table struct {
	owner[capi.Table]
	name string
}

// NewTable opens tableName on db. The table takes ownership of db and
// closes it on Close.
func NewTable(db *DBConnector, tableName string) (*Table, error) {
	h, err := openOn(db, tableName, capi.TableNew)
	if err != nil {
		return nil, err
	}
	t := &Table{owner: newOwner(typeTable, h, db, capi.TableFree), name: tableName}
	track(t, &t.owner)
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Close releases the table and its connector.
func (t *Table) Close() { t.close() }

func (t *Table) keyCall(key string, f func(h capi.Table, key *byte) capi.Result) error {
	h, err := t.handle()
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

func (t *Table) fieldCall(key, field string, f func(h capi.Table, key, field *byte) capi.Result) error {
	h, err := t.handle()
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

// Get returns the fields of key, or nil when key does not exist.
func (t *Table) Get(key string) (FieldValues, error) {
	var arr capi.FieldValueArray
	var exists int8
	if err := t.keyCall(key, func(h capi.Table, k *byte) capi.Result {
		return capi.TableGet(h, k, &arr, &exists)
	}); err != nil {
		return nil, err
	}
	fvs, err := takeFieldValueArray(arr)
	if err != nil || exists == 0 {
		fvs.Free()
		return nil, err
	}
	return fvs, nil
}

// HGet returns field of key, or nil when it does not exist.
func (t *Table) HGet(key, field string) (*OwnedString, error) {
	var out capi.String
	var exists int8
	if err := t.fieldCall(key, field, func(h capi.Table, k, f *byte) capi.Result {
		return capi.TableHGet(h, k, f, &out, &exists)
	}); err != nil {
		return nil, err
	}
	v := takeOptionalString(out)
	if exists == 0 {
		v.Free()
		return nil, nil
	}
	return v, nil
}

// Set writes fields to key, keeping fields not named.
func (t *Table) Set(key string, fields FieldSeq) error {
	arr, ka, err := makeFieldValueArray(fields)
	if err != nil {
		return err
	}
	defer ka.Release()
	return t.keyCall(key, func(h capi.Table, k *byte) capi.Result {
		return capi.TableSet(h, k, arr)
	})
}

// HSet sets one field of key.
func (t *Table) HSet(key, field string, value []byte) error {
	return t.fieldCall(key, field, func(h capi.Table, k, f *byte) capi.Result {
		ka := new(KeepAlive)
		defer ka.Release()
		return capi.TableHSet(h, k, f, capi.StrRef(ka.value(value)))
	})
}

// Del deletes key.
func (t *Table) Del(key string) error {
	return t.keyCall(key, capi.TableDel)
}

// HDel deletes one field of key.
func (t *Table) HDel(key, field string) error {
	return t.fieldCall(key, field, capi.TableHDel)
}

// GetKeys returns the keys of the table.
func (t *Table) GetKeys() ([]string, error) {
	h, err := t.handle()
	if err != nil {
		return nil, err
	}
	var arr capi.StringArray
	if err := check(capi.TableGetKeys(h, &arr)); err != nil {
		return nil, err
	}
	return takeStringArray(arr)
}

// GetContext is Get, abandoned when ctx ends.
func (t *Table) GetContext(ctx context.Context, key string) (FieldValues, error) {
	return RunBlocking(ctx, "Table.Get", func() (FieldValues, error) { return t.Get(key) })
}

// SetContext is Set, abandoned when ctx ends.
func (t *Table) SetContext(ctx context.Context, key string, fields FieldSeq) error {
	return runBlocking(ctx, "Table.Set", func() error { return t.Set(key, fields) })
}

// HGetContext is HGet, abandoned when ctx ends.
func (t *Table) HGetContext(ctx context.Context, key, field string) (*OwnedString, error) {
	return RunBlocking(ctx, "Table.HGet", func() (*OwnedString, error) { return t.HGet(key, field) })
}

// HSetContext is HSet, abandoned when ctx ends.
func (t *Table) HSetContext(ctx context.Context, key, field string, value []byte) error {
	return runBlocking(ctx, "Table.HSet", func() error { return t.HSet(key, field, value) })
}

// DelContext is Del, abandoned when ctx ends.
func (t *Table) DelContext(ctx context.Context, key string) error {
	return runBlocking(ctx, "Table.Del", func() error { return t.Del(key) })
}

// HDelContext is HDel, abandoned when ctx ends.
func (t *Table) HDelContext(ctx context.Context, key, field string) error {
	return runBlocking(ctx, "Table.HDel", func() error { return t.HDel(key, field) })
}

// GetKeysContext is GetKeys, abandoned when ctx ends.
func (t *Table) GetKeysContext(ctx context.Context) ([]string, error) {
	return RunBlocking(ctx, "Table.GetKeys", t.GetKeys)
}
