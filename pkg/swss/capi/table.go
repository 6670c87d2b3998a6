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
	"strings"
)

const typeTable = "Table"

// Table is a plain table: one hash per key, named TABLE<sep>key.
type Table uint64

type table struct {
	db   *dbConnector
	name string
}

func (t *table) key(k string) string { return t.name + t.db.sep + k }

// TableNew opens tableName over db. The table uses db's connection, so db
// must outlive it.
func TableNew(db DBConnector, tableName *byte, out *Table) Result {
	return try("TableNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		c, err := getObject[dbConnector](typeDBConnector, uint64(db))
		if err != nil {
			return err
		}
		*out = Table(newHandle(typeTable, &table{db: c, name: GoString(tableName)}))
		return nil
	})
}

// TableFree releases tbl.
func TableFree(tbl Table) Result {
	return try("TableFree", func() error {
		_, err := dropHandle[table](typeTable, uint64(tbl))
		return err
	})
}

func withTable(location string, tbl Table, f func(ctx context.Context, t *table) error) Result {
	return try(location, func() error {
		t, err := getObject[table](typeTable, uint64(tbl))
		if err != nil {
			return err
		}
		return f(context.Background(), t)
	})
}

// TableGet stores the fields of key in outValues; outExists is 0 and the
// array empty when key is absent.
func TableGet(tbl Table, key *byte, outValues *FieldValueArray, outExists *int8) Result {
	return withTable("TableGet", tbl, func(ctx context.Context, t *table) error {
		if err := checkOut(outValues); err != nil {
			return err
		}
		if err := checkOut(outExists); err != nil {
			return err
		}
		fvs, err := t.db.st.HGetAll(ctx, t.key(GoString(key)))
		if err != nil {
			return err
		}
		*outValues = makeFieldValueArray(fvs)
		putBool(outExists, len(fvs) > 0)
		return nil
	})
}

// TableHGet stores one field of key in outValue.
func TableHGet(tbl Table, key, field *byte, outValue *String, outExists *int8) Result {
	return withTable("TableHGet", tbl, func(ctx context.Context, t *table) error {
		if err := checkOut(outValue); err != nil {
			return err
		}
		if err := checkOut(outExists); err != nil {
			return err
		}
		v, ok, err := t.db.st.HGet(ctx, t.key(GoString(key)), GoString(field))
		if err != nil {
			return err
		}
		*outValue = nil
		if ok {
			*outValue = newStringFrom(v)
		}
		putBool(outExists, ok)
		return nil
	})
}

// TableSet writes values into key. The value strings are moved out.
func TableSet(tbl Table, key *byte, values FieldValueArray) Result {
	return withTable("TableSet", tbl, func(ctx context.Context, t *table) error {
		fvs := readFieldValueArray(values)
		if len(fvs) == 0 {
			return nil
		}
		return t.db.st.HSet(ctx, t.key(GoString(key)), fvs...)
	})
}

// TableHSet writes one field of key.
func TableHSet(tbl Table, key, field *byte, value StrRef) Result {
	return withTable("TableHSet", tbl, func(ctx context.Context, t *table) error {
		return t.db.st.HSet(ctx, t.key(GoString(key)), fieldValue{Field: GoString(field), Value: refString(value)})
	})
}

// TableDel deletes key.
func TableDel(tbl Table, key *byte) Result {
	return withTable("TableDel", tbl, func(ctx context.Context, t *table) error {
		_, err := t.db.st.Del(ctx, t.key(GoString(key)))
		return err
	})
}

// TableHDel deletes one field of key.
func TableHDel(tbl Table, key, field *byte) Result {
	return withTable("TableHDel", tbl, func(ctx context.Context, t *table) error {
		_, err := t.db.st.HDel(ctx, t.key(GoString(key)), GoString(field))
		return err
	})
}

// TableGetKeys stores the keys of the table, without the table prefix.
func TableGetKeys(tbl Table, outKeys *StringArray) Result {
	return withTable("TableGetKeys", tbl, func(ctx context.Context, t *table) error {
		if err := checkOut(outKeys); err != nil {
			return err
		}
		keys, err := tableKeys(ctx, t.db, t.name+t.db.sep)
		if err != nil {
			return err
		}
		*outKeys = makeStringArray(keys)
		return nil
	})
}

// tableKeys lists the keys under prefix with the prefix removed.
func tableKeys(ctx context.Context, c *dbConnector, prefix string) ([]string, error) {
	keys, err := c.st.Keys(ctx, escapeGlob(prefix)+"*")
	if err != nil {
		return nil, err
	}
	out := keys[:0]
	for _, k := range keys {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			out = append(out, rest)
		}
	}
	return out, nil
}

func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
