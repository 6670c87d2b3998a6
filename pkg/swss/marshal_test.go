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
	"runtime"
	"strconv"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

func TestTakeFieldValueArray(t *testing.T) {
	var a allocs
	fvs, err := takeFieldValueArray(a.fieldValues("a", "1", "b", "", "c", "x\x00y"))
	require.NoError(t, err)
	a.assertFreed(t)
	defer fvs.Free()

	assert.Equal(t, map[string]string{"a": "1", "b": "", "c": "x\x00y"}, fvs.Strings())
	assert.Equal(t, 3, fvs["c"].Len())
}

func TestTakeEmptyArrays(t *testing.T) {
	fvs, err := takeFieldValueArray(capi.FieldValueArray{})
	require.NoError(t, err)
	assert.Empty(t, fvs)

	records, err := takeKeyOpFieldValuesArray(capi.KeyOpFieldValuesArray{})
	require.NoError(t, err)
	assert.Empty(t, records)

	keys, err := takeStringArray(capi.StringArray{})
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestTakeFieldValueArrayPartialFailure(t *testing.T) {
	var a allocs
	arr := capi.FieldValueArrayNew([]capi.FieldValueTuple{
		{Field: a.cstring("ok1"), Value: a.str("v1")},
		{Field: a.cstring("bad\xff"), Value: a.str("v2")},
		{Field: a.cstring("ok2"), Value: a.str("v3")},
		{Field: a.cstring("bad\xfe"), Value: a.str("v4")},
	})
	a = append(a, unsafe.Pointer(arr.Data))

	fvs, err := takeFieldValueArray(arr)
	assert.Nil(t, fvs)
	require.ErrorIs(t, err, ErrEncoding)
	assert.Contains(t, err.Error(), "C string being converted to Go string contains invalid UTF-8")
	a.assertFreed(t)
}

func TestTakeFieldValueArrayNullValue(t *testing.T) {
	var a allocs
	arr := capi.FieldValueArrayNew([]capi.FieldValueTuple{
		{Field: a.cstring("f"), Value: nil},
		{Field: a.cstring("g"), Value: a.str("v")},
	})
	a = append(a, unsafe.Pointer(arr.Data))

	_, err := takeFieldValueArray(arr)
	require.ErrorIs(t, err, ErrNative)
	a.assertFreed(t)
}

func TestTakeFieldValueArrayKeepsFirstFailure(t *testing.T) {
	var a allocs
	arr := capi.FieldValueArrayNew([]capi.FieldValueTuple{
		{Field: a.cstring("ok"), Value: a.str("v1")},
		{Field: a.cstring("null"), Value: nil},
		{Field: a.cstring("bad\xff"), Value: a.str("v2")},
		{Field: a.cstring("ok2"), Value: a.str("v3")},
	})
	a = append(a, unsafe.Pointer(arr.Data))

	fvs, err := takeFieldValueArray(arr)
	assert.Nil(t, fvs)
	require.ErrorIs(t, err, ErrNative)
	assert.NotErrorIs(t, err, ErrEncoding)
	assert.Contains(t, err.Error(), `"null"`)
	a.assertFreed(t)
}

func TestTakeKeyOpFieldValuesArray(t *testing.T) {
	var a allocs
	arr := capi.KeyOpFieldValuesArrayNew([]capi.KeyOpFieldValues{
		{Key: a.cstring("k1"), Operation: capi.KeyOperationSet, FieldValues: a.fieldValues("f", "v")},
		{Key: a.cstring("k2"), Operation: capi.KeyOperationDel},
	})
	a = append(a, unsafe.Pointer(arr.Data))

	records, err := takeKeyOpFieldValuesArray(arr)
	require.NoError(t, err)
	defer FreeRecords(records)
	a.assertFreed(t)

	require.Len(t, records, 2)
	assert.Equal(t, "k1", records[0].Key)
	assert.Equal(t, OpSet, records[0].Operation)
	assert.Equal(t, map[string]string{"f": "v"}, records[0].StringFields())
	assert.Equal(t, NewDelRecord("k2"), records[1])
}

func TestTakeKeyOpFieldValuesArrayPartialFailure(t *testing.T) {
	var a allocs
	arr := capi.KeyOpFieldValuesArrayNew([]capi.KeyOpFieldValues{
		{Key: a.cstring("k1"), Operation: capi.KeyOperationSet, FieldValues: a.fieldValues("f", "v")},
		{Key: a.cstring("k2\xff"), Operation: capi.KeyOperationSet, FieldValues: a.fieldValues("g", "w")},
		{Key: a.cstring("k3"), Operation: capi.KeyOperation(7), FieldValues: a.fieldValues("h", "x")},
		{Key: a.cstring("k4"), Operation: capi.KeyOperationSet, FieldValues: a.fieldValues("i\xff", "y")},
	})
	a = append(a, unsafe.Pointer(arr.Data))

	records, err := takeKeyOpFieldValuesArray(arr)
	assert.Nil(t, records)
	require.ErrorIs(t, err, ErrEncoding)
	a.assertFreed(t)
}

func TestTakeStringArrayPartialFailure(t *testing.T) {
	var a allocs
	arr := capi.StringArrayNew([]*byte{a.cstring("a"), a.cstring("\xff"), a.cstring("c")})
	a = append(a, unsafe.Pointer(arr.Data))

	keys, err := takeStringArray(arr)
	assert.Nil(t, keys)
	require.ErrorIs(t, err, ErrEncoding)
	a.assertFreed(t)
}

func TestTakeCString(t *testing.T) {
	_, err := takeCString(nil)
	require.ErrorIs(t, err, ErrNative)

	p := capi.CString("héllo")
	s, err := takeCString(p)
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)
	assert.False(t, capi.IsLive(unsafe.Pointer(p)))
}

func TestMakeFieldValueArray(t *testing.T) {
	arr, k, err := makeFieldValueArray(Pairs("a", "1", "b", "x\x00y"))
	require.NoError(t, err)
	defer k.Release()

	entries := arr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", capi.GoString(entries[0].Field))
	assert.Equal(t, []byte("x\x00y"), refBytes(capi.StrRef(entries[1].Value)))
}

func TestMakeFieldValueArrayEmpty(t *testing.T) {
	for _, fvs := range []FieldSeq{nil, Pairs()} {
		arr, k, err := makeFieldValueArray(fvs)
		require.NoError(t, err)
		assert.Nil(t, arr.Data)
		assert.Zero(t, arr.Len)
		require.NotNil(t, k)
		k.Release()
	}
}

func TestMakeFieldValueArrayRejectsNul(t *testing.T) {
	before := capi.Stats()
	_, k, err := makeFieldValueArray(Pairs("ok", "1", "b\x00d", "2"))
	assert.Nil(t, k)
	require.ErrorIs(t, err, ErrEncoding)
	assert.Contains(t, err.Error(), "String contains null byte at position 1")
	d := capi.Stats().Sub(before)
	assert.Equal(t, d.Allocs, d.Frees)
}

func TestMakeFieldValueArrayCapacity(t *testing.T) {
	old := maxArrayLen
	maxArrayLen = 1
	defer func() { maxArrayLen = old }()

	_, k, err := makeFieldValueArray(Pairs("a", "1", "b", "2"))
	assert.Nil(t, k)
	require.ErrorIs(t, err, ErrArrayTooLarge)
	assert.Contains(t, err.Error(), "exceeds maximum for target type")

	_, k, err = makeKeyOpFieldValuesArray([]Record{NewDelRecord("a"), NewDelRecord("b")})
	assert.Nil(t, k)
	require.ErrorIs(t, err, ErrArrayTooLarge)
}

func TestKeepAliveSurvivesGC(t *testing.T) {
	const n = 1000
	kv := make([]string, 0, 2*n)
	for i := range n {
		kv = append(kv, "field"+strconv.Itoa(i), "value"+strconv.Itoa(i))
	}
	arr, k, err := makeFieldValueArray(Pairs(kv...))
	require.NoError(t, err)
	defer k.Release()
	kv = nil

	runtime.GC()
	runtime.GC()

	entries := arr.Entries()
	require.Len(t, entries, n)
	for i, e := range entries {
		assert.Equal(t, "field"+strconv.Itoa(i), capi.GoString(e.Field))
		assert.Equal(t, "value"+strconv.Itoa(i), string(refBytes(capi.StrRef(e.Value))))
	}
}

func TestKeepAliveReleasesValueCopies(t *testing.T) {
	arr, k, err := makeFieldValueArray(Pairs("a", "1", "b", "2"))
	require.NoError(t, err)
	values := []unsafe.Pointer{unsafe.Pointer(arr.Entries()[0].Value), unsafe.Pointer(arr.Entries()[1].Value)}
	for _, v := range values {
		assert.True(t, capi.IsLive(v))
	}
	assert.Equal(t, 3, k.Len())

	k.Release()
	k.Release()
	for _, v := range values {
		assert.False(t, capi.IsLive(v))
	}
	assert.Zero(t, k.Len())
}

func TestMakeKeyOpFieldValuesArray(t *testing.T) {
	set, err := SetRecordStrings("k1", map[string]string{"f": "v"})
	require.NoError(t, err)
	defer set.Free()

	arr, k, err := makeKeyOpFieldValuesArray([]Record{set, NewDelRecord("k2")})
	require.NoError(t, err)
	defer k.Release()

	entries := arr.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "k1", capi.GoString(entries[0].Key))
	assert.Equal(t, capi.KeyOperationSet, entries[0].Operation)
	assert.EqualValues(t, 1, entries[0].FieldValues.Len)
	assert.Equal(t, capi.KeyOperationDel, entries[1].Operation)
	assert.Nil(t, entries[1].FieldValues.Data)
}

func TestMakeKeyOpFieldValuesArrayValidates(t *testing.T) {
	_, k, err := makeKeyOpFieldValuesArray([]Record{{Key: "k", Operation: OpSet}})
	assert.Nil(t, k)
	require.ErrorIs(t, err, ErrInvariant)

	_, _, err = makeKeyOpFieldValuesArray([]Record{{Key: "k", Operation: OpDel, Fields: FieldValues{"f": OwnedStringFrom("v")}}})
	require.ErrorIs(t, err, ErrInvariant)

	_, _, err = makeKeyOpFieldValuesArray([]Record{NewDelRecord("a\x00")})
	require.ErrorIs(t, err, ErrEncoding)
}
