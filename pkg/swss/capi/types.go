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

// Package capi is the native swss-common client surface the swss package
// wraps: manually freed strings and arrays, opaque handles and Result
// codes. Every call is implemented over a store.Store, so the surface
// behaves like the C library without linking it.
package capi

import (
	"slices"
	"unsafe"
)

// StringOpaque is a natively owned byte string. A call taking a String
// moves the bytes out and leaves the object empty; the object itself is
// still released with StringFree.
type StringOpaque struct {
	buf []byte // contents followed by a NUL terminator
}

// String is an owned native string, the rvalue form.
type String *StringOpaque

// StrRef is a borrowed native string. It converts to and from String.
type StrRef *StringOpaque

// StringNew copies length bytes from data into a new native string. data
// should not include a terminator and may contain NUL bytes.
func StringNew(data *byte, length uint64) String {
	var b []byte
	if length > 0 {
		b = unsafe.Slice(data, length)
	}
	return newString(b)
}

// StringNewCStr copies a NUL-terminated string into a new native string.
func StringNewCStr(cstr *byte) String {
	return StringNew(cstr, strlen(cstr))
}

// StringFree releases s. Passing nil is allowed, so a string taken out of
// a struct can be replaced by nil and freed later.
func StringFree(s String) {
	if s == nil {
		return
	}
	release(unsafe.Pointer(s), kindString)
}

// StrRefCStr returns the NUL-terminated contents of s.
func StrRefCStr(s StrRef) *byte {
	return &s.buf[0]
}

// StrRefLength returns the length of s without the terminator.
func StrRefLength(s StrRef) uint64 {
	return uint64(len(s.buf) - 1)
}

func newString(b []byte) String {
	s := &StringOpaque{buf: make([]byte, len(b)+1)}
	copy(s.buf, b)
	track(unsafe.Pointer(s), kindString)
	return s
}

func newStringFrom(s string) String {
	return newString(unsafe.Slice(unsafe.StringData(s), len(s)))
}

// takeString moves the contents out of s, leaving it empty.
func takeString(s String) string {
	out := string(s.buf[:len(s.buf)-1])
	s.buf = []byte{0}
	return out
}

func refString(s StrRef) string {
	return string(s.buf[:len(s.buf)-1])
}

// CString allocates a NUL-terminated copy of s on the native heap. Native
// results carry field names and keys in this form; they are released with
// Free.
func CString(s string) *byte {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	track(unsafe.Pointer(&buf[0]), kindCString)
	return &buf[0]
}

// Free releases memory returned by CString. Passing nil is allowed.
func Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	release(p, kindCString)
}

// GoString copies a NUL-terminated string. A nil pointer yields "".
func GoString(p *byte) string {
	n := strlen(p)
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice(p, n))
}

func strlen(p *byte) uint64 {
	if p == nil {
		return 0
	}
	var n uint64
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return n
}

// FieldValueTuple is one field/value pair. Field is released with Free and
// Value with StringFree.
type FieldValueTuple struct {
	Field *byte
	Value String
}

// FieldValueArray is a sequence of field/value pairs. Data is released
// with FieldValueArrayFree and may be nil.
type FieldValueArray struct {
	Len  uint64
	Data *FieldValueTuple
}

// Entries returns the tuples of a as a slice over the native memory.
func (a FieldValueArray) Entries() []FieldValueTuple {
	if a.Data == nil || a.Len == 0 {
		return nil
	}
	return unsafe.Slice(a.Data, a.Len)
}

// KeyOperation is the operation of a KeyOpFieldValues.
type KeyOperation int32

const (
	KeyOperationSet KeyOperation = iota
	KeyOperationDel
)

// KeyOpFieldValues is one keyed change. Key is released with Free and
// FieldValues with FieldValueArrayFree.
type KeyOpFieldValues struct {
	Key         *byte
	Operation   KeyOperation
	FieldValues FieldValueArray
}

// KeyOpFieldValuesArray is a batch of keyed changes. Data is released with
// KeyOpFieldValuesArrayFree and may be nil.
type KeyOpFieldValuesArray struct {
	Len  uint64
	Data *KeyOpFieldValues
}

// Entries returns the records of a as a slice over the native memory.
func (a KeyOpFieldValuesArray) Entries() []KeyOpFieldValues {
	if a.Data == nil || a.Len == 0 {
		return nil
	}
	return unsafe.Slice(a.Data, a.Len)
}

// StringArray is a sequence of NUL-terminated strings, each released with
// Free. Data is released with StringArrayFree and may be nil.
type StringArray struct {
	Len  uint64
	Data **byte
}

// Entries returns the string pointers of a as a slice over the native
// memory.
func (a StringArray) Entries() []*byte {
	if a.Data == nil || a.Len == 0 {
		return nil
	}
	return unsafe.Slice(a.Data, a.Len)
}

// SelectResult is the outcome of a readiness wait.
type SelectResult int32

const (
	// SelectResultData means data is available in the object.
	SelectResultData SelectResult = 0
	// SelectResultTimeout means the wait timed out.
	SelectResultTimeout SelectResult = 1
	// SelectResultSignal means the wait was interrupted by a signal.
	SelectResultSignal SelectResult = 2
)

// FieldValueArrayFree releases the array storage of arr. It is not
// recursive: the fields and values are released separately.
func FieldValueArrayFree(arr FieldValueArray) {
	if arr.Data == nil {
		return
	}
	release(unsafe.Pointer(arr.Data), kindFieldValueArray)
}

// KeyOpFieldValuesArrayFree releases the array storage of kfvs. It is not
// recursive.
func KeyOpFieldValuesArrayFree(kfvs KeyOpFieldValuesArray) {
	if kfvs.Data == nil {
		return
	}
	release(unsafe.Pointer(kfvs.Data), kindKeyOpFieldValuesArray)
}

// StringArrayFree releases the array storage of arr. It is not recursive.
func StringArrayFree(arr StringArray) {
	if arr.Data == nil {
		return
	}
	release(unsafe.Pointer(arr.Data), kindStringArray)
}

// FieldValueArrayNew allocates a native array holding entries. The array
// does not copy the fields and values; whoever takes the array takes them.
func FieldValueArrayNew(entries []FieldValueTuple) FieldValueArray {
	if len(entries) == 0 {
		return FieldValueArray{}
	}
	data := slices.Clone(entries)
	track(unsafe.Pointer(&data[0]), kindFieldValueArray)
	return FieldValueArray{Len: uint64(len(data)), Data: &data[0]}
}

// KeyOpFieldValuesArrayNew allocates a native array holding entries.
func KeyOpFieldValuesArrayNew(entries []KeyOpFieldValues) KeyOpFieldValuesArray {
	if len(entries) == 0 {
		return KeyOpFieldValuesArray{}
	}
	data := slices.Clone(entries)
	track(unsafe.Pointer(&data[0]), kindKeyOpFieldValuesArray)
	return KeyOpFieldValuesArray{Len: uint64(len(data)), Data: &data[0]}
}

// StringArrayNew allocates a native array holding entries.
func StringArrayNew(entries []*byte) StringArray {
	if len(entries) == 0 {
		return StringArray{}
	}
	data := slices.Clone(entries)
	track(unsafe.Pointer(&data[0]), kindStringArray)
	return StringArray{Len: uint64(len(data)), Data: &data[0]}
}

func makeFieldValueArray(fvs []fieldValue) FieldValueArray {
	data := make([]FieldValueTuple, len(fvs))
	for i, fv := range fvs {
		data[i] = FieldValueTuple{Field: CString(fv.Field), Value: newStringFrom(fv.Value)}
	}
	return FieldValueArrayNew(data)
}

func makeKeyOpFieldValuesArray(entries []entry) KeyOpFieldValuesArray {
	data := make([]KeyOpFieldValues, len(entries))
	for i, e := range entries {
		op := KeyOperationSet
		if e.Del {
			op = KeyOperationDel
		}
		data[i] = KeyOpFieldValues{Key: CString(e.Key), Operation: op, FieldValues: makeFieldValueArray(e.Fields)}
	}
	return KeyOpFieldValuesArrayNew(data)
}

func makeStringArray(ss []string) StringArray {
	data := make([]*byte, len(ss))
	for i, s := range ss {
		data[i] = CString(s)
	}
	return StringArrayNew(data)
}

// readFieldValueArray reads a caller-owned array. Field names are copied;
// values are moved out of their strings, which stay owned by the caller.
func readFieldValueArray(arr FieldValueArray) []fieldValue {
	entries := arr.Entries()
	out := make([]fieldValue, 0, len(entries))
	for _, e := range entries {
		out = append(out, fieldValue{Field: GoString(e.Field), Value: takeString(e.Value)})
	}
	return out
}

func readKeyOpFieldValuesArray(arr KeyOpFieldValuesArray) []entry {
	entries := arr.Entries()
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, entry{
			Key:    GoString(e.Key),
			Del:    e.Operation == KeyOperationDel,
			Fields: readFieldValueArray(e.FieldValues),
		})
	}
	return out
}
