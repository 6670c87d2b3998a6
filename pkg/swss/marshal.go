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
	"cmp"
	"math"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

// maxArrayLen is the largest length a native array descriptor holds.
var maxArrayLen uint64 = math.MaxUint64

// firstError keeps the first error it is given.
type firstError struct{ err error }

func (f *firstError) keep(err error) {
	if f.err == nil {
		f.err = err
	}
}

// takeCString copies and frees a natively allocated C string.
func takeCString(p *byte) (string, error) {
	if p == nil {
		return "", errorf(KindNative, "native string is null")
	}
	s := capi.GoString(p)
	capi.Free(unsafe.Pointer(p))
	if !utf8.ValidString(s) {
		return "", errorf(KindEncoding, "C string being converted to Go string contains invalid UTF-8")
	}
	return s, nil
}

// takeFieldValueArray consumes arr. Every entry is visited and released
// even after a failure; the first failure is returned and the array itself
// is freed exactly once.
func takeFieldValueArray(arr capi.FieldValueArray) (FieldValues, error) {
	entries := arr.Entries()
	out := make(FieldValues, len(entries))
	var first firstError
	for _, e := range entries {
		field, err := takeCString(e.Field)
		value := adoptString(e.Value)
		switch {
		case err != nil:
			first.keep(err)
			value.Free()
		case value == nil:
			first.keep(errorf(KindNative, "field %q has a null value", field))
		default:
			out[field].Free()
			out[field] = value
		}
	}
	capi.FieldValueArrayFree(arr)
	if first.err != nil {
		out.Free()
		return nil, first.err
	}
	return out, nil
}

// takeKeyOpFieldValuesArray consumes arr with the policy of
// takeFieldValueArray applied to every record and its nested array.
func takeKeyOpFieldValuesArray(arr capi.KeyOpFieldValuesArray) ([]Record, error) {
	entries := arr.Entries()
	out := make([]Record, 0, len(entries))
	var first firstError
	for _, e := range entries {
		key, kerr := takeCString(e.Key)
		fields, ferr := takeFieldValueArray(e.FieldValues)
		if err := cmp.Or(kerr, ferr); err != nil {
			first.keep(err)
			fields.Free()
			continue
		}
		var op KeyOperation
		switch e.Operation {
		case capi.KeyOperationSet:
			op = OpSet
		case capi.KeyOperationDel:
			op = OpDel
		default:
			first.keep(errorf(KindNative, "record %q has invalid operation %d", key, e.Operation))
			fields.Free()
			continue
		}
		if len(fields) == 0 {
			fields = nil
		}
		out = append(out, Record{Key: key, Operation: op, Fields: fields})
	}
	capi.KeyOpFieldValuesArrayFree(arr)
	if first.err != nil {
		FreeRecords(out)
		return nil, first.err
	}
	return out, nil
}

// takeStringArray consumes arr; a null or empty array yields no strings.
func takeStringArray(arr capi.StringArray) ([]string, error) {
	entries := arr.Entries()
	out := make([]string, 0, len(entries))
	var first firstError
	for _, p := range entries {
		s, err := takeCString(p)
		if err != nil {
			first.keep(err)
			continue
		}
		out = append(out, s)
	}
	capi.StringArrayFree(arr)
	if first.err != nil {
		return nil, first.err
	}
	return out, nil
}

func arrayLen(n int, what string) (uint64, error) {
	if uint64(n) > maxArrayLen {
		return 0, errorf(KindCapacity, "%s array length %d exceeds maximum for target type", what, n)
	}
	return uint64(n), nil
}

// cstr encodes s as a NUL-terminated buffer held by k.
func (k *KeepAlive) cstr(s string) (*byte, error) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return nil, errorf(KindEncoding, "String contains null byte at position %d", i)
	}
	b := make([]byte, len(s)+1)
	copy(b, s)
	k.pin(&b[0])
	return &b[0], nil
}

// value copies b into a native string that k frees after the call.
func (k *KeepAlive) value(b []byte) capi.String {
	var p *byte
	if len(b) > 0 {
		p = &b[0]
	}
	s := capi.StringNew(p, uint64(len(b)))
	k.onRelease(func() { capi.StringFree(s) })
	return s
}

// makeFieldValueArray encodes fvs for one native call. The returned arena
// must be released after the call; on error nothing is left to release.
func makeFieldValueArray(fvs FieldSeq) (capi.FieldValueArray, *KeepAlive, error) {
	k := new(KeepAlive)
	var data []capi.FieldValueTuple
	if fvs != nil {
		for field, value := range fvs {
			f, err := k.cstr(field)
			if err != nil {
				k.Release()
				return capi.FieldValueArray{}, nil, err
			}
			data = append(data, capi.FieldValueTuple{Field: f, Value: k.value(value)})
		}
	}
	n, err := arrayLen(len(data), "field value")
	if err != nil {
		k.Release()
		return capi.FieldValueArray{}, nil, err
	}
	if n == 0 {
		return capi.FieldValueArray{}, k, nil
	}
	k.pin(&data[0])
	return capi.FieldValueArray{Len: n, Data: &data[0]}, k, nil
}

// makeKeyOpFieldValuesArray encodes records for one native call. Each
// record's buffers live in a nested arena.
func makeKeyOpFieldValuesArray(records []Record) (capi.KeyOpFieldValuesArray, *KeepAlive, error) {
	k := new(KeepAlive)
	fail := func(err error) (capi.KeyOpFieldValuesArray, *KeepAlive, error) {
		k.Release()
		return capi.KeyOpFieldValuesArray{}, nil, err
	}
	data := make([]capi.KeyOpFieldValues, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fail(err)
		}
		rk := new(KeepAlive)
		k.nest(rk)
		key, err := rk.cstr(r.Key)
		if err != nil {
			return fail(err)
		}
		fvs, fk, err := makeFieldValueArray(r.Fields.All())
		if err != nil {
			return fail(err)
		}
		rk.nest(fk)
		op := capi.KeyOperationSet
		if r.Operation == OpDel {
			op = capi.KeyOperationDel
		}
		data = append(data, capi.KeyOpFieldValues{Key: key, Operation: op, FieldValues: fvs})
	}
	n, err := arrayLen(len(data), "key-op field values")
	if err != nil {
		return fail(err)
	}
	if n == 0 {
		return capi.KeyOpFieldValuesArray{}, k, nil
	}
	k.pin(&data[0])
	return capi.KeyOpFieldValuesArray{Len: n, Data: &data[0]}, k, nil
}

// takeOptionalString adopts a native output string; null means absent.
func takeOptionalString(s capi.String) *OwnedString { return adoptString(s) }
