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
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
	"unsafe"
)

// KeyOperation is the operation of a Record.
type KeyOperation int

const (
	OpSet KeyOperation = iota
	OpDel
)

func (op KeyOperation) String() string {
	switch op {
	case OpSet:
		return "SET"
	case OpDel:
		return "DEL"
	default:
		return fmt.Sprintf("KeyOperation(%d)", int(op))
	}
}

// InvalidKeyOperationError is returned when parsing anything but SET or DEL.
type InvalidKeyOperationError string

func (e InvalidKeyOperationError) Error() string {
	return fmt.Sprintf(`A KeyOperation String must be "SET" or "DEL", but was %s`, string(e))
}

// ParseKeyOperation parses "SET" or "DEL", case-insensitively.
func ParseKeyOperation(s string) (KeyOperation, error) {
	switch {
	case strings.EqualFold(s, "SET"):
		return OpSet, nil
	case strings.EqualFold(s, "DEL"):
		return OpDel, nil
	default:
		return 0, InvalidKeyOperationError(s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (op KeyOperation) MarshalText() ([]byte, error) {
	if op != OpSet && op != OpDel {
		return nil, fmt.Errorf("swss: cannot marshal %s", op)
	}
	return []byte(op.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *KeyOperation) UnmarshalText(text []byte) error {
	v, err := ParseKeyOperation(string(text))
	if err != nil {
		return err
	}
	*op = v
	return nil
}

// FieldValues maps field names to values.
type FieldValues map[string]*OwnedString

// FieldSeq yields field/value pairs for a write.
type FieldSeq = iter.Seq2[string, []byte]

// All yields the fields in key order.
func (fv FieldValues) All() FieldSeq {
	return func(yield func(string, []byte) bool) {
		for _, k := range slices.Sorted(maps.Keys(fv)) {
			if !yield(k, fv[k].Bytes()) {
				return
			}
		}
	}
}

// Strings returns the values as text, lossily.
func (fv FieldValues) Strings() map[string]string {
	out := make(map[string]string, len(fv))
	for k, v := range fv {
		out[k] = v.String()
	}
	return out
}

// Clone deep-copies the values.
func (fv FieldValues) Clone() FieldValues {
	if fv == nil {
		return nil
	}
	out := make(FieldValues, len(fv))
	for k, v := range fv {
		out[k] = v.Clone()
	}
	return out
}

// Equal compares field names and value contents.
func (fv FieldValues) Equal(other FieldValues) bool {
	return maps.EqualFunc(fv, other, (*OwnedString).Equal)
}

// Free releases every value.
func (fv FieldValues) Free() {
	for _, v := range fv {
		v.Free()
	}
}

// FromStrings yields the pairs of m in key order.
func FromStrings(m map[string]string) FieldSeq {
	return func(yield func(string, []byte) bool) {
		for _, k := range slices.Sorted(maps.Keys(m)) {
			v := m[k]
			if !yield(k, unsafe.Slice(unsafe.StringData(v), len(v))) {
				return
			}
		}
	}
}

// Pairs yields alternating field and value strings. A trailing field
// without a value is dropped.
func Pairs(kv ...string) FieldSeq {
	return func(yield func(string, []byte) bool) {
		for i := 0; i+1 < len(kv); i += 2 {
			if !yield(kv[i], []byte(kv[i+1])) {
				return
			}
		}
	}
}

// Record is one change of a table: a set of fields, or a delete.
type Record struct {
	Key       string
	Operation KeyOperation
	Fields    FieldValues
}

// NewSetRecord returns a set of key to fields. The native format cannot
// tell an empty set from a delete, so fields must not be empty.
func NewSetRecord(key string, fields FieldValues) (Record, error) {
	if len(fields) == 0 {
		return Record{}, errorf(KindInvariant, "set record %q has no fields", key)
	}
	return Record{Key: key, Operation: OpSet, Fields: fields}, nil
}

// SetRecordStrings is NewSetRecord with the values copied from fields.
func SetRecordStrings(key string, fields map[string]string) (Record, error) {
	if len(fields) == 0 {
		return Record{}, errorf(KindInvariant, "set record %q has no fields", key)
	}
	fv := make(FieldValues, len(fields))
	for k, v := range fields {
		fv[k] = OwnedStringFrom(v)
	}
	return Record{Key: key, Operation: OpSet, Fields: fv}, nil
}

// NewDelRecord returns a delete of key.
func NewDelRecord(key string) Record {
	return Record{Key: key, Operation: OpDel}
}

// Validate checks the field invariants of the operation.
func (r Record) Validate() error {
	switch r.Operation {
	case OpSet:
		if len(r.Fields) == 0 {
			return errorf(KindInvariant, "set record %q has no fields", r.Key)
		}
	case OpDel:
		if len(r.Fields) != 0 {
			return errorf(KindInvariant, "del record %q has fields", r.Key)
		}
	default:
		return errorf(KindInvariant, "record %q has invalid operation %s", r.Key, r.Operation)
	}
	return nil
}

// Equal compares key, operation and field contents.
func (r Record) Equal(o Record) bool {
	return r.Key == o.Key && r.Operation == o.Operation && r.Fields.Equal(o.Fields)
}

// StringFields returns the field values as text.
func (r Record) StringFields() map[string]string { return r.Fields.Strings() }

// Free releases the field values.
func (r Record) Free() { r.Fields.Free() }

func (r Record) String() string {
	if r.Operation == OpDel {
		return fmt.Sprintf("DEL %s", r.Key)
	}
	return fmt.Sprintf("SET %s %v", r.Key, r.StringFields())
}

// SortRecords orders records by key.
func SortRecords(rs []Record) {
	slices.SortStableFunc(rs, func(a, b Record) int { return strings.Compare(a.Key, b.Key) })
}

// FreeRecords releases the field values of every record.
func FreeRecords(rs []Record) {
	for _, r := range rs {
		r.Free()
	}
}
