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
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeyOperation(t *testing.T) {
	tests := []struct {
		in      string
		want    KeyOperation
		wantErr bool
	}{
		{"SET", OpSet, false},
		{"set", OpSet, false},
		{"Del", OpDel, false},
		{"DEL", OpDel, false},
		{"HSET", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKeyOperation(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, `A KeyOperation String must be "SET" or "DEL", but was `+tt.in, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyOperationText(t *testing.T) {
	text, err := OpDel.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "DEL", string(text))

	var op KeyOperation
	require.NoError(t, op.UnmarshalText([]byte("set")))
	assert.Equal(t, OpSet, op)

	_, err = KeyOperation(5).MarshalText()
	assert.Error(t, err)
}

func TestNewSetRecordRequiresFields(t *testing.T) {
	_, err := NewSetRecord("k", nil)
	require.ErrorIs(t, err, ErrInvariant)
	_, err = SetRecordStrings("k", map[string]string{})
	require.ErrorIs(t, err, ErrInvariant)

	r, err := SetRecordStrings("k", map[string]string{"f": "v"})
	require.NoError(t, err)
	defer r.Free()
	assert.NoError(t, r.Validate())
	assert.Equal(t, "SET k map[f:v]", r.String())
}

func TestRecordValidate(t *testing.T) {
	assert.NoError(t, NewDelRecord("k").Validate())
	assert.ErrorIs(t, Record{Key: "k", Operation: OpSet}.Validate(), ErrInvariant)
	assert.ErrorIs(t, Record{Key: "k", Operation: OpDel, Fields: FieldValues{"f": nil}}.Validate(), ErrInvariant)
	assert.ErrorIs(t, Record{Key: "k", Operation: KeyOperation(3)}.Validate(), ErrInvariant)
}

func TestRecordEqual(t *testing.T) {
	a, _ := SetRecordStrings("k", map[string]string{"f": "v"})
	b, _ := SetRecordStrings("k", map[string]string{"f": "v"})
	c, _ := SetRecordStrings("k", map[string]string{"f": "w"})
	defer FreeRecords([]Record{a, b, c})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(NewDelRecord("k")))
	assert.True(t, NewDelRecord("k").Equal(NewDelRecord("k")))
}

func TestSortRecords(t *testing.T) {
	rs := []Record{NewDelRecord("c"), NewDelRecord("a"), NewDelRecord("b")}
	SortRecords(rs)
	keys := make([]string, len(rs))
	for i, r := range rs {
		keys[i] = r.Key
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestFieldSeqs(t *testing.T) {
	m := map[string]string{"b": "2", "a": "1"}
	got := map[string]string{}
	var order []string
	for k, v := range FromStrings(m) {
		got[k] = string(v)
		order = append(order, k)
	}
	assert.Equal(t, m, got)
	assert.Equal(t, []string{"a", "b"}, order)

	pairs := maps.Collect(func(yield func(string, string) bool) {
		for k, v := range Pairs("x", "1", "y", "2", "dangling") {
			if !yield(k, string(v)) {
				return
			}
		}
	})
	assert.Equal(t, map[string]string{"x": "1", "y": "2"}, pairs)

	fv := FieldValues{"z": OwnedStringFrom("26"), "a": OwnedStringFrom("1")}
	defer fv.Free()
	var keys []string
	for k := range fv.All() {
		keys = append(keys, k)
	}
	assert.True(t, slices.IsSorted(keys))
	cl := fv.Clone()
	defer cl.Free()
	assert.True(t, fv.Equal(cl))
}
