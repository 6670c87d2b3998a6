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
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

// allocs records native allocations made by a test.
type allocs []unsafe.Pointer

func (a *allocs) cstring(s string) *byte {
	p := capi.CString(s)
	*a = append(*a, unsafe.Pointer(p))
	return p
}

func (a *allocs) str(s string) capi.String {
	var p *byte
	if len(s) > 0 {
		p = unsafe.StringData(s)
	}
	v := capi.StringNew(p, uint64(len(s)))
	*a = append(*a, unsafe.Pointer(v))
	return v
}

// fieldValues builds a native array as a native call would return it.
func (a *allocs) fieldValues(kv ...string) capi.FieldValueArray {
	var data []capi.FieldValueTuple
	for i := 0; i+1 < len(kv); i += 2 {
		data = append(data, capi.FieldValueTuple{Field: a.cstring(kv[i]), Value: a.str(kv[i+1])})
	}
	arr := capi.FieldValueArrayNew(data)
	if arr.Data != nil {
		*a = append(*a, unsafe.Pointer(arr.Data))
	}
	return arr
}

func (a *allocs) assertFreed(t *testing.T) {
	t.Helper()
	for i, p := range *a {
		assert.False(t, capi.IsLive(p), "allocation %d still live", i)
	}
}

func unsafePointer(s capi.String) unsafe.Pointer { return unsafe.Pointer(s) }
