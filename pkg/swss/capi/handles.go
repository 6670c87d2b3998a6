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
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	nextHandle atomic.Uint64
	objects    sync.Map
)

func newHandle(typ string, v any) uint64 {
	h := nextHandle.Add(1)
	objects.Store(h, v)
	metrics.handles.WithLabelValues(typ).Inc()
	return h
}

func getObject[T any](typ string, h uint64) (*T, error) {
	v, ok := objects.Load(h)
	if !ok {
		return nil, fmt.Errorf("invalid %s handle %d", typ, h)
	}
	o, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("handle %d is not a %s", h, typ)
	}
	return o, nil
}

// dropHandle removes h from the handle table. A handle can be dropped once.
func dropHandle[T any](typ string, h uint64) (*T, error) {
	o, err := getObject[T](typ, h)
	if err != nil {
		return nil, err
	}
	if !objects.CompareAndDelete(h, o) {
		return nil, fmt.Errorf("invalid %s handle %d", typ, h)
	}
	metrics.handles.WithLabelValues(typ).Dec()
	return o, nil
}

// OpenHandles returns the number of handles not yet freed.
func OpenHandles() int {
	n := 0
	objects.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
