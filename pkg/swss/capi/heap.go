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
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
)

// allocKind identifies the free function an allocation must be released
// with.
type allocKind uint8

const (
	kindString allocKind = iota
	kindCString
	kindFieldValueArray
	kindKeyOpFieldValuesArray
	kindStringArray
	numKinds
)

var kindNames = [numKinds]string{
	kindString:                "string",
	kindCString:               "cstring",
	kindFieldValueArray:       "field_value_array",
	kindKeyOpFieldValuesArray: "key_op_field_values_array",
	kindStringArray:           "string_array",
}

func (k allocKind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// InvalidFreeError is the panic value raised in strict mode when memory
// that is not live is released, or is released with the wrong function.
type InvalidFreeError struct {
	Kind string
	Addr uintptr
	Live string
}

func (e *InvalidFreeError) Error() string {
	if e.Live != "" {
		return fmt.Sprintf("capi: %s free of %#x allocated as %s", e.Kind, e.Addr, e.Live)
	}
	return fmt.Sprintf("capi: invalid %s free of %#x (double free or foreign pointer)", e.Kind, e.Addr)
}

// HeapStats is a snapshot of the native heap counters.
type HeapStats struct {
	Allocs       uint64
	Frees        uint64
	InvalidFrees uint64
	UseAfterFree uint64
	Live         int
}

// Sub returns the difference s - o, for measuring one operation.
func (s HeapStats) Sub(o HeapStats) HeapStats {
	return HeapStats{
		Allocs:       s.Allocs - o.Allocs,
		Frees:        s.Frees - o.Frees,
		InvalidFrees: s.InvalidFrees - o.InvalidFrees,
		UseAfterFree: s.UseAfterFree - o.UseAfterFree,
		Live:         s.Live - o.Live,
	}
}

// heap tracks every object handed out by this package until it is freed.
// Tracked pointers stay reachable through the map, like malloc'd memory
// stays mapped until free.
var heap = struct {
	mu   sync.Mutex
	live map[unsafe.Pointer]allocKind

	allocs  atomic.Uint64
	frees   atomic.Uint64
	invalid atomic.Uint64
	uaf     atomic.Uint64
	strict  atomic.Bool
}{live: map[unsafe.Pointer]allocKind{}}

func init() {
	heap.strict.Store(os.Getenv("SWSS_CAPI_STRICT") == "1")
}

// SetStrict makes invalid frees panic with *InvalidFreeError instead of
// being logged and counted. It returns the previous setting.
func SetStrict(strict bool) bool { return heap.strict.Swap(strict) }

// Stats returns the current heap counters.
func Stats() HeapStats {
	heap.mu.Lock()
	live := len(heap.live)
	heap.mu.Unlock()
	return HeapStats{
		Allocs:       heap.allocs.Load(),
		Frees:        heap.frees.Load(),
		InvalidFrees: heap.invalid.Load(),
		UseAfterFree: heap.uaf.Load(),
		Live:         live,
	}
}

// IsLive reports whether p is an allocation that has not been freed.
func IsLive(p unsafe.Pointer) bool {
	heap.mu.Lock()
	defer heap.mu.Unlock()
	_, ok := heap.live[p]
	return ok
}

func track(p unsafe.Pointer, k allocKind) {
	heap.mu.Lock()
	heap.live[p] = k
	heap.mu.Unlock()
	heap.allocs.Add(1)
	metrics.allocations.WithLabelValues(k.String()).Inc()
	metrics.live.WithLabelValues(k.String()).Inc()
}

func release(p unsafe.Pointer, k allocKind) {
	heap.mu.Lock()
	got, ok := heap.live[p]
	if ok && got == k {
		delete(heap.live, p)
	}
	heap.mu.Unlock()

	if !ok || got != k {
		e := &InvalidFreeError{Kind: k.String(), Addr: uintptr(p)}
		if ok {
			e.Live = got.String()
		}
		invalidFree(e)
		return
	}
	heap.frees.Add(1)
	metrics.frees.WithLabelValues(k.String()).Inc()
	metrics.live.WithLabelValues(k.String()).Dec()
}

func invalidFree(e *InvalidFreeError) {
	heap.invalid.Add(1)
	metrics.invalidFrees.WithLabelValues(e.Kind).Inc()
	if heap.strict.Load() {
		panic(e)
	}
	log().Error("invalid native free", zap.Error(e))
}

// useAfterFree records a call into an object that was already freed. In
// strict mode it panics.
func useAfterFree(typ string) {
	heap.uaf.Add(1)
	if heap.strict.Load() {
		panic(fmt.Sprintf("capi: use of freed %s", typ))
	}
	log().Error("use of freed native object", zap.String("type", typ))
}
