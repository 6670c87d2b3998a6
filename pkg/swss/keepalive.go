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
	"slices"
)

// KeepAlive holds the buffers of an outbound native call until the call
// has returned. The native side only borrows them, so nothing may be freed
// or moved before Release.
//
// Entries are type-erased. Go buffers are pinned; natively owned copies are
// freed by their release functions; nested arenas are released with their
// parent.
type KeepAlive struct {
	pinner   runtime.Pinner
	entries  []any
	releases []func()
	released bool
}

// keep holds v until Release.
func (k *KeepAlive) keep(v any) {
	k.entries = append(k.entries, v)
}

// pin keeps p and pins it in place.
func (k *KeepAlive) pin(p any) {
	k.pinner.Pin(p)
	k.keep(p)
}

// onRelease runs f during Release, after later registrations.
func (k *KeepAlive) onRelease(f func()) {
	k.releases = append(k.releases, f)
}

// nest makes child part of k.
func (k *KeepAlive) nest(child *KeepAlive) {
	k.keep(child)
}

// Len returns the number of entries held, nested arenas counted as one.
func (k *KeepAlive) Len() int {
	if k == nil {
		return 0
	}
	return len(k.entries)
}

// Release frees everything held, innermost first. Calling it again does
// nothing.
func (k *KeepAlive) Release() {
	if k == nil || k.released {
		return
	}
	k.released = true
	for _, e := range slices.Backward(k.entries) {
		if child, ok := e.(*KeepAlive); ok {
			child.Release()
		}
	}
	for _, f := range slices.Backward(k.releases) {
		f()
	}
	k.pinner.Unpin()
	k.entries = nil
	k.releases = nil
}
