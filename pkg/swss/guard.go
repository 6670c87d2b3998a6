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

import "sync/atomic"

// dropGuard shares one native object between several owners and frees it
// when the last of them releases it. It has no accessor for the object, so
// nothing can reach it through a guard after the free.
type dropGuard struct {
	refs atomic.Int64
	free func()
}

// newDropGuard returns a guard holding one reference.
func newDropGuard(free func()) *dropGuard {
	g := &dropGuard{free: free}
	g.refs.Store(1)
	return g
}

// acquire adds a reference for a new owner.
func (g *dropGuard) acquire() *dropGuard {
	if g.refs.Add(1) <= 1 {
		panic("swss: acquire of a released guard")
	}
	return g
}

// release drops one reference; the last one runs the free.
func (g *dropGuard) release() {
	switch n := g.refs.Add(-1); {
	case n == 0:
		g.free()
	case n < 0:
		panic("swss: guard released more times than acquired")
	}
}
