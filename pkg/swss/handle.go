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

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/logger"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

func log() *zap.Logger { return logger.Named("swss") }

// errClosed is returned by operations on a closed handle.
func errClosed(kind string) error {
	return errorf(KindInvariant, "%s is closed", kind)
}

// freeLogged reports the result of a native free. Teardown never fails
// observably, so a failure is only logged.
func freeLogged(kind string, r capi.Result) {
	if err := check(r); err != nil {
		log().Warn("native free failed", zap.String("type", kind), zap.Error(err))
	}
}

func boolArg(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// int32Arg narrows n for a native int argument.
func int32Arg(n int, what string) (int32, error) {
	if n < -1<<31 || n > 1<<31-1 {
		return 0, errorf(KindCapacity, "%s %d exceeds maximum for target type", what, n)
	}
	return int32(n), nil
}

// owner holds one native object and the connection it was opened on,
// which it frees after the object.
type owner[H ~uint64] struct {
	kind    string
	h       H
	db      capi.DBConnector
	free    func(H) capi.Result
	cleanup runtime.Cleanup
}

// ownedRefs is what the cleanup of an unreachable owner releases.
type ownedRefs[H ~uint64] struct {
	kind string
	h    H
	db   capi.DBConnector
	free func(H) capi.Result
}

func (r ownedRefs[H]) release() {
	freeLogged(r.kind, r.free(r.h))
	if r.db != 0 {
		freeDBConnector(r.db)
	}
}

// newOwner returns an owner of h and of db's connection, which db gives up.
// db may be nil.
func newOwner[H ~uint64](kind string, h H, db *DBConnector, free func(H) capi.Result) owner[H] {
	o := owner[H]{kind: kind, h: h, free: free}
	if db != nil {
		o.db = db.detach()
	}
	return o
}

// track frees o's objects once outer is unreachable without being closed.
func track[T any, H ~uint64](outer *T, o *owner[H]) {
	r := ownedRefs[H]{kind: o.kind, h: o.h, db: o.db, free: o.free}
	o.cleanup = runtime.AddCleanup(outer, ownedRefs[H].release, r)
}

func (o *owner[H]) handle() (H, error) {
	if o.h == 0 {
		return 0, errClosed(o.kind)
	}
	return o.h, nil
}

// close frees the object, then its connector. Calling it again does
// nothing.
func (o *owner[H]) close() {
	if o.h == 0 {
		return
	}
	h := o.h
	o.h = 0
	o.cleanup.Stop()
	freeLogged(o.kind, o.free(h))
	if o.db != 0 {
		freeDBConnector(o.db)
		o.db = 0
	}
}

// openOn creates a native object named name on db. db is owned by the
// result, or closed when creation fails.
func openOn[H ~uint64](db *DBConnector, name string, create func(db capi.DBConnector, name *byte, out *H) capi.Result) (H, error) {
	h, err := db.handle()
	if err != nil {
		return 0, err
	}
	k := new(KeepAlive)
	defer k.Release()
	cname, err := k.cstr(name)
	if err != nil {
		db.Close()
		return 0, err
	}
	var out H
	if err := check(create(h, cname, &out)); err != nil {
		db.Close()
		return 0, err
	}
	return out, nil
}
