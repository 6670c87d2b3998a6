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
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

// Kind classifies an Exception.
type Kind int

const (
	// KindNative is a failure reported by the native library.
	KindNative Kind = iota
	// KindEncoding is a string that cannot cross the native boundary: an
	// embedded NUL going in, or invalid UTF-8 coming out.
	KindEncoding
	// KindCapacity is a collection too large for a native array.
	KindCapacity
	// KindInvariant is a violated caller precondition.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindNative:
		return "native"
	case KindEncoding:
		return "encoding"
	case KindCapacity:
		return "capacity"
	case KindInvariant:
		return "invariant"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Exception is the error returned by every fallible call. It is an
// immutable value and safe to share between goroutines.
type Exception struct {
	Kind     Kind
	Message  string
	Location string
}

// Sentinels for errors.Is; they match any Exception of the same kind.
var (
	ErrNative        = &Exception{Kind: KindNative}
	ErrEncoding      = &Exception{Kind: KindEncoding}
	ErrArrayTooLarge = &Exception{Kind: KindCapacity}
	ErrInvariant     = &Exception{Kind: KindInvariant}
)

func (e *Exception) Error() string {
	return "[" + e.Location + "] " + e.Message
}

// Is reports whether target is the sentinel for e's kind.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	if !ok {
		return false
	}
	if t.Message == "" && t.Location == "" {
		return t.Kind == e.Kind
	}
	return *t == *e
}

// NewException returns an invariant violation located at its caller.
func NewException(message string) *Exception {
	return newException(KindInvariant, 2, message)
}

func newException(kind Kind, skip int, message string) *Exception {
	return &Exception{Kind: kind, Message: message, Location: callerLocation(skip + 1)}
}

func errorf(kind Kind, format string, args ...any) *Exception {
	return newException(kind, 2, fmt.Sprintf(format, args...))
}

// callerLocation renders the caller skip frames up as dir/file.go:line.
func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	dir, base := filepath.Split(file)
	dir = filepath.Base(strings.TrimSuffix(dir, string(filepath.Separator)))
	return fmt.Sprintf("%s/%s:%d", dir, base, line)
}

// takeException converts a failed native result and releases its strings.
func takeException(r capi.Result) *Exception {
	if r.Message == nil || r.Location == nil {
		r.Free()
		panic("swss: native exception without message or location")
	}
	e := &Exception{
		Kind:     KindNative,
		Message:  lossy(refBytes(capi.StrRef(r.Message))),
		Location: lossy(refBytes(capi.StrRef(r.Location))),
	}
	r.Free()
	return e
}

// check turns a native result into an error.
func check(r capi.Result) error {
	if r.OK() {
		return nil
	}
	return takeException(r)
}
