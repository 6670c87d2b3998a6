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
	"bytes"
	"encoding/json"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"
	"unsafe"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

// OwnedString is a natively allocated byte string. It may hold any bytes,
// NUL included. Free releases it; an OwnedString that becomes unreachable
// without being freed is released by the garbage collector.
type OwnedString struct {
	mu      sync.Mutex
	s       capi.String
	cleanup runtime.Cleanup
}

// NewOwnedString copies b into a new native string.
func NewOwnedString(b []byte) *OwnedString {
	var p *byte
	if len(b) > 0 {
		p = &b[0]
	}
	return adoptString(capi.StringNew(p, uint64(len(b))))
}

// OwnedStringFrom copies s into a new native string.
func OwnedStringFrom(s string) *OwnedString {
	return NewOwnedString(unsafe.Slice(unsafe.StringData(s), len(s)))
}

// adoptString takes ownership of a native string. A nil string yields nil.
func adoptString(s capi.String) *OwnedString {
	if s == nil {
		return nil
	}
	o := &OwnedString{s: s}
	o.cleanup = runtime.AddCleanup(o, capi.StringFree, s)
	return o
}

func refBytes(r capi.StrRef) []byte {
	n := capi.StrRefLength(r)
	if n == 0 {
		return nil
	}
	return unsafe.Slice(capi.StrRefCStr(r), n)
}

func lossy(b []byte) string {
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// Bytes returns the contents. The slice aliases native memory: it must not
// be modified and is only meaningful until Free.
func (o *OwnedString) Bytes() []byte {
	if o == nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.s == nil {
		return nil
	}
	return refBytes(capi.StrRef(o.s))
}

// Len returns the length in bytes.
func (o *OwnedString) Len() int { return len(o.Bytes()) }

// IsEmpty reports whether the string has no bytes.
func (o *OwnedString) IsEmpty() bool { return o.Len() == 0 }

// Str returns the contents as text, failing on invalid UTF-8.
func (o *OwnedString) Str() (string, error) {
	b := o.Bytes()
	if !utf8.Valid(b) {
		return "", errorf(KindEncoding, "string contains invalid UTF-8")
	}
	return string(b), nil
}

// String returns the contents with invalid UTF-8 replaced by U+FFFD.
func (o *OwnedString) String() string { return lossy(o.Bytes()) }

// Clone returns an independent copy.
func (o *OwnedString) Clone() *OwnedString { return NewOwnedString(o.Bytes()) }

// Equal compares contents.
func (o *OwnedString) Equal(other *OwnedString) bool {
	return bytes.Equal(o.Bytes(), other.Bytes())
}

// EqualString compares the contents with s.
func (o *OwnedString) EqualString(s string) bool {
	return string(o.Bytes()) == s
}

// Compare orders strings bytewise.
func (o *OwnedString) Compare(other *OwnedString) int {
	return bytes.Compare(o.Bytes(), other.Bytes())
}

// View returns a read-only view that keeps o reachable.
func (o *OwnedString) View() StringView { return StringView{o: o} }

// Free releases the native string. Calling it again does nothing.
func (o *OwnedString) Free() {
	if o == nil {
		return
	}
	o.mu.Lock()
	s := o.s
	o.s = nil
	o.mu.Unlock()
	if s == nil {
		return
	}
	o.cleanup.Stop()
	capi.StringFree(s)
}

// MarshalText implements encoding.TextMarshaler with the raw bytes.
func (o *OwnedString) MarshalText() ([]byte, error) {
	return bytes.Clone(o.Bytes()), nil
}

// UnmarshalText replaces the contents of o with a copy of text.
func (o *OwnedString) UnmarshalText(text []byte) error {
	var p *byte
	if len(text) > 0 {
		p = &text[0]
	}
	s := capi.StringNew(p, uint64(len(text)))
	o.Free()
	o.mu.Lock()
	o.s = s
	o.cleanup = runtime.AddCleanup(o, capi.StringFree, s)
	o.mu.Unlock()
	return nil
}

// MarshalJSON encodes the contents as a JSON string, lossily.
func (o *OwnedString) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// StringView is a borrowed, read-only view of an OwnedString.
type StringView struct {
	o *OwnedString
}

// Bytes returns the viewed contents; see OwnedString.Bytes.
func (v StringView) Bytes() []byte { return v.o.Bytes() }

// Len returns the length in bytes.
func (v StringView) Len() int { return v.o.Len() }

// IsEmpty reports whether the view has no bytes.
func (v StringView) IsEmpty() bool { return v.o.IsEmpty() }

// Str returns the contents as text, failing on invalid UTF-8.
func (v StringView) Str() (string, error) { return v.o.Str() }

// String returns the contents with invalid UTF-8 replaced.
func (v StringView) String() string { return v.o.String() }

// ToOwned copies the viewed contents into a new OwnedString.
func (v StringView) ToOwned() *OwnedString { return NewOwnedString(v.Bytes()) }

// ref returns the native reference for a call that only reads it.
func (v StringView) ref() capi.StrRef {
	if v.o == nil {
		return nil
	}
	v.o.mu.Lock()
	defer v.o.mu.Unlock()
	return capi.StrRef(v.o.s)
}
