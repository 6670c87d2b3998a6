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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

func TestExceptionFormat(t *testing.T) {
	e := &Exception{Kind: KindNative, Message: "connection refused", Location: "dbconnector.cpp:42"}
	assert.Equal(t, "[dbconnector.cpp:42] connection refused", e.Error())
}

func TestExceptionIs(t *testing.T) {
	e := errorf(KindEncoding, "bad %s", "input")
	assert.ErrorIs(t, e, ErrEncoding)
	assert.NotErrorIs(t, e, ErrNative)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", e), ErrEncoding)

	same := *e
	assert.ErrorIs(t, e, &same)
	other := same
	other.Message = "different"
	assert.NotErrorIs(t, e, &other)

	var ex *Exception
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", e), &ex))
	assert.Equal(t, "bad input", ex.Message)
}

func TestExceptionLocation(t *testing.T) {
	e := NewException("boom")
	assert.Equal(t, KindInvariant, e.Kind)
	assert.Regexp(t, `^swss/exception_test\.go:\d+$`, e.Location)
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNative, "native"},
		{KindEncoding, "encoding"},
		{KindCapacity, "capacity"},
		{KindInvariant, "invariant"},
		{Kind(9), "Kind(9)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.String())
	}
}

func TestCheckTakesNativeException(t *testing.T) {
	r := capi.DBConnectorFree(capi.DBConnector(0))
	msg, loc := r.Message, r.Location

	err := check(r)
	require.ErrorIs(t, err, ErrNative)
	var ex *Exception
	require.ErrorAs(t, err, &ex)
	assert.Contains(t, ex.Message, "invalid DBConnector handle")
	assert.Equal(t, "DBConnectorFree", ex.Location)
	assert.False(t, capi.IsLive(unsafePointer(msg)))
	assert.False(t, capi.IsLive(unsafePointer(loc)))

	assert.NoError(t, check(capi.Result{}))
}

func TestTakeExceptionWithoutMessagePanics(t *testing.T) {
	assert.Panics(t, func() {
		takeException(capi.Result{Exception: capi.ExceptionException})
	})
}
