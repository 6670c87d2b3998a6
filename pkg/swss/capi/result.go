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
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

type (
	fieldValue = store.FieldValue
	entry      = store.StateEntry
)

// Exception is the failure code of a Result.
type Exception int32

const (
	// ExceptionNone means the call succeeded.
	ExceptionNone Exception = iota
	// ExceptionException means the call failed; Message and Location are set.
	ExceptionException
)

// Result is returned by every fallible call. When Exception is not
// ExceptionNone, Message and Location are non-nil and must be released with
// StringFree.
type Result struct {
	Exception Exception
	Message   String
	Location  String
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Exception == ExceptionNone }

// Free releases the message and location of a failed result.
func (r Result) Free() {
	StringFree(r.Message)
	StringFree(r.Location)
}

// try runs f on behalf of the native function named location and converts
// an error or panic into a Result. Invalid frees in strict mode are not
// converted; they escape as panics.
func try(location string, f func() error) (res Result) {
	metrics.calls.WithLabelValues(location).Inc()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(*InvalidFreeError); ok {
			panic(e)
		}
		res = failure(location, fmt.Sprint(r))
	}()
	if err := f(); err != nil {
		return failure(location, err.Error())
	}
	return Result{}
}

func failure(location, msg string) Result {
	metrics.failures.WithLabelValues(location).Inc()
	log().Debug("native call failed", zap.String("function", location), zap.String("error", msg))
	return Result{
		Exception: ExceptionException,
		Message:   newStringFrom(msg),
		Location:  newStringFrom(location),
	}
}

var errNullOut = errors.New("null output pointer")

func checkOut[T any](out *T) error {
	if out == nil {
		return errNullOut
	}
	return nil
}
