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

package transport

import (
	"errors"
	"fmt"
)

// ErrorType classifies transport failures.
type ErrorType string

const (
	ErrorTypeEndpoint      ErrorType = "ENDPOINT"
	ErrorTypeConnection    ErrorType = "CONNECTION"
	ErrorTypeSerialization ErrorType = "SERIALIZATION"
	ErrorTypeClosed        ErrorType = "CLOSED"
)

// Error is a transport failure.
type Error struct {
	Type     ErrorType
	Op       string
	Endpoint string
	Cause    error
}

func newError(t ErrorType, op, endpoint string, cause error) *Error {
	return &Error{Type: t, Op: op, Endpoint: endpoint, Cause: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("transport %s: %s", e.Op, e.Type)
	if e.Endpoint != "" {
		msg += " " + e.Endpoint
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches errors of the same type, so errors.Is(err, ErrClosed) works for
// any closed-endpoint failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

var (
	// ErrClosed matches operations on a closed client or server.
	ErrClosed = &Error{Type: ErrorTypeClosed, Op: "use"}
	// ErrNotConnected matches sends on a client with no reachable server.
	ErrNotConnected = &Error{Type: ErrorTypeConnection, Op: "send"}
	// ErrBadEndpoint matches unparsable or unsupported endpoints.
	ErrBadEndpoint = &Error{Type: ErrorTypeEndpoint, Op: "parse"}
)
