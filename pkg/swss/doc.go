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

// Package swss is the safe layer over the swss-common native client in
// package capi.
//
// Records read from the native side are copied into Go collections and the
// native arrays are released exactly once, even when an entry is malformed.
// Writes encode their arguments into buffers that a KeepAlive holds until
// the native call returns.
//
// Every handle (DBConnector, Table, the state tables, the transport client
// and server) owns one native object and frees it on Close. Close never
// fails observably; teardown errors are logged. A TransportConsumerStateTable
// is also retained by the TransportServer it was registered with, and its
// native object is freed only after both have let go of it.
//
// Blocking calls have Context variants that run the call on a bounded pool
// of worker goroutines, and ReadDataContext waits for readiness without
// holding an OS thread.
package swss
