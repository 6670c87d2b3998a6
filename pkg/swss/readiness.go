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
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/selectable"
)

// SelectResult is the outcome of a readiness wait.
type SelectResult int

const (
	// SelectData means data is available.
	SelectData SelectResult = iota
	// SelectTimeout means the wait timed out.
	SelectTimeout
	// SelectSignal means the wait was interrupted by a signal.
	SelectSignal
)

func (r SelectResult) String() string {
	switch r {
	case SelectData:
		return "Data"
	case SelectTimeout:
		return "Timeout"
	case SelectSignal:
		return "Signal"
	default:
		return fmt.Sprintf("SelectResult(%d)", int(r))
	}
}

func selectResultFrom(r capi.SelectResult) SelectResult {
	switch r {
	case capi.SelectResultData:
		return SelectData
	case capi.SelectResultSignal:
		return SelectSignal
	case capi.SelectResultTimeout:
		return SelectTimeout
	default:
		panic(fmt.Sprintf("swss: invalid native select result %d", r))
	}
}

// ReadinessWaiter is implemented by every handle that reports pending data
// through a descriptor.
type ReadinessWaiter interface {
	// Fd returns a descriptor that is readable while data is pending.
	Fd() (int, error)
	// ReadData waits up to timeout; a negative timeout waits forever.
	ReadData(timeout time.Duration, interruptOnSignal bool) (SelectResult, error)
}

// readDataContext parks until w's descriptor is readable, then consumes the
// readiness with a zero-timeout ReadData. It neither times out nor reacts
// to signals.
func readDataContext(ctx context.Context, w ReadinessWaiter) error {
	fd, err := w.Fd()
	if err != nil {
		return err
	}
	if err := selectable.WaitReadable(ctx, fd); err != nil {
		return err
	}
	_, err = w.ReadData(0, false)
	return err
}

// waitTimeoutMs converts a readiness timeout; negative waits forever.
func waitTimeoutMs(d time.Duration) uint32 {
	if d < 0 {
		return capi.InfiniteTimeout
	}
	return clampMs(d)
}

// connTimeoutMs converts a connection timeout; zero or negative blocks.
func connTimeoutMs(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return max(clampMs(d), 1)
}

func clampMs(d time.Duration) uint32 {
	return uint32(min(d.Milliseconds(), math.MaxUint32-1))
}

// popRecords runs a native pops call and takes the records it returns.
func popRecords[H ~uint64](h H, pops func(H, *capi.KeyOpFieldValuesArray) capi.Result) ([]Record, error) {
	var arr capi.KeyOpFieldValuesArray
	if err := check(pops(h, &arr)); err != nil {
		return nil, err
	}
	return takeKeyOpFieldValuesArray(arr)
}

func nativeFd[H ~uint64](h H, getFd func(H, *uint32) capi.Result) (int, error) {
	var fd uint32
	if err := check(getFd(h, &fd)); err != nil {
		return -1, err
	}
	return int(fd), nil
}

func nativeReadData[H ~uint64](h H, read func(H, uint32, uint8, *capi.SelectResult) capi.Result, timeout time.Duration, interruptOnSignal bool) (SelectResult, error) {
	var r capi.SelectResult
	if err := check(read(h, waitTimeoutMs(timeout), boolArg(interruptOnSignal), &r)); err != nil {
		return 0, err
	}
	return selectResultFrom(r), nil
}

func nativeFlag[H ~uint64](h H, get func(H, *uint8) capi.Result) (bool, error) {
	var v uint8
	if err := check(get(h, &v)); err != nil {
		return false, err
	}
	return v != 0, nil
}
