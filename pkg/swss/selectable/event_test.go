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

package selectable

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvent(t *testing.T) *Event {
	t.Helper()
	e, err := NewEvent()
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEventTimeout(t *testing.T) {
	e := newEvent(t)

	start := time.Now()
	res, err := e.Wait(200*time.Millisecond, false)
	require.NoError(t, err)
	assert.Equal(t, Timeout, res)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestEventDataOncePerNotification(t *testing.T) {
	e := newEvent(t)

	require.NoError(t, e.Notify())
	require.NoError(t, e.Notify())

	res, err := e.Wait(time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, Data, res)

	// Both notifications were coalesced by the first wait.
	res, err = e.Wait(50*time.Millisecond, false)
	require.NoError(t, err)
	assert.Equal(t, Timeout, res)
}

func TestEventZeroTimeoutPolls(t *testing.T) {
	e := newEvent(t)

	res, err := e.Wait(0, false)
	require.NoError(t, err)
	assert.Equal(t, Timeout, res)

	require.NoError(t, e.Notify())
	res, err = e.Wait(0, false)
	require.NoError(t, err)
	assert.Equal(t, Data, res)
}

func TestEventNotifyFromAnotherGoroutine(t *testing.T) {
	e := newEvent(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = e.Notify()
	}()

	res, err := e.Wait(-1, false)
	require.NoError(t, err)
	assert.Equal(t, Data, res)
}

func TestEventSignal(t *testing.T) {
	e := newEvent(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGHUP)
	}()

	res, err := e.Wait(5*time.Second, true)
	require.NoError(t, err)
	assert.Equal(t, Signal, res)
}

func TestEventDrain(t *testing.T) {
	e := newEvent(t)

	got, err := e.Drain()
	require.NoError(t, err)
	assert.False(t, got)

	require.NoError(t, e.Notify())
	got, err = e.Drain()
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEventClosed(t *testing.T) {
	e, err := NewEvent()
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	assert.ErrorIs(t, e.Notify(), ErrClosed)
	_, err = e.Wait(0, false)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "data", Data.String())
	assert.Equal(t, "timeout", Timeout.String())
	assert.Equal(t, "signal", Signal.String())
	assert.Equal(t, "Result(9)", Result(9).String())
}

func TestWaitReadable(t *testing.T) {
	e := newEvent(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = e.Notify()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, WaitReadable(ctx, e.Fd()))

	// Readiness does not consume the notification.
	res, err := e.Wait(0, false)
	require.NoError(t, err)
	assert.Equal(t, Data, res)
}

func TestWaitReadableCanceled(t *testing.T) {
	e := newEvent(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := WaitReadable(ctx, e.Fd())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The original descriptor is still usable.
	require.NoError(t, e.Notify())
	res, err := e.Wait(time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, Data, res)
}
