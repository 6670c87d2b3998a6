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

// Package selectable provides the readiness event behind every queue-like
// handle: a pollable descriptor that becomes readable when data is pending,
// plus a blocking tri-state wait over it.
package selectable

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Result is the outcome of a wait.
type Result int

const (
	// Data means the event was signaled.
	Data Result = iota
	// Timeout means the wait elapsed without a notification.
	Timeout
	// Signal means the wait was interrupted by a process signal.
	Signal
)

func (r Result) String() string {
	switch r {
	case Data:
		return "data"
	case Timeout:
		return "timeout"
	case Signal:
		return "signal"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// ErrClosed is returned by operations on a closed event.
var ErrClosed = errors.New("selectable: event closed")

// interruptSignals are the signals that end a wait started with
// interruptOnSignal set.
var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// Event is a self-pipe. Notify makes the read end readable; a successful
// Wait drains it, so notifications that arrive before a wait coalesce into a
// single Data result.
type Event struct {
	mu     sync.Mutex
	r, w   int
	closed bool
}

// NewEvent creates an unsignaled event.
func NewEvent() (*Event, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("selectable: pipe: %w", err)
	}
	return &Event{r: p[0], w: p[1]}, nil
}

// Fd returns the descriptor that becomes readable when the event is
// signaled. It stays valid until Close.
func (e *Event) Fd() int {
	return e.r
}

// Notify signals the event. It never blocks.
func (e *Event) Notify() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	for {
		_, err := unix.Write(e.w, []byte{1})
		switch {
		case err == nil, errors.Is(err, unix.EAGAIN):
			// A full pipe is already readable.
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			return fmt.Errorf("selectable: notify: %w", err)
		}
	}
}

// Drain consumes pending notifications and reports whether there were any.
func (e *Event) Drain() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrClosed
	}
	return drain(e.r)
}

func drain(fd int) (bool, error) {
	var (
		buf [64]byte
		got bool
	)
	for {
		n, err := unix.Read(fd, buf[:])
		switch {
		case n > 0:
			got = true
			continue
		case err == nil, errors.Is(err, unix.EAGAIN):
			return got, nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			return got, fmt.Errorf("selectable: drain: %w", err)
		}
	}
}

// Wait blocks until the event is signaled, the timeout elapses or, when
// interruptOnSignal is set, the process receives SIGINT, SIGTERM or SIGHUP.
// A negative timeout waits forever; zero polls once.
func (e *Event) Wait(timeout time.Duration, interruptOnSignal bool) (Result, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Timeout, ErrClosed
	}
	fd := e.r
	e.mu.Unlock()

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	if interruptOnSignal {
		sig, err := watchSignals()
		if err != nil {
			return Timeout, err
		}
		defer sig.stop()
		fds = append(fds, unix.PollFd{Fd: int32(sig.r), Events: unix.POLLIN})
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ms := -1
		switch {
		case timeout == 0:
			ms = 0
		case timeout > 0:
			remaining := time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
			// Round up so a wait never returns before its deadline.
			ms = int((remaining + time.Millisecond - 1) / time.Millisecond)
		}

		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return Timeout, fmt.Errorf("selectable: poll: %w", err)
		}

		if n > 0 && len(fds) > 1 && fds[1].Revents&unix.POLLIN != 0 {
			return Signal, nil
		}
		if n > 0 && fds[0].Revents&(unix.POLLIN|unix.POLLHUP) != 0 {
			e.mu.Lock()
			closed := e.closed
			var got bool
			if !closed {
				got, err = drain(fd)
			}
			e.mu.Unlock()
			if closed {
				return Timeout, ErrClosed
			}
			if err != nil {
				return Timeout, err
			}
			if got {
				return Data, nil
			}
			// Another waiter drained the notification first.
		}

		if timeout == 0 || (timeout > 0 && !time.Now().Before(deadline)) {
			return Timeout, nil
		}
	}
}

// Close releases both ends of the pipe. It is safe to call more than once.
func (e *Event) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return errors.Join(unix.Close(e.r), unix.Close(e.w))
}

type signalWatch struct {
	r, w   int
	ch     chan os.Signal
	done   chan struct{}
	exited chan struct{}
}

func watchSignals() (*signalWatch, error) {
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("selectable: signal pipe: %w", err)
	}
	s := &signalWatch{r: p[0], w: p[1], ch: make(chan os.Signal, 1), done: make(chan struct{}), exited: make(chan struct{})}
	signal.Notify(s.ch, interruptSignals...)
	go func() {
		defer close(s.exited)
		select {
		case <-s.ch:
			_, _ = unix.Write(s.w, []byte{1})
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *signalWatch) stop() {
	signal.Stop(s.ch)
	close(s.done)
	<-s.exited
	_ = unix.Close(s.r)
	_ = unix.Close(s.w)
}
