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
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// WaitReadable parks the calling goroutine on the runtime network poller
// until fd is readable or ctx is done. No OS thread is held while waiting.
// fd is not consumed; WaitReadable works on a duplicate.
func WaitReadable(ctx context.Context, fd int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dup, err := unix.Dup(fd)
	if err != nil {
		return fmt.Errorf("selectable: dup: %w", err)
	}
	unix.CloseOnExec(dup)
	// The poller only takes descriptors in non-blocking mode; the flag is
	// shared with fd through the open file description.
	if err := unix.SetNonblock(dup, true); err != nil {
		_ = unix.Close(dup)
		return fmt.Errorf("selectable: set nonblock: %w", err)
	}

	f := os.NewFile(uintptr(dup), "selectable")
	defer f.Close()

	rc, err := f.SyscallConn()
	if err != nil {
		return fmt.Errorf("selectable: syscall conn: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = f.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	var pollErr error
	err = rc.Read(func(s uintptr) bool {
		fds := []unix.PollFd{{Fd: int32(s), Events: unix.POLLIN}}
		for {
			n, err := unix.Poll(fds, 0)
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if err != nil {
				pollErr = err
				return true
			}
			return n > 0
		}
	})
	if errors.Is(err, os.ErrDeadlineExceeded) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	if err != nil {
		return fmt.Errorf("selectable: wait readable: %w", err)
	}
	if pollErr != nil {
		return fmt.Errorf("selectable: poll: %w", pollErr)
	}
	return nil
}
