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
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

func TestRunBlocking(t *testing.T) {
	v, err := RunBlocking(context.Background(), "test", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = RunBlocking(context.Background(), "test", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
}

func TestRunBlockingAbandonsOnCancel(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := runBlocking(ctx, "test", func() error {
		defer close(finished)
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("abandoned call did not complete")
	}
}

func TestRunBlockingExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := RunBlocking(ctx, "test", func() (int, error) {
		called = true
		return 1, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestSelectResult(t *testing.T) {
	assert.Equal(t, "Data", SelectData.String())
	assert.Equal(t, "Timeout", SelectTimeout.String())
	assert.Equal(t, "Signal", SelectSignal.String())
	assert.Equal(t, "SelectResult(7)", SelectResult(7).String())

	assert.Equal(t, SelectData, selectResultFrom(capi.SelectResultData))
	assert.Equal(t, SelectTimeout, selectResultFrom(capi.SelectResultTimeout))
	assert.Equal(t, SelectSignal, selectResultFrom(capi.SelectResultSignal))
	assert.Panics(t, func() { selectResultFrom(capi.SelectResult(9)) })
}

func TestTimeoutConversions(t *testing.T) {
	assert.EqualValues(t, capi.InfiniteTimeout, waitTimeoutMs(-1))
	assert.EqualValues(t, 0, waitTimeoutMs(0))
	assert.EqualValues(t, 1500, waitTimeoutMs(1500*time.Millisecond))
	assert.EqualValues(t, uint32(math.MaxUint32-1), waitTimeoutMs(time.Duration(math.MaxInt64)))

	assert.EqualValues(t, 0, connTimeoutMs(0))
	assert.EqualValues(t, 0, connTimeoutMs(-time.Second))
	assert.EqualValues(t, 1, connTimeoutMs(time.Microsecond))
	assert.EqualValues(t, 250, connTimeoutMs(250*time.Millisecond))
}
