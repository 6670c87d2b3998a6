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
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const tracerName = "github.com/sonic-net/sonic-swss-common/pkg/swss"

// blockingWorkers bounds the native calls running for Context variants.
var blockingWorkers = semaphore.NewWeighted(int64(max(4*runtime.GOMAXPROCS(0), 16)))

// RunBlocking runs fn on a worker goroutine and returns its result. If ctx
// ends first, RunBlocking returns ctx.Err(); fn keeps running to completion
// and its result is discarded.
func RunBlocking[T any](ctx context.Context, name string, fn func() (T, error)) (T, error) {
	var zero T
	ctx, span := otel.Tracer(tracerName).Start(ctx, name,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(attribute.String("swss.call", name)),
	)
	defer span.End()

	if err := blockingWorkers.Acquire(ctx, 1); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer blockingWorkers.Release(1)
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
		}
		return r.v, r.err
	case <-ctx.Done():
		span.SetStatus(codes.Error, "abandoned")
		return zero, ctx.Err()
	}
}

func runBlocking(ctx context.Context, name string, fn func() error) error {
	_, err := RunBlocking(ctx, name, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
