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
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/logger"
)

const (
	metricsNamespace = "swss"
	metricsSubsystem = "capi"
)

var metrics = newCollector(prometheus.NewRegistry())

type collector struct {
	registry *prometheus.Registry

	allocations  *prometheus.CounterVec
	frees        *prometheus.CounterVec
	invalidFrees *prometheus.CounterVec
	live         *prometheus.GaugeVec
	handles      *prometheus.GaugeVec
	calls        *prometheus.CounterVec
	failures     *prometheus.CounterVec
}

func newCollector(reg *prometheus.Registry) *collector {
	c := &collector{
		registry: reg,
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "allocations_total",
			Help:      "Native objects allocated, by kind",
		}, []string{"kind"}),
		frees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "frees_total",
			Help:      "Native objects freed, by kind",
		}, []string{"kind"}),
		invalidFrees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "invalid_frees_total",
			Help:      "Frees of memory that was not live, by kind",
		}, []string{"kind"}),
		live: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "live_objects",
			Help:      "Native objects allocated and not yet freed, by kind",
		}, []string{"kind"}),
		handles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "open_handles",
			Help:      "Open native handles, by type",
		}, []string{"type"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "calls_total",
			Help:      "Native calls, by function",
		}, []string{"function"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "exceptions_total",
			Help:      "Native calls that returned an exception, by function",
		}, []string{"function"}),
	}
	reg.MustRegister(c.allocations, c.frees, c.invalidFrees, c.live, c.handles, c.calls, c.failures)
	return c
}

// MetricsRegistry returns the registry holding the native heap and handle
// metrics.
func MetricsRegistry() *prometheus.Registry { return metrics.registry }

func log() *zap.Logger { return logger.Named("capi") }
