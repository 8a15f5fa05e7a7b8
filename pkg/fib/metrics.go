// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package fib

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cilium/meshrib/pkg/metrics"
)

// Metrics are the collectors maintained by a Syncer.
type Metrics struct {
	Ops       *prometheus.CounterVec
	Installed prometheus.Gauge
}

// NewMetrics creates the FIB collectors and registers them on reg, if any.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemFIB,
			Name:      "operations_total",
			Help:      "Number of FIB changes processed, by operation and outcome",
		}, []string{metrics.LabelOp, metrics.LabelOutcome}),
		Installed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemFIB,
			Name:      "installed_routes",
			Help:      "Number of routes installed in the kernel",
		}),
	}
	metrics.MustRegister(reg, m.Ops, m.Installed)
	return m
}
