// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cilium/meshrib/pkg/metrics"
)

// Metrics are the collectors maintained by a RIB.
type Metrics struct {
	Routes           prometheus.Gauge
	Paths            prometheus.Gauge
	QueueLength      prometheus.Gauge
	Passes           prometheus.Counter
	SweptPaths       prometheus.Counter
	BestPathChanges  prometheus.Counter
	InvalidArguments prometheus.Counter
}

// NewMetrics creates the RIB collectors and registers them on reg, if any.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemRIB,
			Name:      "routes",
			Help:      "Number of destinations in the RIB",
		}),
		Paths: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemRIB,
			Name:      "paths",
			Help:      "Number of candidate paths in the RIB",
		}),
		QueueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemRIB,
			Name:      "change_queue_length",
			Help:      "Number of destinations waiting for FIB synchronisation",
		}),
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemRIB,
			Name:      "passes_total",
			Help:      "Number of recomputation passes started",
		}),
		SweptPaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemRIB,
			Name:      "swept_paths_total",
			Help:      "Number of stale paths removed at the end of a pass",
		}),
		BestPathChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemRIB,
			Name:      "best_path_changes_total",
			Help:      "Number of times an entry selected a different best path",
		}),
		InvalidArguments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: metrics.SubsystemRIB,
			Name:      "invalid_arguments_total",
			Help:      "Number of rejected path updates",
		}),
	}
	metrics.MustRegister(reg,
		m.Routes,
		m.Paths,
		m.QueueLength,
		m.Passes,
		m.SweptPaths,
		m.BestPathChanges,
		m.InvalidArguments,
	)
	return m
}
