// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package fib

import (
	"fmt"

	"github.com/cilium/meshrib/pkg/rib/tables"
)

// MetricMode decides which kernel route priority is derived from a RIB
// metric and which metric changes are worth reprogramming a route for.
type MetricMode string

const (
	// MetricFlat installs every route with the same priority. Only nexthop
	// changes are programmed.
	MetricFlat MetricMode = "flat"
	// MetricCorrect installs routes with the hop count as priority and
	// reprograms them whenever nexthop or hop count change.
	MetricCorrect MetricMode = "correct"
	// MetricApprox installs routes with the hop count as priority but only
	// reprograms them on nexthop changes.
	MetricApprox MetricMode = "approx"
)

// flatPriority is the kernel priority of routes in flat mode
const flatPriority = 2

// ParseMetricMode validates s as a MetricMode.
func ParseMetricMode(s string) (MetricMode, error) {
	switch m := MetricMode(s); m {
	case MetricFlat, MetricCorrect, MetricApprox:
		return m, nil
	}
	return "", fmt.Errorf("unknown FIB metric mode %q", s)
}

// Priority returns the kernel route priority for metric.
func (m MetricMode) Priority(metric tables.Metric) int {
	if m == MetricFlat {
		return flatPriority
	}
	return int(metric.Hops)
}

// needsUpdate reports whether the installed route cur must be reprogrammed
// to become want.
func (m MetricMode) needsUpdate(cur, want InstalledRoute) bool {
	if !cur.NextHop.Equal(want.NextHop) {
		return true
	}
	return m == MetricCorrect && cur.Metric.HopsChanged(want.Metric)
}
