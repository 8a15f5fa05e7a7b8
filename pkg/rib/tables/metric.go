// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tables

import "fmt"

// LinkCost is the link-quality derived cost of a path. Smaller is better.
type LinkCost uint32

const (
	// RouteCostBroken marks an unreachable path. Paths are never accepted
	// into the RIB with this cost or above.
	RouteCostBroken LinkCost = 0xffffffff
)

// Metric is the composite metric used for path selection.
type Metric struct {
	Cost LinkCost
	Hops uint32
}

// Compare orders metrics by cost and then by hop count.
func (m Metric) Compare(o Metric) int {
	switch {
	case m.Cost < o.Cost:
		return -1
	case m.Cost > o.Cost:
		return 1
	case m.Hops < o.Hops:
		return -1
	case m.Hops > o.Hops:
		return 1
	}
	return 0
}

// Validate checks that m describes a reachable path.
func (m Metric) Validate() error {
	if m.Cost >= RouteCostBroken {
		return fmt.Errorf("cost %d marks a broken route", m.Cost)
	}
	return nil
}

// HopsChanged reports whether the hop count differs between two metrics.
func (m Metric) HopsChanged(o Metric) bool {
	return m.Hops != o.Hops
}

func (m Metric) String() string {
	return fmt.Sprintf("cost %d hops %d", m.Cost, m.Hops)
}
