// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tables

import "fmt"

// Route is the kernel facing view of a RIB entry: a destination and the
// nexthop and metric of its best path.
type Route struct {
	Prefix  Prefix
	NextHop NextHop
	Metric  Metric
}

func (r Route) String() string {
	return fmt.Sprintf("%s via %s %s", r.Prefix, r.NextHop, r.Metric)
}

// ChangeOp is the kernel operation a Change asks for.
type ChangeOp uint8

const (
	ChangeOpAdd ChangeOp = iota + 1
	ChangeOpChange
	ChangeOpDelete
)

func (op ChangeOp) String() string {
	switch op {
	case ChangeOpAdd:
		return "add"
	case ChangeOpChange:
		return "change"
	case ChangeOpDelete:
		return "delete"
	}
	return "unknown"
}

// Change is one pending FIB update drained from the RIB. For deletions
// Route carries the last installed nexthop and metric, so the consumer knows
// what to remove.
type Change struct {
	Op    ChangeOp
	Route Route
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s", c.Op, c.Route)
}
