// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"fmt"
	"net/netip"

	"github.com/cilium/meshrib/pkg/rib/tables"
)

// path is one candidate route to a destination, contributed by one
// originator. The owning entry is referenced by its destination and the
// topology entry that produced the path by its originator; both are looked up
// in the RIB rather than pointed to.
type path struct {
	dst        tables.Prefix
	originator netip.Addr
	nexthop    tables.NextHop
	metric     tables.Metric
	origin     tables.Origin
	// generation is the last recomputation pass that confirmed the path
	generation uint32
}

// comparePaths is the total order used by best path selection. The smaller
// path is the better one.
func comparePaths(a, b *path) int {
	if c := a.metric.Compare(b.metric); c != 0 {
		return c
	}
	switch {
	case a.origin.Rank() < b.origin.Rank():
		return -1
	case a.origin.Rank() > b.origin.Rank():
		return 1
	}
	return a.originator.Compare(b.originator)
}

func (p *path) snapshot(best bool) PathSnapshot {
	return PathSnapshot{
		Originator: p.originator,
		NextHop:    p.nexthop,
		Metric:     p.metric,
		Origin:     p.origin,
		Generation: p.generation,
		Best:       best,
	}
}

// PathSnapshot is a point-in-time copy of a candidate path.
type PathSnapshot struct {
	Originator netip.Addr
	NextHop    tables.NextHop
	Metric     tables.Metric
	Origin     tables.Origin
	Generation uint32
	Best       bool
}

func (p PathSnapshot) String() string {
	return fmt.Sprintf("from %s via %s %s origin %s generation %d",
		p.Originator, p.NextHop, p.Metric, p.Origin, p.Generation)
}
