// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"fmt"
	"net/netip"

	"github.com/cilium/meshrib/pkg/rib/index"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

// entry is the RIB head of one destination. It owns the candidate paths of
// all originators announcing the destination and remembers which of them is
// the best one, and what was last handed out towards the kernel FIB.
type entry struct {
	dst   tables.Prefix
	paths *index.Tree[netip.Addr, *path]

	// best is the originator of the best path. Only meaningful while paths
	// is not empty, which is the case for every entry stored in the RIB.
	best netip.Addr

	// installed is the nexthop and metric last queued for the FIB
	installed tables.Route
	// committed is set once a route of this destination went out through
	// Drain; fib is the last such route
	committed bool
	fib       tables.Route
}

func newEntry(dst tables.Prefix) *entry {
	return &entry{
		dst:   dst,
		paths: index.New[netip.Addr, *path](tables.CompareOriginator),
	}
}

// tombstone returns the route a deletion of e must remove: the one handed out
// last, or the one queued if nothing was ever handed out.
func (e *entry) tombstone() tables.Route {
	if e.committed {
		return e.fib
	}
	return e.installed
}

func (e *entry) bestPath() *path {
	p, _ := e.paths.Lookup(e.best)
	return p
}

// installedChanged reports whether the best path differs from the installed
// snapshot in nexthop or metric.
func (e *entry) installedChanged() bool {
	best := e.bestPath()
	return !e.installed.NextHop.Equal(best.nexthop) || e.installed.Metric != best.metric
}

func (e *entry) snapshot(pending bool) EntrySnapshot {
	s := EntrySnapshot{
		Destination: e.dst,
		Installed:   e.installed,
		Paths:       make([]PathSnapshot, 0, e.paths.Len()),
		Pending:     pending,
	}
	e.paths.Walk(func(originator netip.Addr, p *path) bool {
		isBest := originator == e.best
		ps := p.snapshot(isBest)
		if isBest {
			s.Best = ps
		}
		s.Paths = append(s.Paths, ps)
		return true
	})
	return s
}

// EntrySnapshot is a point-in-time copy of a RIB entry.
type EntrySnapshot struct {
	Destination tables.Prefix
	// Best is the selected path, also present in Paths
	Best PathSnapshot
	// Installed is the route last queued towards the FIB
	Installed tables.Route
	// Paths are all candidates ordered by originator
	Paths []PathSnapshot
	// Pending is set while the entry waits in the change queue
	Pending bool
}

func (s EntrySnapshot) String() string {
	return fmt.Sprintf("%s via %s %s best %s (%d paths)",
		s.Destination, s.Installed.NextHop, s.Installed.Metric, s.Best.Originator, len(s.Paths))
}
