// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

// passState tracks the recomputation pass in progress, if any.
type passState struct {
	active     bool
	generation uint32
}

// SweepStats summarises the garbage collection at the end of a pass.
type SweepStats struct {
	Generation uint32
	// Paths is the number of stale paths removed
	Paths int
	// Routes is the number of destinations that lost their last path
	Routes int
}

// Generation returns the current generation. Paths upserted now are stamped
// with it.
func (r *RIB) Generation() uint32 {
	return r.generation
}

// BeginPass starts a recomputation pass and returns its generation. Every
// path that is not upserted again before EndPass is removed by it.
//
// Starting a pass while another is active abandons the earlier one; its
// paths are as current as any other path older than the new pass.
func (r *RIB) BeginPass() uint32 {
	if r.pass.active {
		log.WithField(logfields.Generation, r.pass.generation).Warn("Abandoning unfinished recomputation pass")
	}
	r.generation++
	r.pass = passState{active: true, generation: r.generation}
	r.metrics.Passes.Inc()
	return r.generation
}

// EndPass closes the active pass and removes every path whose generation is
// older than the pass, exactly as if it had been withdrawn. Without an
// active pass it does nothing.
func (r *RIB) EndPass() SweepStats {
	if !r.pass.active {
		log.Debug("EndPass without active recomputation pass")
		return SweepStats{Generation: r.generation}
	}
	gen := r.pass.generation
	r.pass.active = false

	stats := SweepStats{Generation: gen}
	r.routes.Walk(func(_ tables.Prefix, e *entry) bool {
		removed := r.sweepEntry(e, gen)
		if removed > 0 {
			stats.Paths += removed
			if e.paths.Len() == 0 {
				stats.Routes++
			}
		}
		return true
	})
	r.metrics.SweptPaths.Add(float64(stats.Paths))

	scopedLog := log.WithFields(logrus.Fields{
		logfields.Generation: gen,
		"paths":              stats.Paths,
		"routes":             stats.Routes,
	})
	if stats.Paths > 0 {
		scopedLog.Info("Swept stale paths")
	} else {
		scopedLog.Debug("Recomputation pass finished")
	}
	return stats
}

// sweepEntry removes the paths of e older than gen and restores the entry
// invariants once, however many paths went away.
func (r *RIB) sweepEntry(e *entry, gen uint32) int {
	removed := 0
	bestRemoved := false
	e.paths.Walk(func(originator netip.Addr, p *path) bool {
		if p.generation >= gen {
			return true
		}
		if r.removePath(e, originator) {
			bestRemoved = true
		}
		removed++
		return true
	})
	if removed > 0 {
		r.settle(e, bestRemoved)
	}
	return removed
}
