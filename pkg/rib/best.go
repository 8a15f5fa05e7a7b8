// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

// selectBestPath returns the candidate with the lowest cost, then the lowest
// hop count, then the preferred origin, then the lowest originator address.
// It returns nil only for an empty tree.
func selectBestPath(e *entry) *path {
	var best *path
	e.paths.Walk(func(_ netip.Addr, p *path) bool {
		if best == nil || comparePaths(p, best) < 0 {
			best = p
		}
		return true
	})
	return best
}

// selectBest recomputes the best path of e. Must only be called on entries
// with at least one path.
func (r *RIB) selectBest(e *entry) {
	best := selectBestPath(e)
	if best.originator == e.best {
		return
	}

	log.WithFields(logrus.Fields{
		logfields.Prefix:     e.dst,
		logfields.Originator: best.originator,
		logfields.Metric:     best.metric,
	}).Debug("Best path changed")

	e.best = best.originator
	r.metrics.BestPathChanges.Inc()
}

// updateInstalled refreshes the installed snapshot of e from its best path
// and queues e for the FIB if anything changed.
func (r *RIB) updateInstalled(e *entry) {
	if !e.installedChanged() {
		return
	}
	best := e.bestPath()
	e.installed = tables.Route{
		Prefix:  e.dst,
		NextHop: best.nexthop,
		Metric:  best.metric,
	}
	r.queue.enqueue(e.dst)
	r.metrics.QueueLength.Set(float64(r.queue.len()))
}
