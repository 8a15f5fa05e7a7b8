// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package rib implements the routing information base of the mesh routing
// daemon. Producers report candidate paths per destination and originator,
// the RIB keeps one best path per destination and queues the destinations
// whose kernel facing route changed for the FIB synchroniser.
//
// A RIB is not safe for concurrent use. Share it through a Manager.
package rib

import (
	"net/netip"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/cilium/meshrib/pkg/logging"
	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/rib/index"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "rib")

type prefixSet = index.Tree[tables.Prefix, struct{}]

// RIB is the routing information base.
type RIB struct {
	// routes holds one entry per destination
	routes *index.Tree[tables.Prefix, *entry]
	// originators holds, per originator, the destinations it has a path to
	originators *index.Tree[netip.Addr, *prefixSet]

	queue *changeQueue

	// generation is bumped once per recomputation pass
	generation uint32
	pass       passState

	metrics *Metrics
}

// New returns an empty RIB whose metrics are registered on reg. reg may be
// nil.
func New(reg prometheus.Registerer) *RIB {
	return &RIB{
		routes:      index.New[tables.Prefix, *entry](tables.ComparePrefix),
		originators: index.New[netip.Addr, *prefixSet](tables.CompareOriginator),
		queue:       newChangeQueue(),
		metrics:     NewMetrics(reg),
	}
}

// Upsert reports that dst is reachable through originator with the given
// nexthop, metric and origin. The path is created if unknown and refreshed
// otherwise; in both cases it is stamped with the current generation. The
// entry's best path is recomputed and, if the installed route changes, the
// destination is queued for the FIB.
//
// Malformed input is rejected with ErrInvalidArgument without touching the
// RIB.
func (r *RIB) Upsert(dst tables.Prefix, originator netip.Addr, nh tables.NextHop, metric tables.Metric, origin tables.Origin) error {
	if err := validatePath(dst, originator, nh, metric, origin); err != nil {
		r.metrics.InvalidArguments.Inc()
		return err
	}
	dst = tables.NewPrefix(dst.Prefix)

	e, ok := r.routes.Lookup(dst)
	if !ok {
		e = newEntry(dst)
		// A route removed since the last drain is still in the kernel, the
		// new entry takes it over.
		if p, queued := r.queue.lookup(dst); queued && p.committed {
			e.committed = true
			e.fib = p.tombstone
		}
		r.routes.Insert(dst, e)
		r.metrics.Routes.Inc()
	}

	reselect := false
	p, ok := e.paths.Lookup(originator)
	if !ok {
		p = &path{dst: dst, originator: originator}
		e.paths.Insert(originator, p)
		r.linkOriginator(originator, dst)
		r.metrics.Paths.Inc()
		reselect = true
		log.WithFields(logrus.Fields{
			logfields.Prefix:     dst,
			logfields.Originator: originator,
			logfields.Origin:     origin,
		}).Debug("Adding path")
	} else if p.metric != metric || p.origin != origin {
		reselect = true
	}

	p.nexthop = nh
	p.metric = metric
	p.origin = origin
	p.generation = r.generation

	if reselect {
		r.selectBest(e)
	}
	r.updateInstalled(e)
	return nil
}

// Withdraw removes the path to dst announced by originator. Withdrawing an
// unknown path is a no-op. It reports whether a path was removed.
func (r *RIB) Withdraw(dst tables.Prefix, originator netip.Addr) bool {
	if !dst.IsValid() {
		return false
	}
	dst = tables.NewPrefix(dst.Prefix)
	e, ok := r.routes.Lookup(dst)
	if !ok {
		return false
	}
	if _, ok := e.paths.Lookup(originator); !ok {
		return false
	}

	log.WithFields(logrus.Fields{
		logfields.Prefix:     dst,
		logfields.Originator: originator,
	}).Debug("Withdrawing path")

	bestRemoved := r.removePath(e, originator)
	r.settle(e, bestRemoved)
	return true
}

// WithdrawOriginator removes every path announced by originator, as when the
// originating router disappears from the topology. It returns the number of
// removed paths.
func (r *RIB) WithdrawOriginator(originator netip.Addr) int {
	dsts, ok := r.originators.Lookup(originator)
	if !ok {
		return 0
	}
	n := 0
	for _, dst := range dsts.Keys() {
		if r.Withdraw(dst, originator) {
			n++
		}
	}
	return n
}

// removePath unlinks the path of originator from e. It does not reselect;
// callers follow up with settle. It reports whether the removed path was the
// best one.
func (r *RIB) removePath(e *entry, originator netip.Addr) bool {
	if err := e.paths.Delete(originator); err != nil {
		return false
	}
	r.unlinkOriginator(originator, e.dst)
	r.metrics.Paths.Dec()
	return originator == e.best
}

// settle restores the entry invariants after paths were removed from e: an
// empty entry leaves the RIB with a tombstone queued, otherwise the best path
// is recomputed if it was among the removed ones.
func (r *RIB) settle(e *entry, bestRemoved bool) {
	if e.paths.Len() == 0 {
		r.routes.Delete(e.dst)
		r.metrics.Routes.Dec()
		p := r.queue.enqueue(e.dst)
		p.tombstone = e.tombstone()
		p.committed = e.committed
		r.metrics.QueueLength.Set(float64(r.queue.len()))

		log.WithField(logfields.Prefix, e.dst).Debug("Removing route")
		return
	}
	if bestRemoved {
		r.selectBest(e)
	}
	r.updateInstalled(e)
}

func (r *RIB) linkOriginator(originator netip.Addr, dst tables.Prefix) {
	dsts, ok := r.originators.Lookup(originator)
	if !ok {
		dsts = index.New[tables.Prefix, struct{}](tables.ComparePrefix)
		r.originators.Insert(originator, dsts)
	}
	dsts.Insert(dst, struct{}{})
}

func (r *RIB) unlinkOriginator(originator netip.Addr, dst tables.Prefix) {
	dsts, ok := r.originators.Lookup(originator)
	if !ok {
		return
	}
	dsts.Delete(dst)
	if dsts.Len() == 0 {
		r.originators.Delete(originator)
	}
}

// Lookup returns a snapshot of the entry of dst.
func (r *RIB) Lookup(dst tables.Prefix) (EntrySnapshot, bool) {
	if !dst.IsValid() {
		return EntrySnapshot{}, false
	}
	dst = tables.NewPrefix(dst.Prefix)
	e, ok := r.routes.Lookup(dst)
	if !ok {
		return EntrySnapshot{}, false
	}
	return e.snapshot(r.queue.contains(dst)), true
}

// Match returns the entry with the longest prefix covering addr.
func (r *RIB) Match(addr netip.Addr) (EntrySnapshot, bool) {
	if !addr.IsValid() {
		return EntrySnapshot{}, false
	}
	addr = addr.WithZone("")
	for bits := addr.BitLen(); bits >= 0; bits-- {
		dst := tables.NewPrefix(netip.PrefixFrom(addr, bits))
		if e, ok := r.routes.Lookup(dst); ok {
			return e.snapshot(r.queue.contains(dst)), true
		}
	}
	return EntrySnapshot{}, false
}

// Walk calls fn with a snapshot of every entry in destination order until fn
// returns false. fn may mutate the RIB, including withdrawing the entry it
// was called with.
func (r *RIB) Walk(fn func(EntrySnapshot) bool) {
	r.routes.Walk(func(dst tables.Prefix, e *entry) bool {
		return fn(e.snapshot(r.queue.contains(dst)))
	})
}

// WalkOrigin is like Walk but only visits entries whose best path has the
// given origin.
func (r *RIB) WalkOrigin(origin tables.Origin, fn func(EntrySnapshot) bool) {
	r.Walk(func(s EntrySnapshot) bool {
		if s.Best.Origin != origin {
			return true
		}
		return fn(s)
	})
}

// Originators returns the routers currently contributing paths.
func (r *RIB) Originators() []netip.Addr {
	return r.originators.Keys()
}

// Len returns the number of destinations.
func (r *RIB) Len() int {
	return r.routes.Len()
}
