// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import "github.com/cilium/meshrib/pkg/rib/tables"

// pending is a destination waiting in the change queue. The kernel facing
// state is read from the live entry at drain time; tombstone is used only if
// the entry is gone by then. committed tells whether the tombstone route was
// handed out by an earlier drain.
type pending struct {
	dst       tables.Prefix
	tombstone tables.Route
	committed bool
}

// changeQueue is an insertion ordered set of destinations whose kernel facing
// state changed since the last drain.
type changeQueue struct {
	order   []*pending
	members map[tables.Prefix]*pending
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		members: make(map[tables.Prefix]*pending),
	}
}

// enqueue adds dst unless it is already queued, and returns its record.
func (q *changeQueue) enqueue(dst tables.Prefix) *pending {
	if p, ok := q.members[dst]; ok {
		return p
	}
	p := &pending{dst: dst}
	q.order = append(q.order, p)
	q.members[dst] = p
	return p
}

func (q *changeQueue) contains(dst tables.Prefix) bool {
	_, ok := q.members[dst]
	return ok
}

func (q *changeQueue) lookup(dst tables.Prefix) (*pending, bool) {
	p, ok := q.members[dst]
	return p, ok
}

func (q *changeQueue) len() int {
	return len(q.order)
}

// take empties the queue and returns its former content in insertion order.
func (q *changeQueue) take() []*pending {
	order := q.order
	q.order = nil
	q.members = make(map[tables.Prefix]*pending)
	return order
}

// Drain returns the FIB changes accumulated since the previous drain, oldest
// first, and empties the change queue. The returned routes are snapshots:
// later mutations are reported by a later drain.
//
// Draining commits the installed view. If applying a change to the kernel
// fails, the caller must hand it back through Requeue.
func (r *RIB) Drain() []tables.Change {
	taken := r.queue.take()
	r.metrics.QueueLength.Set(0)
	if len(taken) == 0 {
		return nil
	}

	changes := make([]tables.Change, 0, len(taken))
	for _, p := range taken {
		e, ok := r.routes.Lookup(p.dst)
		if !ok {
			changes = append(changes, tables.Change{Op: tables.ChangeOpDelete, Route: p.tombstone})
			continue
		}
		op := tables.ChangeOpAdd
		if e.committed {
			op = tables.ChangeOpChange
		}
		e.committed = true
		e.fib = e.installed
		changes = append(changes, tables.Change{Op: op, Route: e.installed})
	}
	return changes
}

// Requeue puts back a change that could not be applied to the kernel. If the
// destination is still in the RIB its current state is queued, which
// supersedes whatever the failed change carried; a failed add is retried as
// an add. Otherwise a deletion of the route the change described is queued.
func (r *RIB) Requeue(c tables.Change) {
	dst := tables.NewPrefix(c.Route.Prefix.Prefix)
	if e, ok := r.routes.Lookup(dst); ok {
		if c.Op == tables.ChangeOpAdd {
			e.committed = false
		}
		r.queue.enqueue(dst)
	} else {
		p := r.queue.enqueue(dst)
		p.tombstone = c.Route
		p.committed = c.Op != tables.ChangeOpAdd
	}
	r.metrics.QueueLength.Set(float64(r.queue.len()))
}

// Pending returns the number of destinations waiting in the change queue.
func (r *RIB) Pending() int {
	return r.queue.len()
}
