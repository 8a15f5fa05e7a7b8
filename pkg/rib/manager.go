// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"github.com/cilium/meshrib/pkg/lock"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

// Manager serialises access to a RIB so that the route producers, the FIB
// processor and diagnostics behave as a single thread of control.
type Manager struct {
	mu  lock.Mutex
	rib *RIB

	// changed is signalled, without blocking, after every Update
	changed chan struct{}
}

// NewManager wraps r. r must not be used directly afterwards.
func NewManager(r *RIB) *Manager {
	return &Manager{
		rib:     r,
		changed: make(chan struct{}, 1),
	}
}

// Update runs fn with exclusive access to the RIB and then wakes up the FIB
// processor.
func (m *Manager) Update(fn func(r *RIB) error) error {
	m.mu.Lock()
	err := fn(m.rib)
	m.mu.Unlock()

	select {
	case m.changed <- struct{}{}:
	default:
	}
	return err
}

// Read runs fn with exclusive access to the RIB. fn must not mutate it.
func (m *Manager) Read(fn func(r *RIB)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.rib)
}

// Changed is signalled after updates.
func (m *Manager) Changed() <-chan struct{} {
	return m.changed
}

// Drain drains the change queue of the RIB.
func (m *Manager) Drain() []tables.Change {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rib.Drain()
}

// Requeue hands failed changes back to the RIB. It does not wake up the
// processor, the failed changes are retried on its next round.
func (m *Manager) Requeue(changes []tables.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range changes {
		m.rib.Requeue(c)
	}
}
