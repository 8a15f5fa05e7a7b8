// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
	"go.uber.org/goleak"

	"github.com/cilium/meshrib/pkg/lock"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

// fakeSyncer records applied changes and fails the destinations listed in
// failing.
type fakeSyncer struct {
	mu      lock.Mutex
	applied []tables.Change
	failing map[tables.Prefix]bool
}

func (f *fakeSyncer) Sync(_ context.Context, changes []tables.Change) ([]tables.Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var failed []tables.Change
	for _, c := range changes {
		if f.failing[c.Route.Prefix] {
			failed = append(failed, c)
			continue
		}
		f.applied = append(f.applied, c)
	}
	if len(failed) > 0 {
		return failed, errors.New("injected failure")
	}
	return nil, nil
}

func (f *fakeSyncer) setFailing(dst tables.Prefix, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[dst] = fail
}

func (f *fakeSyncer) appliedChanges() []tables.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tables.Change(nil), f.applied...)
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{failing: map[tables.Prefix]bool{}}
}

func TestProcessorRetriesFailedChanges(t *testing.T) {
	r := require.New(t)
	m := NewManager(New(nil))
	syncer := newFakeSyncer()
	p := NewProcessor(m, syncer, ProcessorConfig{SyncInterval: time.Hour})

	syncer.setFailing(dst1, true)
	r.NoError(m.Update(func(rib *RIB) error {
		upsert(t, rib, internal(dst0, origA, nhA, 1, 1))
		upsert(t, rib, internal(dst1, origA, nhA, 1, 1))
		return nil
	}))

	r.Error(p.SyncOnce(context.Background()))
	r.Error(p.LastError())
	r.Len(syncer.appliedChanges(), 1)

	m.Read(func(rib *RIB) {
		r.Equal(1, rib.Pending())
	})

	syncer.setFailing(dst1, false)
	r.NoError(p.SyncOnce(context.Background()))
	r.NoError(p.LastError())

	applied := syncer.appliedChanges()
	r.Len(applied, 2)
	r.Equal(dst1, applied[1].Route.Prefix)
	r.Equal(tables.ChangeOpAdd, applied[1].Op)

	// Nothing left, nothing applied
	r.NoError(p.SyncOnce(context.Background()))
	r.Len(syncer.appliedChanges(), 2)
}

func TestProcessorRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := NewManager(New(nil))
	syncer := newFakeSyncer()
	p := NewProcessor(m, syncer, ProcessorConfig{SyncInterval: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- p.Run(ctx)
	}()

	require.NoError(t, m.Update(func(rib *RIB) error {
		rib.BeginPass()
		upsert(t, rib, internal(dst0, origA, nhA, 1, 1))
		rib.EndPass()
		return nil
	}))

	require.Eventually(t, func() bool {
		applied := syncer.appliedChanges()
		return len(applied) == 1 && applied[0].Op == tables.ChangeOpAdd
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Update(func(rib *RIB) error {
		rib.BeginPass()
		rib.EndPass()
		return nil
	}))

	require.Eventually(t, func() bool {
		applied := syncer.appliedChanges()
		return len(applied) == 2 && applied[1].Op == tables.ChangeOpDelete
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestManagerUpdateError(t *testing.T) {
	r := require.New(t)
	m := NewManager(New(nil))

	err := m.Update(func(rib *RIB) error {
		return rib.Upsert(dst0, origA, tables.NextHop{}, tables.Metric{}, tables.OriginInternal)
	})
	r.ErrorIs(err, ErrInvalidArgument)

	select {
	case <-m.Changed():
	default:
		r.FailNow("update must signal the processor")
	}
}

func TestRegister(t *testing.T) {
	r := require.New(t)
	c := dig.New()

	syncer := newFakeSyncer()
	r.NoError(c.Provide(func() prometheus.Registerer { return prometheus.NewRegistry() }))
	r.NoError(c.Provide(func() FIBSyncer { return syncer }))
	r.NoError(c.Provide(func() ProcessorConfig { return ProcessorConfig{SyncInterval: time.Minute} }))
	r.NoError(Register(c))

	r.NoError(c.Invoke(func(m *Manager, p *Processor) {
		r.NoError(m.Update(func(rib *RIB) error {
			upsert(t, rib, internal(dst0, origA, nhA, 1, 1))
			return nil
		}))
		r.NoError(p.SyncOnce(context.Background()))
	}))
	r.Len(syncer.appliedChanges(), 1)
}
