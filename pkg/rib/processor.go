// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/cilium/meshrib/pkg/lock"
	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

// FIBSyncer applies drained changes to the kernel forwarding table. It
// returns the changes it could not apply, together with the reason.
type FIBSyncer interface {
	Sync(ctx context.Context, changes []tables.Change) (failed []tables.Change, err error)
}

const defaultSyncInterval = time.Second

// ProcessorConfig configures the FIB processor.
type ProcessorConfig struct {
	// SyncInterval bounds the time between two synchronisation rounds, and
	// with it the delay before failed changes are retried.
	SyncInterval time.Duration
}

type processorIn struct {
	dig.In

	Manager *Manager
	Syncer  FIBSyncer
	Config  ProcessorConfig
}

// Processor drains the RIB change queue and synchronises the kernel FIB.
type Processor struct {
	manager  *Manager
	syncer   FIBSyncer
	interval time.Duration

	mu      lock.RWMutex
	lastErr error
}

func newProcessor(in processorIn) *Processor {
	return NewProcessor(in.Manager, in.Syncer, in.Config)
}

// NewProcessor returns a processor synchronising the RIB of m through s.
func NewProcessor(m *Manager, s FIBSyncer, cfg ProcessorConfig) *Processor {
	interval := cfg.SyncInterval
	if interval <= 0 {
		interval = defaultSyncInterval
	}
	return &Processor{
		manager:  m,
		syncer:   s,
		interval: interval,
	}
}

// Run synchronises after every RIB update and every sync interval until ctx
// is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.manager.Changed():
		case <-ticker.C:
		}
		p.SyncOnce(ctx)
	}
}

// SyncOnce runs one synchronisation round. Changes the syncer fails to apply
// are put back into the change queue.
func (p *Processor) SyncOnce(ctx context.Context) error {
	changes := p.manager.Drain()
	if len(changes) == 0 {
		return nil
	}

	failed, err := p.syncer.Sync(ctx, changes)
	if len(failed) > 0 {
		p.manager.Requeue(failed)
	}

	scopedLog := log.WithFields(logrus.Fields{
		logfields.Count: len(changes),
		"failed":        len(failed),
	})
	if err != nil {
		scopedLog.WithError(err).Warn("FIB synchronisation incomplete, will retry")
	} else {
		scopedLog.Debug("FIB synchronised")
	}

	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

// LastError returns the error of the most recent round that had changes.
func (p *Processor) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}
