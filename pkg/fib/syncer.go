// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package fib programs the best routes of the RIB into the kernel forwarding
// table through netlink.
package fib

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"

	"github.com/cilium/meshrib/pkg/lock"
	"github.com/cilium/meshrib/pkg/logging"
	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/metrics"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "fib")

// Options configures where and how routes are installed.
type Options struct {
	// TableID is the kernel routing table routes are installed into
	TableID int
	// ProtocolID tags the installed routes, so routes of a previous run can
	// be told apart from routes owned by others
	ProtocolID int
	// VrfName is the VRF device bound to TableID. Empty means no VRF.
	VrfName string
	// MetricMode selects the kernel priority of the installed routes
	MetricMode MetricMode
}

// Validate checks that the options describe a usable kernel table.
func (o Options) Validate() error {
	if o.TableID == 0 {
		return fmt.Errorf("no table ID specified")
	}
	if err := validateProtocolID(o.ProtocolID); err != nil {
		return fmt.Errorf("invalid protocol ID: %w", err)
	}
	if _, err := ParseMetricMode(string(o.MetricMode)); err != nil {
		return err
	}
	return nil
}

func validateProtocolID(protocolID int) error {
	if protocolID == 0 {
		return fmt.Errorf("no protocol ID specified")
	}
	if protocolID < unix.RTPROT_STATIC {
		return fmt.Errorf("protocol IDs < %d are reserved for kernel internal use", unix.RTPROT_STATIC)
	}
	return nil
}

// Syncer applies drained RIB changes to the kernel. It remembers what it
// installed, so deletions only ever remove its own routes.
type Syncer struct {
	Options

	mu      lock.Mutex
	ops     RouteOps
	metrics *Metrics

	// installed is replaced as a whole after every mutation so readers never
	// need mu.
	installed atomic.Pointer[iradix.Tree]
}

// NewSyncer validates opts and, if a VRF is configured, makes sure the VRF
// device exists and is up.
func NewSyncer(ops RouteOps, opts Options, reg prometheus.Registerer) (*Syncer, error) {
	if ops == nil {
		return nil, fmt.Errorf("no route operations provided")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Syncer{
		Options: opts,
		ops:     ops,
		metrics: NewMetrics(reg),
	}
	s.installed.Store(iradix.New())

	if opts.VrfName != "" {
		if _, err := s.ensureVrf(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Installed returns a snapshot of the routes currently installed.
func (s *Syncer) Installed() View {
	return View{tree: s.installed.Load()}
}

// Sync applies changes in order. Changes that could not be applied are
// returned together with the combined error, so the caller can retry them.
func (s *Syncer) Sync(ctx context.Context, changes []tables.Change) ([]tables.Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		failed []tables.Change
		errs   error
	)

	txn := s.installed.Load().Txn()
	for i, c := range changes {
		if err := ctx.Err(); err != nil {
			failed = append(failed, changes[i:]...)
			errs = multierr.Append(errs, err)
			break
		}

		err := s.apply(txn, c)
		s.metrics.Ops.WithLabelValues(c.Op.String(), metrics.Outcome(err)).Inc()
		if err != nil {
			log.WithError(err).WithField(logfields.Prefix, c.Route.Prefix).Warn("Failed to apply route change")
			failed = append(failed, c)
			errs = multierr.Append(errs, err)
		}
	}
	s.publish(txn)

	return failed, errs
}

func (s *Syncer) apply(txn *iradix.Txn, c tables.Change) error {
	key := c.Route.Prefix.Key()

	var (
		cur   InstalledRoute
		found bool
	)
	if raw, ok := txn.Get(key); ok {
		cur, found = raw.(InstalledRoute), true
	}

	switch c.Op {
	case tables.ChangeOpAdd, tables.ChangeOpChange:
		want := InstalledRoute{Route: c.Route, Priority: s.MetricMode.Priority(c.Route.Metric)}
		if found && !s.MetricMode.needsUpdate(cur, want) {
			// The kernel route stays as it is, only the metric we report moves.
			cur.Route = c.Route
			txn.Insert(key, cur)
			return nil
		}
		if found && cur.Priority != want.Priority {
			// Priority is part of the kernel route key, replacing would leave
			// the old route behind.
			if err := s.deleteRoute(cur); err != nil {
				return err
			}
			txn.Delete(key)
		}
		if err := s.ops.RouteReplace(s.netlinkRoute(want)); err != nil {
			return fmt.Errorf("couldn't replace route with prefix %s: %w", c.Route.Prefix, err)
		}
		txn.Insert(key, want)
		log.WithFields(logrus.Fields{
			logfields.Prefix:  c.Route.Prefix,
			logfields.NextHop: c.Route.NextHop,
			logfields.Metric:  want.Priority,
		}).Debug("Installed route")

	case tables.ChangeOpDelete:
		if !found {
			return nil
		}
		if err := s.deleteRoute(cur); err != nil {
			return err
		}
		txn.Delete(key)
		log.WithField(logfields.Prefix, c.Route.Prefix).Debug("Removed route")

	default:
		return fmt.Errorf("unknown change operation %d for prefix %s", c.Op, c.Route.Prefix)
	}
	return nil
}

// deleteRoute removes rt from the kernel. A route that is already gone is
// not an error.
func (s *Syncer) deleteRoute(rt InstalledRoute) error {
	if err := s.ops.RouteDel(s.netlinkRoute(rt)); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("couldn't delete route with prefix %s: %w", rt.Prefix, err)
	}
	return nil
}

func (s *Syncer) publish(txn *iradix.Txn) {
	tree := txn.Commit()
	s.installed.Store(tree)
	s.metrics.Installed.Set(float64(tree.Len()))
}

// Flush removes every installed route from the kernel.
func (s *Syncer) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		errs    error
		removed int
	)
	txn := s.installed.Load().Txn()
	for _, rt := range s.Installed().Routes() {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		err := s.deleteRoute(rt)
		s.metrics.Ops.WithLabelValues(tables.ChangeOpDelete.String(), metrics.Outcome(err)).Inc()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		txn.Delete(rt.Prefix.Key())
		removed++
	}
	s.publish(txn)

	log.WithFields(logrus.Fields{
		logfields.Table: s.TableID,
		logfields.Count: removed,
	}).Info("Flushed installed routes")
	return errs
}
