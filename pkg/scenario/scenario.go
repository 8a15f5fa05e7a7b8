// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package scenario replays routing passes described in YAML against a RIB.
// It stands in for the topology computation feeding the RIB in a full
// routing daemon.
package scenario

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"sigs.k8s.io/yaml"

	"github.com/cilium/meshrib/pkg/logging"
	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/rib"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "scenario")

// Path is a candidate path upserted into the RIB.
type Path struct {
	Destination string `json:"destination"`
	Originator  string `json:"originator"`
	Gateway     string `json:"gateway"`
	IfIndex     int    `json:"ifindex"`
	Cost        uint32 `json:"cost"`
	Hops        uint32 `json:"hops"`
	// Origin defaults to internal
	Origin string `json:"origin,omitempty"`
}

// Withdrawal removes the path of Originator towards Destination.
type Withdrawal struct {
	Destination string `json:"destination"`
	Originator  string `json:"originator"`
}

// Pass is one batch of RIB updates.
type Pass struct {
	Name string `json:"name,omitempty"`
	// Incremental passes apply their updates without a recomputation pass,
	// so nothing they do not mention is swept.
	Incremental bool         `json:"incremental,omitempty"`
	Upserts     []Path       `json:"upserts,omitempty"`
	Withdrawals []Withdrawal `json:"withdrawals,omitempty"`
	// LostOriginators are routers whose every path is withdrawn
	LostOriginators []string `json:"lostOriginators,omitempty"`
}

// Scenario is a sequence of passes.
type Scenario struct {
	Passes []Pass `json:"passes"`
}

// Parse decodes a YAML scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	s := &Scenario{}
	if err := yaml.UnmarshalStrict(data, s); err != nil {
		return nil, fmt.Errorf("couldn't parse scenario: %w", err)
	}
	return s, nil
}

// Load reads and decodes the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func (p Path) upsert(r *rib.RIB) error {
	dst, err := tables.ParsePrefix(p.Destination)
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	originator, err := netip.ParseAddr(p.Originator)
	if err != nil {
		return fmt.Errorf("invalid originator: %w", err)
	}
	gw, err := netip.ParseAddr(p.Gateway)
	if err != nil {
		return fmt.Errorf("invalid gateway: %w", err)
	}
	origin := tables.OriginInternal
	if p.Origin != "" {
		if origin, err = tables.ParseOrigin(p.Origin); err != nil {
			return err
		}
	}
	return r.Upsert(dst, originator,
		tables.NextHop{Gateway: gw, IfIndex: p.IfIndex},
		tables.Metric{Cost: tables.LinkCost(p.Cost), Hops: p.Hops},
		origin)
}

func (w Withdrawal) withdraw(r *rib.RIB) error {
	dst, err := tables.ParsePrefix(w.Destination)
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	originator, err := netip.ParseAddr(w.Originator)
	if err != nil {
		return fmt.Errorf("invalid originator: %w", err)
	}
	r.Withdraw(dst, originator)
	return nil
}

// Apply runs the pass against r. Invalid entries are skipped and reported in
// the returned error; the rest of the pass is still applied and, unless the
// pass is incremental, the sweep still runs.
func (p Pass) Apply(r *rib.RIB) (rib.SweepStats, error) {
	var errs error

	if !p.Incremental {
		r.BeginPass()
	}
	for i, path := range p.Upserts {
		if err := path.upsert(r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("upsert %d (%s via %s): %w", i, path.Destination, path.Originator, err))
		}
	}
	for i, w := range p.Withdrawals {
		if err := w.withdraw(r); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("withdrawal %d: %w", i, err))
		}
	}
	for _, o := range p.LostOriginators {
		originator, err := netip.ParseAddr(o)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("invalid lost originator: %w", err))
			continue
		}
		r.WithdrawOriginator(originator)
	}
	if p.Incremental {
		return rib.SweepStats{Generation: r.Generation()}, errs
	}
	return r.EndPass(), errs
}

// Play applies the passes of s to m one after the other, waiting interval
// between two passes. It returns once all passes are applied or ctx is
// cancelled. Errors of individual passes are logged and do not stop the
// replay.
func Play(ctx context.Context, m *rib.Manager, s *Scenario, interval time.Duration) error {
	for i, pass := range s.Passes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}

		var stats rib.SweepStats
		err := m.Update(func(r *rib.RIB) error {
			var err error
			stats, err = pass.Apply(r)
			return err
		})

		scopedLog := log.WithFields(logrus.Fields{
			"pass":               pass.Name,
			logfields.Generation: stats.Generation,
			"sweptPaths":         stats.Paths,
			"sweptRoutes":        stats.Routes,
		})
		if err != nil {
			scopedLog.WithError(err).Warn("Pass applied with errors")
		} else {
			scopedLog.Info("Pass applied")
		}
	}
	return nil
}
