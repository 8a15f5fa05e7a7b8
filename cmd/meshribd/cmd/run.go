// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"time"

	"github.com/cilium/workerpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"golang.org/x/sys/unix"

	"github.com/cilium/meshrib/pkg/api"
	"github.com/cilium/meshrib/pkg/fib"
	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/metrics"
	"github.com/cilium/meshrib/pkg/option"
	"github.com/cilium/meshrib/pkg/rib"
	"github.com/cilium/meshrib/pkg/scenario"
)

const flushTimeout = 10 * time.Second

func newRunCmd(cfg *option.DaemonConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), unix.SIGINT, unix.SIGTERM)
			defer stop()

			c, err := newContainer(cfg, nil)
			if err != nil {
				return err
			}
			return c.Invoke(func(d daemon) error {
				return d.run(ctx, cfg)
			})
		},
	}
}

// newContainer wires the daemon. ops overrides the kernel route operations,
// nil selects them from the configuration.
func newContainer(cfg *option.DaemonConfig, ops fib.RouteOps) (*dig.Container, error) {
	c := dig.New()
	reg := metrics.NewRegistry()

	for _, ctor := range []any{
		func() *option.DaemonConfig { return cfg },
		func() prometheus.Registerer { return reg },
		func() prometheus.Gatherer { return reg },
		func() rib.ProcessorConfig { return rib.ProcessorConfig{SyncInterval: cfg.SyncInterval} },
		func() (fib.RouteOps, error) {
			if ops != nil {
				return ops, nil
			}
			return newRouteOps(cfg)
		},
		func(ops fib.RouteOps, reg prometheus.Registerer) (*fib.Syncer, error) {
			return fib.NewSyncer(ops, cfg.FIBOptions(), reg)
		},
		func(s *fib.Syncer) rib.FIBSyncer { return s },
	} {
		if err := c.Provide(ctor); err != nil {
			return nil, err
		}
	}
	if err := rib.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

func newRouteOps(cfg *option.DaemonConfig) (fib.RouteOps, error) {
	if !cfg.InstallRoutes {
		log.Info("Route installation disabled, kernel changes are only logged")
		return fib.DryRunOps{}, nil
	}
	h, err := fib.NewNetlinkOps(cfg.NetNS)
	if err != nil {
		return nil, err
	}
	return h, nil
}

type daemon struct {
	dig.In

	Manager   *rib.Manager
	Processor *rib.Processor
	Syncer    *fib.Syncer
	Gatherer  prometheus.Gatherer
}

func (d daemon) run(ctx context.Context, cfg *option.DaemonConfig) error {
	log.WithFields(logrus.Fields{
		logfields.Table:    cfg.KernelTable,
		logfields.Protocol: cfg.KernelProtocol,
		logfields.VRF:      cfg.VRF,
	}).Info("Starting meshribd")

	if err := d.Syncer.Reconcile(ctx); err != nil {
		log.WithError(err).Warn("Failed to remove stale kernel routes")
	}

	var sc *scenario.Scenario
	if cfg.Scenario != "" {
		var err error
		if sc, err = scenario.Load(cfg.Scenario); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp := workerpool.New(3)
	submit := func(id string, fn func(context.Context) error) error {
		// Jobs follow ctx rather than the pool context, so that they stop
		// before the pool is drained.
		return wp.Submit(id, func(context.Context) error {
			err := fn(ctx)
			if err != nil {
				log.WithError(err).WithField("job", id).Error("Job failed, shutting down")
				cancel()
			}
			return err
		})
	}

	if err := submit("fib-processor", d.Processor.Run); err != nil {
		return err
	}
	if cfg.APIAddr != "" {
		srv := api.NewServer(cfg.APIAddr, d.Manager, d.Syncer, d.Gatherer)
		if err := submit("api-server", srv.Run); err != nil {
			return err
		}
	}
	if sc != nil {
		if err := submit("scenario", func(ctx context.Context) error {
			return scenario.Play(ctx, d.Manager, sc, cfg.PassInterval)
		}); err != nil {
			return err
		}
	}

	<-ctx.Done()
	log.Info("Shutting down")

	var jobErr error
	tasks, err := wp.Drain()
	if err != nil {
		return fmt.Errorf("couldn't drain jobs: %w", err)
	}
	for _, t := range tasks {
		if t.Err() != nil && jobErr == nil {
			jobErr = fmt.Errorf("job %s: %w", t, t.Err())
		}
	}
	if err := wp.Close(); err != nil {
		return err
	}

	if cfg.FlushOnExit {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := d.Syncer.Flush(flushCtx); err != nil {
			log.WithError(err).Warn("Failed to remove installed routes")
		}
	}
	return jobErr
}
