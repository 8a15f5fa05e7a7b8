// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cilium/meshrib/pkg/fib"
	"github.com/cilium/meshrib/pkg/option"
	"github.com/cilium/meshrib/pkg/rib"
	"github.com/cilium/meshrib/pkg/scenario"
)

func newReplayCmd(cfg *option.DaemonConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "replay [scenario]",
		Short: "Replay a scenario offline and print the resulting tables",
		Long: "Replay applies the passes of a scenario file to an empty RIB without touching\n" +
			"the kernel. The changes drained after every pass are printed, followed by\n" +
			"the final RIB and the routes that would be installed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfg.Scenario
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no scenario file given")
			}
			sc, err := scenario.Load(path)
			if err != nil {
				return err
			}
			return replay(cmd.Context(), cmd.OutOrStdout(), sc, cfg.FIBOptions())
		},
	}
}

func replay(ctx context.Context, w io.Writer, sc *scenario.Scenario, opts fib.Options) error {
	table := rib.New(nil)
	syncer, err := fib.NewSyncer(fib.DryRunOps{}, opts, nil)
	if err != nil {
		return err
	}

	for i, pass := range sc.Passes {
		stats, err := pass.Apply(table)
		fmt.Fprintf(w, "pass %d %q: generation %d, swept %d paths and %d routes\n",
			i+1, pass.Name, stats.Generation, stats.Paths, stats.Routes)
		if err != nil {
			fmt.Fprintf(w, "  errors: %s\n", err)
		}

		changes := table.Drain()
		for _, c := range changes {
			fmt.Fprintf(w, "  %s\n", c)
		}
		failed, err := syncer.Sync(ctx, changes)
		if err != nil {
			return fmt.Errorf("pass %d: %w", i+1, err)
		}
		for _, c := range failed {
			table.Requeue(c)
		}
	}

	fmt.Fprintln(w)
	if err := table.Dump(w); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return syncer.Installed().Dump(w)
}
