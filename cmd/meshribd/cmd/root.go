// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package cmd implements the meshribd command line.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cilium/meshrib/pkg/logging"
	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/option"
)

var log = logging.DefaultLogger.WithField(logfields.LogSubsys, "meshribd")

// NewRootCmd returns the meshribd command with its subcommands.
func NewRootCmd() *cobra.Command {
	cfg := &option.DaemonConfig{}

	rootCmd := &cobra.Command{
		Use:           "meshribd",
		Short:         "Routing information base of a mesh routing daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			vp, err := option.NewViper(cmd.Flags())
			if err != nil {
				return err
			}
			cfg.Populate(vp)
			if err := logging.SetupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}
			return cfg.Validate()
		},
	}
	option.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newRunCmd(cfg),
		newReplayCmd(cfg),
	)
	return rootCmd
}

// Execute runs the root command and exits on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		log.WithError(err).Error("meshribd failed")
		os.Exit(1)
	}
}
