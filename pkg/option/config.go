// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package option holds the daemon configuration.
package option

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/cilium/meshrib/pkg/fib"
	"github.com/cilium/meshrib/pkg/logging"
)

const (
	// LogLevel is the minimum level of emitted log messages
	LogLevel = "log-level"

	// LogFormat is the format of log messages, text or json
	LogFormat = "log-format"

	// FIBMetric selects how RIB metrics map to kernel route priorities
	FIBMetric = "fib-metric"

	// KernelTable is the kernel routing table routes are installed into
	KernelTable = "kernel-table"

	// KernelProtocol is the protocol ID installed routes are tagged with
	KernelProtocol = "kernel-protocol"

	// VRF is the name of the VRF device bound to the kernel table
	VRF = "vrf"

	// NetNS is the path of the network namespace to program routes in
	NetNS = "netns"

	// InstallRoutes enables programming of the kernel FIB
	InstallRoutes = "install-routes"

	// FlushOnExit removes the installed routes on shutdown
	FlushOnExit = "flush-on-exit"

	// SyncInterval is the maximum time between two FIB synchronisations
	SyncInterval = "sync-interval"

	// PassInterval is the time between two replayed routing passes
	PassInterval = "pass-interval"

	// APIAddr is the listen address of the diagnostics API
	APIAddr = "api-addr"

	// Scenario is the path of the scenario file driving the RIB
	Scenario = "scenario"

	// EnvPrefix is the prefix of environment variables overriding flags
	EnvPrefix = "MESHRIB"
)

const (
	defaultKernelTable    = unix.RT_TABLE_MAIN
	defaultKernelProtocol = 100
	defaultSyncInterval   = time.Second
	defaultPassInterval   = 5 * time.Second
	defaultAPIAddr        = "127.0.0.1:9962"
)

// DaemonConfig is the configuration of meshribd.
type DaemonConfig struct {
	LogLevel       string
	LogFormat      string
	FIBMetric      string
	KernelTable    int
	KernelProtocol int
	VRF            string
	NetNS          string
	InstallRoutes  bool
	FlushOnExit    bool
	SyncInterval   time.Duration
	PassInterval   time.Duration
	APIAddr        string
	Scenario       string
}

// RegisterFlags declares the daemon flags on flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(LogLevel, "info", "Log level (trace, debug, info, warning, error)")
	flags.String(LogFormat, logging.FormatText, "Log format (text, json)")
	flags.String(FIBMetric, string(fib.MetricFlat), "Kernel route priority mode (flat, correct, approx)")
	flags.Int(KernelTable, defaultKernelTable, "Kernel routing table to install routes into")
	flags.Int(KernelProtocol, defaultKernelProtocol, "Protocol ID to tag installed routes with")
	flags.String(VRF, "", "VRF device bound to the kernel table, created if missing")
	flags.String(NetNS, "", "Path of the network namespace to install routes in")
	flags.Bool(InstallRoutes, true, "Install routes into the kernel")
	flags.Bool(FlushOnExit, true, "Remove installed routes on exit")
	flags.Duration(SyncInterval, defaultSyncInterval, "Maximum interval between two kernel synchronisations")
	flags.Duration(PassInterval, defaultPassInterval, "Interval between two replayed routing passes")
	flags.String(APIAddr, defaultAPIAddr, "Listen address of the diagnostics API, empty to disable")
	flags.String(Scenario, "", "Scenario file driving the RIB")
}

// NewViper returns a viper instance bound to flags and to the MESHRIB_
// environment variables.
func NewViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	vp := viper.New()
	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	vp.AutomaticEnv()
	if err := vp.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("couldn't bind flags: %w", err)
	}
	return vp, nil
}

// Populate sets c from vp.
func (c *DaemonConfig) Populate(vp *viper.Viper) {
	c.LogLevel = vp.GetString(LogLevel)
	c.LogFormat = vp.GetString(LogFormat)
	c.FIBMetric = vp.GetString(FIBMetric)
	c.KernelTable = vp.GetInt(KernelTable)
	c.KernelProtocol = vp.GetInt(KernelProtocol)
	c.VRF = vp.GetString(VRF)
	c.NetNS = vp.GetString(NetNS)
	c.InstallRoutes = vp.GetBool(InstallRoutes)
	c.FlushOnExit = vp.GetBool(FlushOnExit)
	c.SyncInterval = vp.GetDuration(SyncInterval)
	c.PassInterval = vp.GetDuration(PassInterval)
	c.APIAddr = vp.GetString(APIAddr)
	c.Scenario = vp.GetString(Scenario)
}

// Validate checks the configuration for consistency.
func (c *DaemonConfig) Validate() error {
	switch c.LogFormat {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("invalid %s %q", LogFormat, c.LogFormat)
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %s", SyncInterval, c.SyncInterval)
	}
	if c.PassInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %s", PassInterval, c.PassInterval)
	}
	if err := c.FIBOptions().Validate(); err != nil {
		return fmt.Errorf("invalid kernel FIB configuration: %w", err)
	}
	return nil
}

// FIBOptions returns the kernel FIB options of c.
func (c *DaemonConfig) FIBOptions() fib.Options {
	return fib.Options{
		TableID:    c.KernelTable,
		ProtocolID: c.KernelProtocol,
		VrfName:    c.VRF,
		MetricMode: fib.MetricMode(c.FIBMetric),
	}
}
