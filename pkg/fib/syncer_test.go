// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package fib

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"github.com/cilium/meshrib/pkg/metrics"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

const (
	testTable    = 100
	testProtocol = 42
)

func testOptions(mode MetricMode) Options {
	return Options{
		TableID:    testTable,
		ProtocolID: testProtocol,
		MetricMode: mode,
	}
}

func newTestSyncer(t *testing.T, mode MetricMode) (*Syncer, *fakeOps) {
	t.Helper()
	ops := newFakeOps()
	s, err := NewSyncer(ops, testOptions(mode), nil)
	require.NoError(t, err)
	return s, ops
}

func route(prefix, gw string, ifindex int, cost tables.LinkCost, hops uint32) tables.Route {
	return tables.Route{
		Prefix:  tables.MustParsePrefix(prefix),
		NextHop: tables.NextHop{Gateway: netip.MustParseAddr(gw), IfIndex: ifindex},
		Metric:  tables.Metric{Cost: cost, Hops: hops},
	}
}

func change(op tables.ChangeOp, rt tables.Route) tables.Change {
	return tables.Change{Op: op, Route: rt}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name: "valid",
			opts: testOptions(MetricFlat),
		},
		{
			name:    "missing table",
			opts:    Options{ProtocolID: testProtocol, MetricMode: MetricFlat},
			wantErr: "no table ID",
		},
		{
			name:    "missing protocol",
			opts:    Options{TableID: testTable, MetricMode: MetricFlat},
			wantErr: "no protocol ID",
		},
		{
			name:    "reserved protocol",
			opts:    Options{TableID: testTable, ProtocolID: unix.RTPROT_BOOT, MetricMode: MetricFlat},
			wantErr: "reserved",
		},
		{
			name:    "unknown metric mode",
			opts:    Options{TableID: testTable, ProtocolID: testProtocol, MetricMode: "fancy"},
			wantErr: "unknown FIB metric mode",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.opts.Validate()
			if test.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, test.wantErr)
		})
	}
}

func TestNewSyncerCreatesVrf(t *testing.T) {
	r := require.New(t)
	ops := newFakeOps()
	opts := testOptions(MetricFlat)
	opts.VrfName = "vrf-mesh"

	_, err := NewSyncer(ops, opts, nil)
	r.NoError(err)

	r.Len(ops.linkAdds, 1)
	vrf, ok := ops.linkAdds[0].(*netlink.Vrf)
	r.True(ok)
	r.Equal("vrf-mesh", vrf.Name)
	r.Equal(uint32(testTable), vrf.Table)
	r.Equal([]string{"vrf-mesh"}, ops.setUps)
}

func TestNewSyncerKeepsExistingVrf(t *testing.T) {
	r := require.New(t)
	ops := newFakeOps()
	ops.links["vrf-mesh"] = &netlink.Vrf{
		LinkAttrs: netlink.LinkAttrs{Name: "vrf-mesh", OperState: netlink.OperUp},
		Table:     testTable,
	}
	opts := testOptions(MetricFlat)
	opts.VrfName = "vrf-mesh"

	_, err := NewSyncer(ops, opts, nil)
	r.NoError(err)
	r.Empty(ops.linkAdds)
	r.Empty(ops.setUps)
}

func TestSyncAddChangeDelete(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s, ops := newTestSyncer(t, MetricFlat)

	rt := route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)
	failed, err := s.Sync(ctx, []tables.Change{change(tables.ChangeOpAdd, rt)})
	r.NoError(err)
	r.Empty(failed)

	r.Len(ops.replaced, 1)
	installed := ops.replaced[0]
	r.Equal("10.0.0.0/24", installed.Dst.String())
	r.True(installed.Gw.Equal(net.ParseIP("192.168.1.1")))
	r.Equal(3, installed.LinkIndex)
	r.Equal(testTable, installed.Table)
	r.Equal(netlink.RouteProtocol(testProtocol), installed.Protocol)
	r.Equal(flatPriority, installed.Priority)

	got, ok := s.Installed().Get(rt.Prefix)
	r.True(ok)
	r.Equal(rt, got.Route)

	// New nexthop
	moved := route("10.0.0.0/24", "192.168.1.2", 3, 10, 2)
	_, err = s.Sync(ctx, []tables.Change{change(tables.ChangeOpChange, moved)})
	r.NoError(err)
	r.Len(ops.replaced, 2)
	r.True(ops.replaced[1].Gw.Equal(net.ParseIP("192.168.1.2")))
	r.Empty(ops.deleted)
	r.Equal(1, ops.kernelRoutes())

	_, err = s.Sync(ctx, []tables.Change{change(tables.ChangeOpDelete, moved)})
	r.NoError(err)
	r.Len(ops.deleted, 1)
	r.Equal(0, ops.kernelRoutes())
	r.Equal(0, s.Installed().Len())
}

func TestSyncDeleteUnknownRoute(t *testing.T) {
	r := require.New(t)
	s, ops := newTestSyncer(t, MetricFlat)

	failed, err := s.Sync(context.Background(), []tables.Change{
		change(tables.ChangeOpDelete, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
	})
	r.NoError(err)
	r.Empty(failed)
	r.Empty(ops.deleted)
}

func TestSyncDeleteToleratesMissingKernelRoute(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s, ops := newTestSyncer(t, MetricFlat)

	rt := route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)
	_, err := s.Sync(ctx, []tables.Change{change(tables.ChangeOpAdd, rt)})
	r.NoError(err)

	ops.deleteErr = unix.ESRCH
	failed, err := s.Sync(ctx, []tables.Change{change(tables.ChangeOpDelete, rt)})
	r.NoError(err)
	r.Empty(failed)
	r.Equal(0, s.Installed().Len())
}

func TestSyncReportsFailedChanges(t *testing.T) {
	r := require.New(t)
	ops := newFakeOps()
	reg := prometheus.NewPedanticRegistry()
	s, err := NewSyncer(ops, testOptions(MetricFlat), reg)
	r.NoError(err)

	ops.replaceErr = unix.ENETUNREACH
	changes := []tables.Change{
		change(tables.ChangeOpAdd, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
		change(tables.ChangeOpAdd, route("10.0.1.0/24", "192.168.1.1", 3, 10, 2)),
	}
	failed, err := s.Sync(context.Background(), changes)
	r.Error(err)
	r.True(errors.Is(err, unix.ENETUNREACH))
	r.Equal(changes, failed)
	r.Equal(0, s.Installed().Len())

	r.Equal(2.0, testutil.ToFloat64(s.metrics.Ops.WithLabelValues("add", metrics.LabelValueOutcomeFail)))
	r.Equal(0.0, testutil.ToFloat64(s.metrics.Installed))
}

func TestSyncCancelledContext(t *testing.T) {
	r := require.New(t)
	s, ops := newTestSyncer(t, MetricFlat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	changes := []tables.Change{
		change(tables.ChangeOpAdd, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
	}
	failed, err := s.Sync(ctx, changes)
	r.ErrorIs(err, context.Canceled)
	r.Equal(changes, failed)
	r.Empty(ops.replaced)
}

func TestSyncMetricModes(t *testing.T) {
	tests := []struct {
		name         string
		mode         MetricMode
		hopsChange   bool
		wantReplaced int
		wantDeleted  int
		wantPriority int
	}{
		{name: "flat ignores hop changes", mode: MetricFlat, wantReplaced: 1, wantPriority: flatPriority},
		{name: "approx ignores hop changes", mode: MetricApprox, wantReplaced: 1, wantPriority: 2},
		{name: "correct reinstalls on hop changes", mode: MetricCorrect, wantReplaced: 2, wantDeleted: 1, wantPriority: 5},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := require.New(t)
			ctx := context.Background()
			s, ops := newTestSyncer(t, test.mode)

			_, err := s.Sync(ctx, []tables.Change{
				change(tables.ChangeOpAdd, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
			})
			r.NoError(err)

			further := route("10.0.0.0/24", "192.168.1.1", 3, 30, 5)
			_, err = s.Sync(ctx, []tables.Change{change(tables.ChangeOpChange, further)})
			r.NoError(err)

			r.Len(ops.replaced, test.wantReplaced)
			r.Len(ops.deleted, test.wantDeleted)
			r.Equal(1, ops.kernelRoutes())

			got, ok := s.Installed().Get(further.Prefix)
			r.True(ok)
			r.Equal(test.wantPriority, got.Priority)
			r.Equal(further.Metric, got.Metric)
		})
	}
}

func TestSyncApproxNexthopChangeUpdatesPriority(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s, ops := newTestSyncer(t, MetricApprox)

	_, err := s.Sync(ctx, []tables.Change{
		change(tables.ChangeOpAdd, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
	})
	r.NoError(err)

	_, err = s.Sync(ctx, []tables.Change{
		change(tables.ChangeOpChange, route("10.0.0.0/24", "192.168.1.9", 4, 30, 4)),
	})
	r.NoError(err)

	r.Len(ops.deleted, 1)
	r.Equal(2, ops.deleted[0].Priority)
	r.Equal(1, ops.kernelRoutes())
	got, _ := s.Installed().Get(tables.MustParsePrefix("10.0.0.0/24"))
	r.Equal(4, got.Priority)
}

func TestReconcileRemovesStaleRoutes(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s, ops := newTestSyncer(t, MetricFlat)

	_, err := s.Sync(ctx, []tables.Change{
		change(tables.ChangeOpAdd, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
		change(tables.ChangeOpAdd, route("fd00::/64", "fe80::1", 3, 10, 2)),
	})
	r.NoError(err)

	// Left over by a previous run
	_, stale, _ := net.ParseCIDR("10.9.0.0/16")
	r.NoError(ops.RouteReplace(&netlink.Route{
		Dst:      stale,
		Table:    testTable,
		Protocol: netlink.RouteProtocol(testProtocol),
	}))
	// Owned by someone else
	_, foreign, _ := net.ParseCIDR("10.8.0.0/16")
	r.NoError(ops.RouteReplace(&netlink.Route{
		Dst:      foreign,
		Table:    testTable,
		Protocol: netlink.RouteProtocol(unix.RTPROT_BOOT),
	}))
	// Lost from the kernel behind our back
	_, lost, _ := net.ParseCIDR("fd00::/64")
	r.NoError(ops.RouteDel(&netlink.Route{Dst: lost, Priority: flatPriority}))
	ops.reset()

	r.NoError(s.Reconcile(ctx))

	r.Len(ops.deleted, 1)
	r.Equal("10.9.0.0/16", ops.deleted[0].Dst.String())
	r.Len(ops.replaced, 1)
	r.Equal("fd00::/64", ops.replaced[0].Dst.String())
	r.Equal(3, ops.kernelRoutes())
}

func TestFlush(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s, ops := newTestSyncer(t, MetricCorrect)

	_, err := s.Sync(ctx, []tables.Change{
		change(tables.ChangeOpAdd, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
		change(tables.ChangeOpAdd, route("10.0.1.0/24", "192.168.1.1", 3, 10, 3)),
	})
	r.NoError(err)
	r.Equal(2, ops.kernelRoutes())

	r.NoError(s.Flush(ctx))
	r.Equal(0, ops.kernelRoutes())
	r.Equal(0, s.Installed().Len())
}

func TestViewIsSnapshot(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s, _ := newTestSyncer(t, MetricFlat)

	before := s.Installed()
	_, err := s.Sync(ctx, []tables.Change{
		change(tables.ChangeOpAdd, route("10.0.1.0/24", "192.168.1.1", 3, 10, 2)),
		change(tables.ChangeOpAdd, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
	})
	r.NoError(err)

	r.Equal(0, before.Len())
	after := s.Installed()
	r.Equal(2, after.Len())

	routes := after.Routes()
	r.Equal("10.0.0.0/24", routes[0].Prefix.String())
	r.Equal("10.0.1.0/24", routes[1].Prefix.String())

	var b strings.Builder
	r.NoError(after.Dump(&b))
	out := b.String()
	r.True(strings.HasPrefix(out, "FIB: 2 routes\n"))
	r.Contains(out, "10.0.0.0/24")
	r.Contains(out, "192.168.1.1")
}

func TestParseMetricMode(t *testing.T) {
	for _, s := range []string{"flat", "correct", "approx"} {
		m, err := ParseMetricMode(s)
		require.NoError(t, err)
		require.Equal(t, MetricMode(s), m)
	}
	_, err := ParseMetricMode("")
	require.Error(t, err)

	metric := tables.Metric{Cost: 10, Hops: 7}
	require.Equal(t, flatPriority, MetricFlat.Priority(metric))
	require.Equal(t, 7, MetricCorrect.Priority(metric))
	require.Equal(t, 7, MetricApprox.Priority(metric))
}

func TestSyncCorrectIgnoresCostOnlyChanges(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()
	s, ops := newTestSyncer(t, MetricCorrect)

	_, err := s.Sync(ctx, []tables.Change{
		change(tables.ChangeOpAdd, route("10.0.0.0/24", "192.168.1.1", 3, 10, 2)),
	})
	r.NoError(err)

	cheaper := route("10.0.0.0/24", "192.168.1.1", 3, 4, 2)
	_, err = s.Sync(ctx, []tables.Change{change(tables.ChangeOpChange, cheaper)})
	r.NoError(err)

	r.Len(ops.replaced, 1)
	r.Empty(ops.deleted)
	got, _ := s.Installed().Get(cheaper.Prefix)
	r.Equal(cheaper.Metric, got.Metric)
	r.Equal(2, got.Priority)
}
