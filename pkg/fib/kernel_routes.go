// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package fib

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"go.uber.org/multierr"

	"github.com/cilium/meshrib/pkg/logging/logfields"
	"github.com/cilium/meshrib/pkg/rib/tables"
)

var families = []int{netlink.FAMILY_V4, netlink.FAMILY_V6}

func (s *Syncer) ensureVrf() (netlink.Link, error) {
	vrf, err := s.ops.LinkByName(s.VrfName)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to get VRF %s: %w", s.VrfName, err)
		}

		// Device not found. Recover by creating a new device.
		attrs := netlink.Vrf{
			LinkAttrs: netlink.LinkAttrs{
				Name: s.VrfName,
			},
			Table: uint32(s.TableID),
		}
		if err := s.ops.LinkAdd(&attrs); err != nil {
			return nil, fmt.Errorf("couldn't create VRF %s: %w", s.VrfName, err)
		}
		vrf, err = s.ops.LinkByName(s.VrfName)
		if err != nil {
			return nil, fmt.Errorf("couldn't get VRF %s after creation: %w", s.VrfName, err)
		}
		log.WithFields(logrus.Fields{
			logfields.VRF:   s.VrfName,
			logfields.Table: s.TableID,
		}).Info("Created VRF")
	}

	// Ensure the device is up
	if vrf.Attrs().OperState != netlink.OperUp {
		if err := s.ops.LinkSetUp(vrf); err != nil {
			return nil, fmt.Errorf("couldn't bring up VRF %s: %w", s.VrfName, err)
		}
	}

	return vrf, nil
}

func (s *Syncer) netlinkRoute(rt InstalledRoute) *netlink.Route {
	return &netlink.Route{
		LinkIndex: rt.NextHop.IfIndex,
		Dst: &net.IPNet{
			IP:   rt.Prefix.Addr().AsSlice(),
			Mask: net.CIDRMask(rt.Prefix.Bits(), rt.Prefix.Addr().BitLen()),
		},
		Gw:       rt.NextHop.Gateway.AsSlice(),
		Table:    s.TableID,
		Protocol: netlink.RouteProtocol(s.ProtocolID),
		Priority: rt.Priority,
	}
}

func prefixFromIPNet(dst *net.IPNet) (tables.Prefix, bool) {
	addr, ok := netip.AddrFromSlice(dst.IP)
	if !ok {
		return tables.Prefix{}, false
	}
	bits, _ := dst.Mask.Size()
	return tables.NewPrefix(netip.PrefixFrom(addr.Unmap(), bits)), true
}

// getKernelRoutes lists the routes of our table and protocol, indexed by
// destination.
func (s *Syncer) getKernelRoutes() (prefixSet, map[tables.Prefix][]netlink.Route, error) {
	filter := &netlink.Route{
		Table:    s.TableID,
		Protocol: netlink.RouteProtocol(s.ProtocolID),
	}

	mask := netlink.RT_FILTER_TABLE | netlink.RT_FILTER_PROTOCOL

	set := prefixSet{}
	byPrefix := make(map[tables.Prefix][]netlink.Route)
	for _, af := range families {
		routes, err := s.ops.RouteListFiltered(af, filter, mask)
		if err != nil {
			return nil, nil, fmt.Errorf("couldn't list kernel routes: %w", err)
		}
		for _, route := range routes {
			if route.Dst == nil {
				continue
			}
			prefix, ok := prefixFromIPNet(route.Dst)
			if !ok {
				continue
			}
			set.add(prefix)
			byPrefix[prefix] = append(byPrefix[prefix], route)
		}
	}

	return set, byPrefix, nil
}

// Reconcile brings the kernel table in line with the installed view. Routes
// of our protocol that the view does not know about, typically left over by
// a previous run, are deleted. Routes of the view missing from the kernel
// are installed again.
func (s *Syncer) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.VrfName != "" {
		if _, err := s.ensureVrf(); err != nil {
			return err
		}
	}

	current, kernelRoutes, err := s.getKernelRoutes()
	if err != nil {
		return err
	}

	view := s.Installed()
	desired := prefixSet{}
	for _, rt := range view.Routes() {
		desired.add(rt.Prefix)
	}
	addSet, deleteSet := desired.distance(current)

	var errs error
	for prefix := range deleteSet {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		for i := range kernelRoutes[prefix] {
			if err := s.ops.RouteDel(&kernelRoutes[prefix][i]); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("couldn't delete stale route with prefix %s: %w", prefix, err))
			}
		}
	}
	for prefix := range addSet {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		rt, _ := view.Get(prefix)
		if err := s.ops.RouteReplace(s.netlinkRoute(rt)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("couldn't replace route with prefix %s: %w", prefix, err))
		}
	}

	log.WithFields(logrus.Fields{
		logfields.Table:    s.TableID,
		logfields.Protocol: s.ProtocolID,
		"stale":            len(deleteSet),
		"missing":          len(addSet),
	}).Info("Reconciled kernel routes")

	return errs
}
