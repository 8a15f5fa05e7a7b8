// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package fib

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"github.com/cilium/meshrib/pkg/logging/logfields"
)

// RouteOps is the subset of the netlink API the syncer needs. It is
// satisfied by *netlink.Handle.
type RouteOps interface {
	RouteReplace(route *netlink.Route) error
	RouteDel(route *netlink.Route) error
	RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error)
	LinkByName(name string) (netlink.Link, error)
	LinkAdd(link netlink.Link) error
	LinkSetUp(link netlink.Link) error
}

// NewNetlinkOps returns a netlink handle in the network namespace found at
// nsPath, or in the current namespace if nsPath is empty.
func NewNetlinkOps(nsPath string) (*netlink.Handle, error) {
	if nsPath == "" {
		return netlink.NewHandle()
	}

	ns, err := netns.GetFromPath(nsPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't open network namespace %s: %w", nsPath, err)
	}
	defer ns.Close()

	h, err := netlink.NewHandleAt(ns)
	if err != nil {
		return nil, fmt.Errorf("couldn't create netlink handle in %s: %w", nsPath, err)
	}
	return h, nil
}

// DryRunOps logs the route operations instead of performing them. It is used
// when the daemon must not touch the kernel.
type DryRunOps struct{}

func (DryRunOps) RouteReplace(route *netlink.Route) error {
	log.WithFields(logrus.Fields{
		logfields.Prefix:  route.Dst,
		logfields.NextHop: route.Gw,
	}).Debug("Dry run: replace route")
	return nil
}

func (DryRunOps) RouteDel(route *netlink.Route) error {
	log.WithField(logfields.Prefix, route.Dst).Debug("Dry run: delete route")
	return nil
}

func (DryRunOps) RouteListFiltered(int, *netlink.Route, uint64) ([]netlink.Route, error) {
	return nil, nil
}

func (DryRunOps) LinkByName(name string) (netlink.Link, error) {
	return &netlink.Vrf{
		LinkAttrs: netlink.LinkAttrs{Name: name, OperState: netlink.OperUp},
	}, nil
}

func (DryRunOps) LinkAdd(netlink.Link) error {
	return nil
}

func (DryRunOps) LinkSetUp(netlink.Link) error {
	return nil
}
