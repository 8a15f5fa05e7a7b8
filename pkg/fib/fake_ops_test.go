// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package fib

import (
	"fmt"

	"github.com/vishvananda/netlink"

	"github.com/cilium/meshrib/pkg/lock"
)

// fakeOps emulates a kernel routing table. Routes are keyed by destination
// and priority, like the kernel does.
type fakeOps struct {
	mu lock.Mutex

	routes   map[string]netlink.Route
	links    map[string]netlink.Link
	replaced []netlink.Route
	deleted  []netlink.Route
	linkAdds []netlink.Link
	setUps   []string

	replaceErr error
	deleteErr  error
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		routes: map[string]netlink.Route{},
		links:  map[string]netlink.Link{},
	}
}

func routeKey(r *netlink.Route) string {
	return fmt.Sprintf("%s/%d", r.Dst, r.Priority)
}

func (f *fakeOps) RouteReplace(route *netlink.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = append(f.replaced, *route)
	f.routes[routeKey(route)] = *route
	return nil
}

func (f *fakeOps) RouteDel(route *netlink.Route) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, *route)
	delete(f.routes, routeKey(route))
	return nil
}

func (f *fakeOps) RouteListFiltered(family int, filter *netlink.Route, _ uint64) ([]netlink.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var routes []netlink.Route
	for _, r := range f.routes {
		isV4 := r.Dst.IP.To4() != nil
		if (family == netlink.FAMILY_V4) != isV4 {
			continue
		}
		if r.Table != filter.Table || r.Protocol != filter.Protocol {
			continue
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func (f *fakeOps) LinkByName(name string) (netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[name]
	if !ok {
		return nil, netlink.LinkNotFoundError{}
	}
	return link, nil
}

func (f *fakeOps) LinkAdd(link netlink.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.linkAdds = append(f.linkAdds, link)
	f.links[link.Attrs().Name] = link
	return nil
}

func (f *fakeOps) LinkSetUp(link netlink.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setUps = append(f.setUps, link.Attrs().Name)
	link.Attrs().OperState = netlink.OperUp
	return nil
}

func (f *fakeOps) kernelRoutes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.routes)
}

func (f *fakeOps) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaced = nil
	f.deleted = nil
}
