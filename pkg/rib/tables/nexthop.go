// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tables

import (
	"fmt"
	"net/netip"
)

// NextHopKind is a numeric ID of the nexthop kind
type NextHopKind uint8

const (
	NextHopKindUnspec NextHopKind = iota
	NextHopKindIPv4
	NextHopKindIPv6
)

func (k NextHopKind) String() string {
	switch k {
	case NextHopKindIPv4:
		return "ipv4"
	case NextHopKindIPv6:
		return "ipv6"
	}
	return "unspec"
}

// NextHop is a gateway router plus the interface it is reached through.
type NextHop struct {
	// Gateway is the address of the neighbor the packets are handed to.
	Gateway netip.Addr
	// IfIndex is the index of the outgoing interface.
	IfIndex int
}

// Kind returns the address family of the gateway
func (n NextHop) Kind() NextHopKind {
	switch {
	case n.Gateway.Is4():
		return NextHopKindIPv4
	case n.Gateway.Is6():
		return NextHopKindIPv6
	}
	return NextHopKindUnspec
}

// IsSet reports whether both the gateway and the interface are known.
func (n NextHop) IsSet() bool {
	return n.Gateway.IsValid() && n.IfIndex > 0
}

// Equal reports whether n and o forward to the same gateway over the same
// interface.
func (n NextHop) Equal(o NextHop) bool {
	return n.Gateway == o.Gateway && n.IfIndex == o.IfIndex
}

func (n NextHop) String() string {
	if !n.IsSet() {
		return "none"
	}
	return fmt.Sprintf("%s dev %d", n.Gateway, n.IfIndex)
}
