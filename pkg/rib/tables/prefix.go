// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tables

import (
	"fmt"
	"net/netip"
)

// Unique IDs used for building the prefix keys
const (
	prefixKindUnspec uint8 = iota
	prefixKindIPv4
	prefixKindIPv6
)

// Prefix is a destination of the RIB. The address is always kept masked, so
// two prefixes covering the same network compare equal.
type Prefix struct {
	netip.Prefix
}

// NewPrefix returns the canonical (masked) form of p.
func NewPrefix(p netip.Prefix) Prefix {
	return Prefix{Prefix: p.Masked()}
}

// ParsePrefix parses s in CIDR notation and returns its canonical form.
func ParsePrefix(s string) (Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return Prefix{}, err
	}
	return NewPrefix(p), nil
}

// MustParsePrefix is like ParsePrefix but panics on error.
func MustParsePrefix(s string) Prefix {
	p, err := ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

// HostPrefix returns the full-length prefix of addr.
func HostPrefix(addr netip.Addr) Prefix {
	return Prefix{Prefix: netip.PrefixFrom(addr, addr.BitLen())}
}

// Compare orders prefixes by address first and prefix length second. IPv4
// prefixes sort before IPv6 prefixes.
func (p Prefix) Compare(o Prefix) int {
	if c := p.Addr().Compare(o.Addr()); c != 0 {
		return c
	}
	switch {
	case p.Bits() < o.Bits():
		return -1
	case p.Bits() > o.Bits():
		return 1
	}
	return 0
}

// Key returns a byte key whose lexical order matches Compare.
func (p Prefix) Key() []byte {
	switch {
	case p.Addr().Is4():
		addr := p.Addr().As4()
		key := append([]byte{prefixKindIPv4}, addr[:]...)
		return append(key, byte(p.Bits()))
	case p.Addr().Is6():
		addr := p.Addr().As16()
		key := append([]byte{prefixKindIPv6}, addr[:]...)
		return append(key, byte(p.Bits()))
	}
	return []byte{prefixKindUnspec}
}

func (p Prefix) String() string {
	if !p.IsValid() {
		return "invalid"
	}
	return p.Prefix.String()
}

// Validate checks that p can be used as a destination.
func (p Prefix) Validate() error {
	if !p.IsValid() {
		return fmt.Errorf("invalid prefix")
	}
	if p.Addr().Zone() != "" {
		return fmt.Errorf("prefix %s must not carry a zone", p)
	}
	return nil
}
