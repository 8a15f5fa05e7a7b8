// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/cilium/meshrib/pkg/rib/tables"
)

// ErrInvalidArgument is returned for malformed input. A call failing with it
// leaves the RIB untouched.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func validatePath(dst tables.Prefix, originator netip.Addr, nh tables.NextHop, metric tables.Metric, origin tables.Origin) error {
	if err := dst.Validate(); err != nil {
		return invalidArgument("destination: %s", err)
	}
	if !originator.IsValid() {
		return invalidArgument("originator of %s is not set", dst)
	}
	if !nh.IsSet() {
		return invalidArgument("nexthop of %s is not set", dst)
	}
	family := tables.NextHopKindIPv6
	if dst.Addr().Is4() {
		family = tables.NextHopKindIPv4
	}
	if nh.Kind() != family {
		return invalidArgument("nexthop %s does not match the address family of %s", nh.Gateway, dst)
	}
	if err := metric.Validate(); err != nil {
		return invalidArgument("%s: %s", dst, err)
	}
	if !origin.Valid() {
		return invalidArgument("%s: unknown %s", dst, origin)
	}
	return nil
}
