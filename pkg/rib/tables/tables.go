// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package tables holds the value types shared by the RIB, its producers and
// the kernel FIB synchroniser, together with the orderings used to index them.
package tables

import "net/netip"

// ComparePrefix is the ordering of the routing tree.
func ComparePrefix(a, b Prefix) int {
	return a.Compare(b)
}

// CompareOriginator is the ordering of the per destination path trees and
// of the per originator index.
func CompareOriginator(a, b netip.Addr) int {
	return a.Compare(b)
}
