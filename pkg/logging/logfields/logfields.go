// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package logfields defines common logging fields which are used across
// packages
package logfields

const (
	// LogSubsys is the field denoting the subsystem when logging
	LogSubsys = "subsys"

	// Prefix is a destination prefix
	Prefix = "prefix"

	// Originator is the address of the router that originated a path
	Originator = "originator"

	// NextHop is the nexthop of a route
	NextHop = "nexthop"

	// Metric is the composite metric of a route
	Metric = "metric"

	// Origin is the origin of a path
	Origin = "origin"

	// Generation is a RIB recomputation generation
	Generation = "generation"

	// Op is a FIB operation
	Op = "op"

	// Table is a kernel routing table ID
	Table = "table"

	// Protocol is a kernel route protocol ID
	Protocol = "protocol"

	// VRF is the name of a VRF device
	VRF = "vrf"

	// Count is a generic count
	Count = "count"

	// Interval is a duration
	Interval = "interval"

	// Address is a listen or lookup address
	Address = "address"

	// Path is a filesystem path
	Path = "path"
)
