// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tables

import "fmt"

// Origin tells where a path was learned from. Routes are generated either by
// plain reachability of a node (topology control messages), by restatement of
// a node's additional interface addresses, or by gateway announcements of
// external prefixes. The origin only takes part in best path selection as a
// tie-break; lower values take precedence.
type Origin uint8

const (
	originMin Origin = iota
	OriginInternal
	OriginRestated
	OriginExternal
	originMax
)

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	return o > originMin && o < originMax
}

// Rank is the tie-break rank of the origin. The smallest rank wins.
func (o Origin) Rank() uint8 {
	return uint8(o)
}

func (o Origin) String() string {
	switch o {
	case OriginInternal:
		return "internal"
	case OriginRestated:
		return "restated"
	case OriginExternal:
		return "external"
	}
	return fmt.Sprintf("origin(%d)", uint8(o))
}

// ParseOrigin is the inverse of Origin.String.
func ParseOrigin(s string) (Origin, error) {
	for o := originMin + 1; o < originMax; o++ {
		if o.String() == s {
			return o, nil
		}
	}
	return originMin, fmt.Errorf("unknown origin %q", s)
}
