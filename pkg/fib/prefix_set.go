// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package fib

import "github.com/cilium/meshrib/pkg/rib/tables"

type prefixSet map[tables.Prefix]struct{}

func (ps prefixSet) add(prefix tables.Prefix) {
	ps[prefix] = struct{}{}
}

// distance returns the prefixes missing from current and the prefixes
// current has in excess of desired.
func (desired prefixSet) distance(current prefixSet) (addSet, deleteSet prefixSet) {
	addSet, deleteSet = prefixSet{}, prefixSet{}
	for prefix := range desired {
		if _, ok := current[prefix]; !ok {
			addSet.add(prefix)
		}
	}
	for prefix := range current {
		if _, ok := desired[prefix]; !ok {
			deleteSet.add(prefix)
		}
	}
	return addSet, deleteSet
}
