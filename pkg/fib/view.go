// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package fib

import (
	"fmt"
	"io"
	"text/tabwriter"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/cilium/meshrib/pkg/rib/tables"
)

// InstalledRoute is a route the syncer programmed into the kernel.
type InstalledRoute struct {
	tables.Route
	// Priority is the kernel route priority the route was installed with
	Priority int
}

// View is an immutable snapshot of the installed routes, keyed and ordered
// by destination prefix.
type View struct {
	tree *iradix.Tree
}

// Len returns the number of installed routes.
func (v View) Len() int {
	return v.tree.Len()
}

// Get returns the installed route of dst.
func (v View) Get(dst tables.Prefix) (InstalledRoute, bool) {
	raw, ok := v.tree.Get(dst.Key())
	if !ok {
		return InstalledRoute{}, false
	}
	return raw.(InstalledRoute), true
}

// Routes returns all installed routes in prefix order.
func (v View) Routes() []InstalledRoute {
	routes := make([]InstalledRoute, 0, v.tree.Len())
	v.tree.Root().Walk(func(_ []byte, raw interface{}) bool {
		routes = append(routes, raw.(InstalledRoute))
		return false
	})
	return routes
}

// Dump writes the installed routes in a human readable form.
func (v View) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "FIB: %d routes\n", v.Len()); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "DESTINATION\tGATEWAY\tIFINDEX\tPRIORITY")
	for _, rt := range v.Routes() {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", rt.Prefix, rt.NextHop.Gateway, rt.NextHop.IfIndex, rt.Priority)
	}
	return tw.Flush()
}
