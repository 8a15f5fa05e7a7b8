// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Dump writes a human readable rendering of the whole RIB to w: one line per
// candidate path, grouped by destination, with the best path marked by '*'
// and destinations waiting for FIB synchronisation marked by '+'.
func (r *RIB) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "RIB generation %d: %d destinations, %d pending\n",
		r.generation, r.routes.Len(), r.queue.len()); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "\tDESTINATION\tORIGINATOR\tGATEWAY\tIFINDEX\tCOST\tHOPS\tORIGIN\tGENERATION")
	r.Walk(func(s EntrySnapshot) bool {
		for i, p := range s.Paths {
			marker := " "
			if p.Best {
				marker = "*"
			}
			dst := ""
			if i == 0 {
				dst = s.Destination.String()
				if s.Pending {
					dst += " +"
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%d\n",
				marker, dst, p.Originator, p.NextHop.Gateway, p.NextHop.IfIndex,
				p.Metric.Cost, p.Metric.Hops, p.Origin, p.Generation)
		}
		return true
	})
	return tw.Flush()
}
