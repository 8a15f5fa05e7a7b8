// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package rib

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
)

// Register provides the RIB, its Manager and the FIB Processor to c. The
// container must already provide a prometheus.Registerer, a FIBSyncer and a
// ProcessorConfig.
func Register(c *dig.Container) error {
	for _, ctor := range []any{
		func(reg prometheus.Registerer) *RIB { return New(reg) },
		NewManager,
		newProcessor,
	} {
		if err := c.Provide(ctor); err != nil {
			return err
		}
	}
	return nil
}
