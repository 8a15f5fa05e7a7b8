// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package metrics holds the prometheus registry plumbing shared by the
// subsystems. Every subsystem declares its own collectors and registers them
// on the Registerer it is handed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace is the prefix of all metric names.
	Namespace = "meshrib"

	// SubsystemRIB groups metrics of the routing information base.
	SubsystemRIB = "rib"

	// SubsystemFIB groups metrics of the kernel FIB synchroniser.
	SubsystemFIB = "fib"

	// LabelOp is the label for a FIB operation
	LabelOp = "op"

	// LabelOutcome is the label for the outcome of an operation
	LabelOutcome = "outcome"

	// LabelValueOutcomeSuccess is used as a successful outcome of an operation
	LabelValueOutcomeSuccess = "success"

	// LabelValueOutcomeFail is used as an unsuccessful outcome of an operation
	LabelValueOutcomeFail = "fail"
)

// NewRegistry returns a registry with the process and Go runtime collectors
// already registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace}),
		collectors.NewGoCollector(),
	)
	return reg
}

// MustRegister registers cs on reg. A nil reg leaves the collectors
// unregistered, which is what tests constructing many instances want.
func MustRegister(reg prometheus.Registerer, cs ...prometheus.Collector) {
	if reg == nil {
		return
	}
	reg.MustRegister(cs...)
}

// Outcome maps an error to the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return LabelValueOutcomeFail
	}
	return LabelValueOutcomeSuccess
}
