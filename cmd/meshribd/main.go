// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package main

import (
	"github.com/cilium/meshrib/cmd/meshribd/cmd"
)

func main() {
	cmd.Execute()
}
