// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

//go:build lockdebug

package lock

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

const selfDeadlockTimeout = 310 * time.Second

func init() {
	deadlock.Opts.DeadlockTimeout = selfDeadlockTimeout
}

type internalMutex struct {
	deadlock.Mutex
}

type internalRWMutex struct {
	deadlock.RWMutex
}
