// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

//go:build !lockdebug

package lock

import "sync"

type internalMutex struct {
	sync.Mutex
}

type internalRWMutex struct {
	sync.RWMutex
}
