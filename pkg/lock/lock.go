// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package lock provides the mutex types used across meshrib. Building with
// the lockdebug tag swaps them for deadlock-detecting implementations.
package lock
