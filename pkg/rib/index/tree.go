// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package index provides the ordered associative container used by the RIB
// for both the routing tree and the per-destination path trees.
package index

import (
	"errors"

	"github.com/google/btree"
)

var (
	// ErrDuplicateKey is returned by Insert when the key is already present.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrNotFound is returned by Delete when the key is absent.
	ErrNotFound = errors.New("key not found")
)

// degree of the underlying B-tree. Path trees rarely hold more than a handful
// of candidates, the routing tree holds a few thousand destinations at most.
const degree = 8

// CompareFunc orders two keys. It returns a negative number when a < b, zero
// when a == b and a positive number when a > b.
type CompareFunc[K any] func(a, b K) int

type item[K, V any] struct {
	key   K
	value V
}

// Tree is an ordered index keyed by K. The ordering is supplied by the
// comparator given to New, so the same implementation serves prefix-keyed and
// address-keyed trees.
//
// Tree is not safe for concurrent use.
type Tree[K, V any] struct {
	cmp CompareFunc[K]
	bt  *btree.BTreeG[item[K, V]]
}

// New returns an empty tree ordered by cmp.
func New[K, V any](cmp CompareFunc[K]) *Tree[K, V] {
	return &Tree[K, V]{
		cmp: cmp,
		bt: btree.NewG(degree, func(a, b item[K, V]) bool {
			return cmp(a.key, b.key) < 0
		}),
	}
}

// Insert adds value under key. It fails with ErrDuplicateKey if key is
// already present, leaving the tree unchanged.
func (t *Tree[K, V]) Insert(key K, value V) error {
	it := item[K, V]{key: key, value: value}
	if t.bt.Has(it) {
		return ErrDuplicateKey
	}
	t.bt.ReplaceOrInsert(it)
	return nil
}

// Delete removes key. It fails with ErrNotFound if key is absent.
func (t *Tree[K, V]) Delete(key K) error {
	if _, ok := t.bt.Delete(item[K, V]{key: key}); !ok {
		return ErrNotFound
	}
	return nil
}

// Lookup returns the value stored under key.
func (t *Tree[K, V]) Lookup(key K) (V, bool) {
	it, ok := t.bt.Get(item[K, V]{key: key})
	return it.value, ok
}

// Len returns the number of keys in the tree.
func (t *Tree[K, V]) Len() int {
	return t.bt.Len()
}

// First returns the smallest key and its value.
func (t *Tree[K, V]) First() (K, V, bool) {
	it, ok := t.bt.Min()
	return it.key, it.value, ok
}

// Next returns the smallest key strictly greater than key, and its value.
// key itself does not need to be present, so a caller may delete the key it
// is visiting and still continue the walk from it.
func (t *Tree[K, V]) Next(key K) (K, V, bool) {
	var (
		next  item[K, V]
		found bool
	)
	t.bt.AscendGreaterOrEqual(item[K, V]{key: key}, func(it item[K, V]) bool {
		if t.cmp(it.key, key) == 0 {
			return true
		}
		next, found = it, true
		return false
	})
	return next.key, next.value, found
}

// Walk calls fn for every key in ascending order until fn returns false.
// The successor of each key is looked up only after fn returns, so fn may
// delete the key it was called with. Insertions made by fn are visited if
// they sort after the current key.
func (t *Tree[K, V]) Walk(fn func(key K, value V) bool) {
	key, value, ok := t.First()
	for ok {
		if !fn(key, value) {
			return
		}
		key, value, ok = t.Next(key)
	}
}

// Keys returns all keys in ascending order.
func (t *Tree[K, V]) Keys() []K {
	keys := make([]K, 0, t.bt.Len())
	t.bt.Ascend(func(it item[K, V]) bool {
		keys = append(keys, it.key)
		return true
	})
	return keys
}
