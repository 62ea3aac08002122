// Package tlocal provides a single goroutine-local slot: the propertyNode
// currently being evaluated, if any. Property dependency capture reads and
// writes this slot so that Get, called during another Property's
// evaluation function, can record an edge without either side needing an
// explicit context argument threaded through.
package tlocal

import (
	"sync"

	"github.com/petermattis/goid"
)

var current sync.Map // goroutine id (int64) -> any

// Get returns the value stored for the calling goroutine, or nil if none.
func Get() any {
	v, ok := current.Load(goid.Get())
	if !ok {
		return nil
	}
	return v
}

// Set stores v for the calling goroutine. Passing nil clears the slot.
func Set(v any) {
	if v == nil {
		current.Delete(goid.Get())
		return
	}
	current.Store(goid.Get(), v)
}

// With stores v for the calling goroutine for the duration of fn, then
// restores whatever was there before.
func With(v any, fn func()) {
	prev := Get()
	Set(v)
	defer Set(prev)
	fn()
}
