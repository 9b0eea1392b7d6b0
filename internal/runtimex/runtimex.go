// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/runtimex

// Package runtimex provides small runtime-invariant helpers used across the
// connection core to fail fast on programmer errors (a splittable payload
// queried before its first encode, a failing span-id generator) rather
// than proceeding with undefined behavior.
package runtimex

import "fmt"

// Assert panics with msg (optional, printf-joined) when cond is false.
//
// Use this only for invariants that indicate a programming error in this
// module, never for conditions an external input can trigger.
func Assert(cond bool, msg ...any) {
	if !cond {
		if len(msg) == 0 {
			panic("runtimex: assertion failed")
		}
		panic(fmt.Sprint(msg...))
	}
}

// PanicOnError panics if err is non-nil.
func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

// PanicOnError1 panics if err is non-nil, otherwise returns value.
func PanicOnError1[T any](value T, err error) T {
	PanicOnError(err)
	return value
}
