// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop spanid.go

// Package spanid generates correlation identifiers for connection
// handshakes and command events.
package spanid

import (
	"github.com/google/uuid"

	"github.com/bassosimone/dbconncore/internal/runtimex"
)

// New returns a UUIDv7 string uniquely and time-orderably identifying a
// span: a handshake or a single command round-trip.
//
// This function panics if the system random number generator fails, which
// should only happen under extraordinary circumstances.
func New() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
