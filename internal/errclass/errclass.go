// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/errclass (syscall-errno classification)
// and the bassosimone-nop ErrClassifier contract.

// Package errclass maps Go errors onto short categorical strings
// ("ETIMEDOUT", "ECONNRESET", ...) usable as structured-log fields and as
// the first stage of SDAM transport-error disambiguation.
package errclass

import (
	"context"
	"errors"
	"net"
	"os"
	"syscall"
)

// Exported classification labels. Platform-specific errno values are
// mapped onto these constants by [New]; the label set is shared.
const (
	EADDRNOTAVAIL   = "EADDRNOTAVAIL"
	EADDRINUSE      = "EADDRINUSE"
	ECONNABORTED    = "ECONNABORTED"
	ECONNREFUSED    = "ECONNREFUSED"
	ECONNRESET      = "ECONNRESET"
	EHOSTUNREACH    = "EHOSTUNREACH"
	EINVAL          = "EINVAL"
	EINTR           = "EINTR"
	ENETDOWN        = "ENETDOWN"
	ENETUNREACH     = "ENETUNREACH"
	ENOBUFS         = "ENOBUFS"
	ENOTCONN        = "ENOTCONN"
	EPROTONOSUPPORT = "EPROTONOSUPPORT"
	ETIMEDOUT       = "ETIMEDOUT"
	EEOF            = "EOF"
	ECANCELED       = "ECANCELED"
	EGENERIC        = "unknown_error"
)

// New classifies err into one of the exported labels, or [EGENERIC] when
// no more specific classification applies. A nil error classifies to "".
func New(err error) string {
	if err == nil {
		return ""
	}

	// context errors take priority: they are common and unambiguous.
	if errors.Is(err, context.DeadlineExceeded) {
		return ETIMEDOUT
	}
	if errors.Is(err, context.Canceled) {
		return ECANCELED
	}
	if errors.Is(err, net.ErrClosed) {
		return ECONNABORTED
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ETIMEDOUT
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if label, ok := classifyErrno(errno); ok {
			return label
		}
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return ETIMEDOUT
	}

	return EGENERIC
}
