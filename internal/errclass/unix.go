//go:build unix

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/errclass unix.go
//

package errclass

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func classifyErrno(errno syscall.Errno) (string, bool) {
	switch uintptr(errno) {
	case uintptr(unix.EADDRNOTAVAIL):
		return EADDRNOTAVAIL, true
	case uintptr(unix.EADDRINUSE):
		return EADDRINUSE, true
	case uintptr(unix.ECONNABORTED):
		return ECONNABORTED, true
	case uintptr(unix.ECONNREFUSED):
		return ECONNREFUSED, true
	case uintptr(unix.ECONNRESET):
		return ECONNRESET, true
	case uintptr(unix.EHOSTUNREACH):
		return EHOSTUNREACH, true
	case uintptr(unix.EINVAL):
		return EINVAL, true
	case uintptr(unix.EINTR):
		return EINTR, true
	case uintptr(unix.ENETDOWN):
		return ENETDOWN, true
	case uintptr(unix.ENETUNREACH):
		return ENETUNREACH, true
	case uintptr(unix.ENOBUFS):
		return ENOBUFS, true
	case uintptr(unix.ENOTCONN):
		return ENOTCONN, true
	case uintptr(unix.EPROTONOSUPPORT):
		return EPROTONOSUPPORT, true
	case uintptr(unix.ETIMEDOUT):
		return ETIMEDOUT, true
	default:
		return "", false
	}
}
