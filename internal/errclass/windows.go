//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/errclass windows.go
//

package errclass

import (
	"syscall"

	"golang.org/x/sys/windows"
)

func classifyErrno(errno syscall.Errno) (string, bool) {
	switch uintptr(errno) {
	case uintptr(windows.WSAEADDRNOTAVAIL):
		return EADDRNOTAVAIL, true
	case uintptr(windows.WSAEADDRINUSE):
		return EADDRINUSE, true
	case uintptr(windows.WSAECONNABORTED):
		return ECONNABORTED, true
	case uintptr(windows.WSAECONNREFUSED):
		return ECONNREFUSED, true
	case uintptr(windows.WSAECONNRESET):
		return ECONNRESET, true
	case uintptr(windows.WSAEHOSTUNREACH):
		return EHOSTUNREACH, true
	case uintptr(windows.WSAEINVAL):
		return EINVAL, true
	case uintptr(windows.WSAEINTR):
		return EINTR, true
	case uintptr(windows.WSAENETDOWN):
		return ENETDOWN, true
	case uintptr(windows.WSAENETUNREACH):
		return ENETUNREACH, true
	case uintptr(windows.WSAENOBUFS):
		return ENOBUFS, true
	case uintptr(windows.WSAENOTCONN):
		return ENOTCONN, true
	case uintptr(windows.WSAEPROTONOSUPPORT):
		return EPROTONOSUPPORT, true
	case uintptr(windows.WSAETIMEDOUT):
		return ETIMEDOUT, true
	default:
		return "", false
	}
}
