// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/safeconn

// Package safeconn provides nil-safe accessors for [net.Conn] fields, so
// structured-logging call sites do not need to guard every access with a
// nil check when the connection could not be established.
package safeconn

import "net"

// LocalAddr returns conn.LocalAddr().String(), or "" if conn or its local
// address is nil.
func LocalAddr(conn net.Conn) string {
	if conn == nil {
		return ""
	}
	addr := conn.LocalAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

// RemoteAddr returns conn.RemoteAddr().String(), or "" if conn or its
// remote address is nil.
func RemoteAddr(conn net.Conn) string {
	if conn == nil {
		return ""
	}
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

// Network returns the network name of conn's remote address, or "" if
// conn or its remote address is nil.
func Network(conn net.Conn) string {
	if conn == nil {
		return ""
	}
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	return addr.Network()
}
