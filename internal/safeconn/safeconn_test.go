// SPDX-License-Identifier: GPL-3.0-or-later

package safeconn

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeAddr struct {
	network string
	s       string
}

func (a fakeAddr) Network() string { return a.network }
func (a fakeAddr) String() string  { return a.s }

type fakeConn struct {
	net.Conn
	local  net.Addr
	remote net.Addr
}

func (c fakeConn) LocalAddr() net.Addr  { return c.local }
func (c fakeConn) RemoteAddr() net.Addr { return c.remote }

func TestLocalAddrReturnsEmptyForNilConn(t *testing.T) {
	require.Equal(t, "", LocalAddr(nil))
}

func TestLocalAddrReturnsEmptyForNilAddr(t *testing.T) {
	require.Equal(t, "", LocalAddr(fakeConn{}))
}

func TestLocalAddrReturnsConnAddress(t *testing.T) {
	conn := fakeConn{local: fakeAddr{network: "tcp", s: "127.0.0.1:1234"}}
	require.Equal(t, "127.0.0.1:1234", LocalAddr(conn))
}

func TestRemoteAddrReturnsEmptyForNilConn(t *testing.T) {
	require.Equal(t, "", RemoteAddr(nil))
}

func TestRemoteAddrReturnsConnAddress(t *testing.T) {
	conn := fakeConn{remote: fakeAddr{network: "tcp", s: "10.0.0.1:27017"}}
	require.Equal(t, "10.0.0.1:27017", RemoteAddr(conn))
}

func TestNetworkReturnsEmptyForNilConn(t *testing.T) {
	require.Equal(t, "", Network(nil))
}

func TestNetworkReturnsEmptyForNilRemoteAddr(t *testing.T) {
	require.Equal(t, "", Network(fakeConn{}))
}

func TestNetworkReturnsRemoteAddrNetwork(t *testing.T) {
	conn := fakeConn{remote: fakeAddr{network: "tcp", s: "10.0.0.1:27017"}}
	require.Equal(t, "tcp", Network(conn))
}
