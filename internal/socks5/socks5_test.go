// SPDX-License-Identifier: GPL-3.0-or-later

package socks5

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type pipeDialer struct{ server net.Conn }

func (p *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	client, server := net.Pipe()
	p.server = server
	return client, nil
}

func TestDialContextSucceedsNoAuth(t *testing.T) {
	pd := &pipeDialer{}
	d := &Dialer{ProxyAddr: "proxy:1080", NetDialer: pd}

	done := make(chan error, 1)
	go func() {
		_, err := d.DialContext(context.Background(), "example.com", 27017)
		done <- err
	}()

	server := waitForServer(t, pd)
	readExact(t, server, 3) // version, nmethods, method
	server.Write([]byte{version5, methodNoAuth})

	req := readConnectRequest(t, server)
	require.Equal(t, byte(addrTypeDomain), req[3])

	server.Write([]byte{version5, replySucceeded, 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0})

	require.NoError(t, <-done)
}

func TestDialContextFailsOnNoAcceptableMethod(t *testing.T) {
	pd := &pipeDialer{}
	d := &Dialer{ProxyAddr: "proxy:1080", NetDialer: pd}

	done := make(chan error, 1)
	go func() {
		_, err := d.DialContext(context.Background(), "example.com", 27017)
		done <- err
	}()

	server := waitForServer(t, pd)
	readExact(t, server, 2)
	server.Write([]byte{version5, methodNoAcceptable})

	err := <-done
	require.ErrorContains(t, err, "no acceptable")
}

func TestDialContextUserPassAuthFailure(t *testing.T) {
	pd := &pipeDialer{}
	d := &Dialer{ProxyAddr: "proxy:1080", NetDialer: pd, Auth: &Credentials{Username: "u", Password: "p"}}

	done := make(chan error, 1)
	go func() {
		_, err := d.DialContext(context.Background(), "example.com", 27017)
		done <- err
	}()

	server := waitForServer(t, pd)
	readExact(t, server, 4) // version, nmethods(2), noauth, userpass
	server.Write([]byte{version5, methodUserPass})

	readExact(t, server, 1+1+1+1+1) // ver, ulen, 'u', plen, 'p'
	server.Write([]byte{userPassVersion, 0x01})

	err := <-done
	require.ErrorContains(t, err, "authentication failed")
}

func TestConnectFailureMapsStatusCode(t *testing.T) {
	pd := &pipeDialer{}
	d := &Dialer{ProxyAddr: "proxy:1080", NetDialer: pd}

	done := make(chan error, 1)
	go func() {
		_, err := d.DialContext(context.Background(), "example.com", 27017)
		done <- err
	}()

	server := waitForServer(t, pd)
	readExact(t, server, 3)
	server.Write([]byte{version5, methodNoAuth})
	readConnectRequest(t, server)
	server.Write([]byte{version5, 0x05, 0x00, addrTypeIPv4, 0, 0, 0, 0, 0, 0}) // connection refused

	err := <-done
	require.ErrorContains(t, err, "connection refused")
}

func waitForServer(t *testing.T, pd *pipeDialer) net.Conn {
	t.Helper()
	for i := 0; i < 1000 && pd.server == nil; i++ {
		time.Sleep(time.Millisecond)
	}
	require.NotNil(t, pd.server)
	return pd.server
}

func readExact(t *testing.T, r io.Reader, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	return buf
}

// readConnectRequest reads a fixed CONNECT request with a domain-name
// address type: ver,cmd,rsv,atyp,len,<host...>,port(2).
func readConnectRequest(t *testing.T, r io.Reader) []byte {
	t.Helper()
	head := readExact(t, r, 5)
	host := readExact(t, r, int(head[4]))
	port := readExact(t, r, 2)
	return append(append(head, host...), port...)
}
