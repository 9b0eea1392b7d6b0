// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.9 and bassosimone-nop's connect.go (deadline
// propagation via remaining-time accounting, restoring the original
// socket state on every exit path) and tls.go's pattern of wrapping a
// caller-provided [net.Conn]. Byte-layout constants mirror the RFC 1928 /
// RFC 1929 framing that golang.org/x/net/internal/socks implements
// (that package is unexported, so the layout is reproduced here rather
// than imported, matching the domain-stack note in SPEC_FULL.md §2.B).
// The established connection is handed to internal/transport's
// cancel-watch and observe stages before being returned, the same way
// bassosimone-nop's own connect.go/observeconn.go pipeline wraps a freshly
// dialed connection.

// Package socks5 implements a client-side SOCKS5 transport adapter that
// connects through a proxy to an unresolved destination host, letting the
// proxy perform DNS resolution (§4.9).
package socks5

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bassosimone/dbconncore/internal/driverutil"
	"github.com/bassosimone/dbconncore/internal/transport"
)

const (
	version5 = 0x05

	methodNoAuth       = 0x00
	methodUserPass     = 0x02
	methodNoAcceptable = 0xFF

	userPassVersion = 0x01

	cmdConnect = 0x01

	addrTypeIPv4   = 0x01
	addrTypeDomain = 0x03
	addrTypeIPv6   = 0x04

	replySucceeded = 0x00
)

// replyErrors maps SOCKS5 reply status codes 1-8 to distinct failure
// reasons (§4.9).
var replyErrors = map[byte]string{
	0x01: "general SOCKS server failure",
	0x02: "connection not allowed by ruleset",
	0x03: "network unreachable",
	0x04: "host unreachable",
	0x05: "connection refused",
	0x06: "TTL expired",
	0x07: "command not supported",
	0x08: "address type not supported",
}

// Credentials holds an optional RFC 1929 username/password.
type Credentials struct {
	Username string
	Password string
}

// Dialer connects to destination host:port through a SOCKS5 proxy.
type Dialer struct {
	ProxyAddr string
	Auth      *Credentials

	// NetDialer is used to open the TCP connection to the proxy. Defaults
	// to [*net.Dialer] when nil.
	NetDialer interface {
		DialContext(ctx context.Context, network, address string) (net.Conn, error)
	}

	// Config supplies the error classifier and time source used to
	// observe the established connection. Defaults to
	// [driverutil.NewConfig] when nil.
	Config *driverutil.Config
	// Logger receives structured I/O logging for the established
	// connection. Defaults to the no-op logger when nil.
	Logger driverutil.SLogger
}

// DialContext opens a connection to host:port via the configured proxy,
// honoring ctx's deadline for every step of the handshake (§4.9). The
// returned [net.Conn] is wrapped so it closes when ctx is done and so
// every subsequent read/write is structured-logged (§5).
func (d *Dialer) DialContext(ctx context.Context, host string, port uint16) (net.Conn, error) {
	conn, err := d.dial(ctx, d.ProxyAddr)
	if err != nil {
		return nil, err
	}

	deadline, _ := ctx.Deadline() // zero value means "no deadline"
	if err := d.handshake(conn, host, port, deadline); err != nil {
		conn.Close()
		return nil, err
	}

	watched, err := transport.NewCancelWatchFunc().Call(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	observed, err := transport.NewObserveConnFunc(d.config(), d.logger()).Call(ctx, watched)
	if err != nil {
		watched.Close()
		return nil, err
	}
	return observed, nil
}

func (d *Dialer) config() *driverutil.Config {
	if d.Config != nil {
		return d.Config
	}
	return driverutil.NewConfig()
}

func (d *Dialer) logger() driverutil.SLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return driverutil.DefaultSLogger()
}

// remaining computes the time left before deadline, or zero (meaning "no
// per-read deadline") when deadline is the zero value.
func remaining(deadline time.Time) time.Duration {
	if deadline.IsZero() {
		return 0
	}
	return time.Until(deadline)
}

func (d *Dialer) dial(ctx context.Context, addr string) (net.Conn, error) {
	if d.NetDialer != nil {
		return d.NetDialer.DialContext(ctx, "tcp", addr)
	}
	var nd net.Dialer
	return nd.DialContext(ctx, "tcp", addr)
}

// readFullWithDeadline reads len(buf) bytes, applying a per-read deadline
// computed from remaining and restoring the connection's prior deadline
// (zero, i.e. none, since the caller already owns the coarser handshake
// deadline) on every exit path, per §4.9's remaining-time accounting.
func readFullWithDeadline(conn net.Conn, buf []byte, remaining time.Duration) error {
	if remaining > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(remaining)); err != nil {
			return err
		}
		defer conn.SetReadDeadline(time.Time{})
	}
	_, err := io.ReadFull(conn, buf)
	return err
}

func (d *Dialer) handshake(conn net.Conn, host string, port uint16, deadline time.Time) error {
	if err := d.negotiateMethod(conn, deadline); err != nil {
		return err
	}
	if err := d.connect(conn, host, port, deadline); err != nil {
		return err
	}
	return nil
}

// negotiateMethod performs step 2-4 of §4.9: method negotiation and, if
// selected, the RFC 1929 username/password sub-negotiation.
func (d *Dialer) negotiateMethod(conn net.Conn, deadline time.Time) error {
	methods := []byte{methodNoAuth}
	if d.Auth != nil {
		methods = []byte{methodNoAuth, methodUserPass}
	}

	req := make([]byte, 0, 2+len(methods))
	req = append(req, version5, byte(len(methods)))
	req = append(req, methods...)
	if _, err := conn.Write(req); err != nil {
		return err
	}

	resp := make([]byte, 2)
	if err := readFullWithDeadline(conn, resp, remaining(deadline)); err != nil {
		return err
	}
	if resp[0] != version5 {
		return fmt.Errorf("socks5: unexpected server version %d", resp[0])
	}
	switch resp[1] {
	case methodNoAuth:
		return nil
	case methodUserPass:
		return d.authenticateUserPass(conn, deadline)
	case methodNoAcceptable:
		return errors.New("socks5: no acceptable authentication method")
	default:
		return fmt.Errorf("socks5: unsupported method selected: %d", resp[1])
	}
}

func (d *Dialer) authenticateUserPass(conn net.Conn, deadline time.Time) error {
	if d.Auth == nil {
		return errors.New("socks5: server requires username/password but none configured")
	}
	user := []byte(d.Auth.Username)
	pass := []byte(d.Auth.Password)
	if len(user) > 255 || len(pass) > 255 {
		return errors.New("socks5: username or password too long")
	}

	req := make([]byte, 0, 3+len(user)+len(pass))
	req = append(req, userPassVersion, byte(len(user)))
	req = append(req, user...)
	req = append(req, byte(len(pass)))
	req = append(req, pass...)
	if _, err := conn.Write(req); err != nil {
		return err
	}

	resp := make([]byte, 2)
	if err := readFullWithDeadline(conn, resp, remaining(deadline)); err != nil {
		return err
	}
	if resp[1] != 0 {
		return errors.New("socks5: username/password authentication failed")
	}
	return nil
}

// connect performs step 5-6 of §4.9: send CONNECT with a domain-name
// address type and parse the reply.
func (d *Dialer) connect(conn net.Conn, host string, port uint16, deadline time.Time) error {
	if len(host) > 255 {
		return errors.New("socks5: destination host name too long")
	}

	req := make([]byte, 0, 7+len(host))
	req = append(req, version5, cmdConnect, 0x00, addrTypeDomain, byte(len(host)))
	req = append(req, host...)
	req = binary.BigEndian.AppendUint16(req, port)
	if _, err := conn.Write(req); err != nil {
		return err
	}

	header := make([]byte, 4)
	if err := readFullWithDeadline(conn, header, remaining(deadline)); err != nil {
		return err
	}
	if header[0] != version5 {
		return fmt.Errorf("socks5: unexpected reply version %d", header[0])
	}
	if header[1] != replySucceeded {
		if reason, ok := replyErrors[header[1]]; ok {
			return fmt.Errorf("socks5: connect failed: %s", reason)
		}
		return fmt.Errorf("socks5: connect failed: unknown status %d", header[1])
	}

	return skipBoundAddress(conn, header[3], deadline)
}

// skipBoundAddress reads and discards the reply's bound-address and port
// fields, whose length depends on addrType (§4.9 step 6).
func skipBoundAddress(conn net.Conn, addrType byte, deadline time.Time) error {
	switch addrType {
	case addrTypeIPv4:
		return discard(conn, net.IPv4len+2, deadline)
	case addrTypeIPv6:
		return discard(conn, net.IPv6len+2, deadline)
	case addrTypeDomain:
		lenBuf := make([]byte, 1)
		if err := readFullWithDeadline(conn, lenBuf, remaining(deadline)); err != nil {
			return err
		}
		return discard(conn, int(lenBuf[0])+2, deadline)
	default:
		return fmt.Errorf("socks5: unsupported bound address type %d", addrType)
	}
}

func discard(conn net.Conn, n int, deadline time.Time) error {
	buf := make([]byte, n)
	return readFullWithDeadline(conn, buf, remaining(deadline))
}
