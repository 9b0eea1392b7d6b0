// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone-nop's cancelwatch.go, unchanged in mechanism
// (context.AfterFunc-driven close), wired here to bound the wire framing
// codec's receive and the SOCKS5 adapter's established connection by the
// operation context carried in a [context.Context] (§5: "every blocking
// call is bounded by the operation context's deadline"). The SOCKS5
// handshake itself runs before this wrap is applied.

package transport

import (
	"context"
	"net"
)

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc() *CancelWatchFunc {
	return &CancelWatchFunc{}
}

// CancelWatchFunc closes the connection when its context is done,
// providing responsive cleanup for operation-deadline cancellation rather
// than relying solely on SetDeadline-driven I/O timeouts.
type CancelWatchFunc struct{}

var _ Func[net.Conn, net.Conn] = &CancelWatchFunc{}

// Call registers a context watcher that closes conn when ctx is done. The
// returned [net.Conn] wraps conn: closing it unregisters the watcher.
func (op *CancelWatchFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	return &cancelWatchedConn{Conn: conn, stop: stop}, nil
}

type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
