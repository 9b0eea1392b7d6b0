// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone-nop's connect.go ConnectFunc/Dialer pattern,
// adapted to dial a possibly-unresolved "host:port" address.Address
// string (SRV-derived load-balancer targets and SOCKS5 destinations are
// never resolved locally, per internal/address's doc comment) instead of
// a pre-resolved netip.AddrPort.

package transport

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/dbconncore/internal/driverutil"
	"github.com/bassosimone/dbconncore/internal/safeconn"
)

// NewConnectFunc returns a [*ConnectFunc] wired from cfg.
func NewConnectFunc(cfg *driverutil.Config, network string, logger driverutil.SLogger) *ConnectFunc {
	return &ConnectFunc{
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Network:       network,
		TimeNow:       cfg.TimeNow,
	}
}

// ConnectFunc dials a "host:port" address using a configured [driverutil.Dialer].
type ConnectFunc struct {
	Dialer        driverutil.Dialer
	ErrClassifier driverutil.ErrClassifier
	Logger        driverutil.SLogger
	Network       string
	TimeNow       func() time.Time
}

var _ Func[string, net.Conn] = &ConnectFunc{}

// Call dials addr (a "host:port" string).
func (op *ConnectFunc) Call(ctx context.Context, addr string) (net.Conn, error) {
	t0 := op.TimeNow()
	deadline, _ := ctx.Deadline()
	op.logConnectStart(addr, t0, deadline)
	conn, err := op.Dialer.DialContext(ctx, op.Network, addr)
	op.logConnectDone(addr, t0, deadline, conn, err)
	return conn, err
}

func (op *ConnectFunc) logConnectStart(addr string, t0, deadline time.Time) {
	op.Logger.Info("connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", op.Network),
		slog.String("remoteAddr", addr),
		slog.Time("t", t0),
	)
}

func (op *ConnectFunc) logConnectDone(addr string, t0, deadline time.Time, conn net.Conn, err error) {
	op.Logger.Info("connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", op.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", op.Network),
		slog.String("remoteAddr", addr),
		slog.Time("t0", t0),
		slog.Time("t", op.TimeNow()),
	)
}
