// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone-nop's observeconn.go ObserveConnFunc, unchanged
// in mechanism, retargeted at driverutil.SLogger/ErrClassifier so every
// wire read/write and SOCKS5 round-trip gets the same structured I/O
// logging bassosimone-nop gives its own transports.

package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/dbconncore/internal/driverutil"
	"github.com/bassosimone/dbconncore/internal/safeconn"
)

// NewObserveConnFunc returns a new [*ObserveConnFunc] wired from cfg.
func NewObserveConnFunc(cfg *driverutil.Config, logger driverutil.SLogger) *ObserveConnFunc {
	return &ObserveConnFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// ObserveConnFunc wraps a [net.Conn] to log I/O operations at debug level
// and open/close lifecycle at info level.
type ObserveConnFunc struct {
	ErrClassifier driverutil.ErrClassifier
	Logger        driverutil.SLogger
	TimeNow       func() time.Time
}

var _ Func[net.Conn, net.Conn] = &ObserveConnFunc{}

// Call wraps conn for observation.
func (op *ObserveConnFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	return &observedConn{
		conn:     conn,
		laddr:    safeconn.LocalAddr(conn),
		raddr:    safeconn.RemoteAddr(conn),
		protocol: safeconn.Network(conn),
		op:       op,
	}, nil
}

type observedConn struct {
	closeonce sync.Once
	conn      net.Conn
	laddr     string
	raddr     string
	protocol  string
	op        *ObserveConnFunc
}

func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.op.TimeNow()
		c.op.Logger.Info("closeStart",
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t", t0),
		)
		err = c.conn.Close()
		c.op.Logger.Info("closeDone",
			slog.Any("err", err),
			slog.String("errClass", c.op.ErrClassifier.Classify(err)),
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t0", t0),
			slog.Time("t", c.op.TimeNow()),
		)
	})
	return
}

func (c *observedConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *observedConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.op.TimeNow()
	c.op.Logger.Debug("readStart",
		slog.Int("ioBufferSize", len(buf)),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0),
	)
	n, err := c.conn.Read(buf)
	c.op.Logger.Debug("readDone",
		slog.Int("ioBytesCount", n),
		slog.Any("err", err),
		slog.String("errClass", c.op.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.op.TimeNow()),
	)
	return n, err
}

func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.op.TimeNow()
	c.op.Logger.Debug("writeStart",
		slog.Int("ioBufferSize", len(data)),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t", t0),
	)
	n, err := c.conn.Write(data)
	c.op.Logger.Debug("writeDone",
		slog.Int("ioBytesCount", n),
		slog.Any("err", err),
		slog.String("errClass", c.op.ErrClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.op.TimeNow()),
	)
	return n, err
}

func (c *observedConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *observedConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *observedConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }
