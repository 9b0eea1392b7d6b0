// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.1 receive path and bassosimone-nop's pipeline composition
// (internal/transport's cancel-watch and observe-conn stages wrap a
// connection the same way bassosimone-nop wraps a freshly dialed conn
// before handing it to its own measurement stages).

package wiremessage

import (
	"context"
	"io"
	"net"

	"github.com/bassosimone/dbconncore/internal/driverutil"
	"github.com/bassosimone/dbconncore/internal/transport"
)

// Receiver reads full wire messages off a [net.Conn] that has been wrapped
// with the cancel-watch and observe-conn transport stages, so a receive is
// bounded by the operation context's deadline and every read is logged the
// same way as any other transport I/O (§5).
type Receiver struct {
	Config         *driverutil.Config
	Logger         driverutil.SLogger
	MaxMessageSize int32
	Compressors    CompressorRegistry
	Hook           DebugHook
}

// Wrap returns conn wrapped through the cancel-watch and observe-conn
// transport stages. Callers should read from (and close) the returned
// [net.Conn], not the original one.
func (r *Receiver) Wrap(ctx context.Context, conn net.Conn) (net.Conn, error) {
	watched, err := transport.NewCancelWatchFunc().Call(ctx, conn)
	if err != nil {
		return nil, err
	}
	return transport.NewObserveConnFunc(r.config(), r.logger()).Call(ctx, watched)
}

func (r *Receiver) config() *driverutil.Config {
	if r.Config != nil {
		return r.Config
	}
	return driverutil.NewConfig()
}

func (r *Receiver) logger() driverutil.SLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return driverutil.DefaultSLogger()
}

// Receive reads one full wire message from conn (a 16-byte header followed
// by MessageLength-HeaderLength body bytes) and decodes it, unwrapping any
// OP_COMPRESSED nesting.
func (r *Receiver) Receive(conn net.Conn) (DecodedMessage, error) {
	headerBuf := make([]byte, HeaderLength)
	if _, err := io.ReadFull(conn, headerBuf); err != nil {
		return DecodedMessage{}, err
	}
	header, err := DecodeHeader(headerBuf, r.MaxMessageSize, r.Hook)
	if err != nil {
		return DecodedMessage{}, err
	}

	full := make([]byte, header.MessageLength)
	copy(full, headerBuf)
	if _, err := io.ReadFull(conn, full[HeaderLength:]); err != nil {
		return DecodedMessage{}, err
	}
	return Decode(full, r.MaxMessageSize, r.Compressors, r.Hook)
}
