// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.1/§6 (Message header) and bassosimone-nop's
// DebuggingHook pattern of surfacing internal protocol problems via an
// optional hook (observeconn.go's Logger field plays an analogous role).

package wiremessage

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
)

// HeaderLength is the fixed size, in bytes, of a wire-protocol message
// header.
const HeaderLength = 16

// FramingError reports a header or body framing violation (length
// overrun, short read). It is fatal to the round-trip that produced it.
type FramingError struct {
	Reason string
}

func (e *FramingError) Error() string { return "wiremessage: framing error: " + e.Reason }

// DebugHook receives framing errors for diagnostic purposes; it never
// affects control flow.
type DebugHook interface {
	OnFramingError(err *FramingError)
}

// NoopDebugHook discards every framing error.
type NoopDebugHook struct{}

func (NoopDebugHook) OnFramingError(*FramingError) {}

// requestIDCounter is a process-unique monotonic counter backing request
// ids (§4.1: "every request carries a process-unique request id
// (monotonic)").
var requestIDCounter atomic.Int32

// NextRequestID returns a fresh, process-unique request id.
func NextRequestID() int32 {
	return requestIDCounter.Add(1)
}

// Header is a decoded 16-byte wire-protocol message header.
type Header struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        OpCode
}

// EncodeHeader appends the 16-byte little-endian header to dst.
func EncodeHeader(dst []byte, h Header) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.MessageLength))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.RequestID))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.ResponseTo))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(h.OpCode))
	return dst
}

// DecodeHeader parses the 16-byte header from the front of src and
// validates it against maxMessageSize (0 disables the check). On a
// validation failure the returned error is a [*FramingError] and is also
// reported to hook, if non-nil.
func DecodeHeader(src []byte, maxMessageSize int32, hook DebugHook) (Header, error) {
	if hook == nil {
		hook = NoopDebugHook{}
	}
	if len(src) < HeaderLength {
		err := &FramingError{Reason: fmt.Sprintf("short header: got %d bytes, want %d", len(src), HeaderLength)}
		hook.OnFramingError(err)
		return Header{}, err
	}
	h := Header{
		MessageLength: int32(binary.LittleEndian.Uint32(src[0:4])),
		RequestID:     int32(binary.LittleEndian.Uint32(src[4:8])),
		ResponseTo:    int32(binary.LittleEndian.Uint32(src[8:12])),
		OpCode:        OpCode(binary.LittleEndian.Uint32(src[12:16])),
	}
	if maxMessageSize > 0 && h.MessageLength > maxMessageSize {
		err := &FramingError{Reason: fmt.Sprintf("message length %d exceeds maximum %d", h.MessageLength, maxMessageSize)}
		hook.OnFramingError(err)
		return Header{}, err
	}
	if h.MessageLength < HeaderLength {
		err := &FramingError{Reason: fmt.Sprintf("message length %d shorter than header", h.MessageLength)}
		hook.OnFramingError(err)
		return Header{}, err
	}
	return h, nil
}
