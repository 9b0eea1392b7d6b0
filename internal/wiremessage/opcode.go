// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §6 (External interfaces: wire protocol bytes).

// Package wiremessage implements the binary wire-protocol framing codec:
// message headers, OP_MSG/OP_REPLY/OP_COMPRESSED decode, request/response
// correlation, and the splittable-payload batcher for bulk writes (§4.1).
package wiremessage

// OpCode identifies a wire-protocol message kind.
type OpCode int32

const (
	OpReply       OpCode = 1
	OpUpdate      OpCode = 2001
	OpInsert      OpCode = 2002
	OpQuery       OpCode = 2004
	OpGetMore     OpCode = 2005
	OpDelete      OpCode = 2006
	OpKillCursors OpCode = 2007
	OpCompressed  OpCode = 2012
	OpMsg         OpCode = 2013
)

func (c OpCode) String() string {
	switch c {
	case OpReply:
		return "OP_REPLY"
	case OpUpdate:
		return "OP_UPDATE"
	case OpInsert:
		return "OP_INSERT"
	case OpQuery:
		return "OP_QUERY"
	case OpGetMore:
		return "OP_GETMORE"
	case OpDelete:
		return "OP_DELETE"
	case OpKillCursors:
		return "OP_KILL_CURSORS"
	case OpCompressed:
		return "OP_COMPRESSED"
	case OpMsg:
		return "OP_MSG"
	default:
		return "OP_UNKNOWN"
	}
}

// CompressorID identifies a wire compressor used inside OP_COMPRESSED.
type CompressorID byte

const (
	CompressorNoop    CompressorID = 0
	CompressorSnappy  CompressorID = 1
	CompressorZlib    CompressorID = 2
	CompressorZstd    CompressorID = 3
)
