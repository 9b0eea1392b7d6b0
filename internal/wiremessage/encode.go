// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.1 (Command message construction) and §6
// (Greeting/SASL commands are OP_MSG bodies with section payload-type 0).

package wiremessage

import (
	"encoding/binary"

	"github.com/bassosimone/dbconncore/internal/bsonutil"
)

// EncodeOpMsgSections renders sections into an OP_MSG body (flags + each
// section's bytes), honoring the same payload-type layouts [DecodeMsg]
// parses.
func EncodeOpMsgSections(flags uint32, sections []MsgSection) []byte {
	body := binary.LittleEndian.AppendUint32(nil, flags)
	for _, s := range sections {
		switch s.PayloadType {
		case PayloadType0:
			body = append(body, byte(PayloadType0))
			body = append(body, s.Document...)
		case PayloadType1:
			body = append(body, byte(PayloadType1))
			inner := []byte(s.SequenceIdentifier)
			inner = append(inner, 0)
			for _, d := range s.Documents {
				inner = append(inner, d...)
			}
			sizeField := binary.LittleEndian.AppendUint32(nil, uint32(len(inner)+4))
			body = append(body, sizeField...)
			body = append(body, inner...)
		}
	}
	return body
}

// EncodeMessage wraps body with a 16-byte header using requestID and
// responseTo, returning the full wire message.
func EncodeMessage(requestID, responseTo int32, opCode OpCode, body []byte) []byte {
	total := int32(HeaderLength + len(body))
	out := EncodeHeader(nil, Header{
		MessageLength: total,
		RequestID:     requestID,
		ResponseTo:    responseTo,
		OpCode:        opCode,
	})
	return append(out, body...)
}

// NewCommandMessage builds the OP_MSG sections for a command document plus
// zero or more write-sequence payloads (§4.1: "the command document is
// emitted as section payload-type 0; sequenceable write payloads are
// emitted as payload-type 1").
func NewCommandMessage(command bsonutil.RawDocument, sequences ...MsgSection) []byte {
	sections := make([]MsgSection, 0, 1+len(sequences))
	sections = append(sections, MsgSection{PayloadType: PayloadType0, Document: command})
	sections = append(sections, sequences...)
	return EncodeOpMsgSections(0, sections)
}
