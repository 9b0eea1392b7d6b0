// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.1 and §6 (OP_REPLY and OP_MSG reply body
// layouts, response-flag bit meanings).

package wiremessage

import (
	"encoding/binary"
	"fmt"

	"github.com/bassosimone/dbconncore/internal/bsonutil"
)

// OpReplyResponseFlags bit meanings (§6).
const (
	ReplyFlagCursorNotFound uint32 = 1 << 0
	ReplyFlagQueryFailure   uint32 = 1 << 1
)

// OpMsgFlags bit meanings (§4.1/§6).
const (
	MsgFlagMoreToCome uint32 = 1 << 1
)

// OpMsgPayloadType identifies an OP_MSG section's payload type.
type OpMsgPayloadType byte

const (
	PayloadType0 OpMsgPayloadType = 0
	PayloadType1 OpMsgPayloadType = 1
)

// opReplyHeaderLength is the fixed portion of an OP_REPLY body before any
// documents: flags(4) + cursorID(8) + startingFrom(4) + numberReturned(4).
const opReplyHeaderLength = 20

// Reply is the decoded body of an OP_REPLY message.
type Reply struct {
	ResponseFlags  uint32
	CursorID       int64
	StartingFrom   int32
	NumberReturned int32
	Documents      []bsonutil.RawDocument
}

// CursorNotFound reports whether bit 0 of ResponseFlags is set.
func (r Reply) CursorNotFound() bool { return r.ResponseFlags&ReplyFlagCursorNotFound != 0 }

// QueryFailure reports whether bit 1 of ResponseFlags is set.
func (r Reply) QueryFailure() bool { return r.ResponseFlags&ReplyFlagQueryFailure != 0 }

// DecodeReply parses an OP_REPLY body (everything after the 16-byte
// header) per §6: the reply must contain at least the fixed header
// portion, and NumberReturned must be non-negative.
func DecodeReply(body []byte) (Reply, error) {
	if len(body) < opReplyHeaderLength {
		return Reply{}, &FramingError{Reason: fmt.Sprintf("OP_REPLY body too short: %d bytes", len(body))}
	}
	r := Reply{
		ResponseFlags:  binary.LittleEndian.Uint32(body[0:4]),
		CursorID:       int64(binary.LittleEndian.Uint64(body[4:12])),
		StartingFrom:   int32(binary.LittleEndian.Uint32(body[12:16])),
		NumberReturned: int32(binary.LittleEndian.Uint32(body[16:20])),
	}
	if r.NumberReturned < 0 {
		return Reply{}, &FramingError{Reason: "OP_REPLY numberReturned is negative"}
	}
	docs, err := bsonutil.SplitDocuments(body[opReplyHeaderLength:])
	if err != nil {
		return Reply{}, &FramingError{Reason: "OP_REPLY document split: " + err.Error()}
	}
	r.Documents = docs
	return r, nil
}

// MsgSection is one decoded section of an OP_MSG body.
type MsgSection struct {
	PayloadType OpMsgPayloadType

	// Document is set for PayloadType0.
	Document bsonutil.RawDocument

	// SequenceIdentifier and Documents are set for PayloadType1.
	SequenceIdentifier string
	Documents          []bsonutil.RawDocument
}

// Msg is the decoded body of an OP_MSG message.
type Msg struct {
	Flags    uint32
	Sections []MsgSection
}

// MoreToCome reports whether bit 1 of Flags is set (§4.1).
func (m Msg) MoreToCome() bool { return m.Flags&MsgFlagMoreToCome != 0 }

// DecodeMsg parses an OP_MSG body per §4.1/§6: flag-bits (int32) followed
// by one or more length-prefixed sections, each starting with a
// payload-type byte.
func DecodeMsg(body []byte) (Msg, error) {
	if len(body) < 4 {
		return Msg{}, &FramingError{Reason: "OP_MSG body too short for flags"}
	}
	m := Msg{Flags: binary.LittleEndian.Uint32(body[0:4])}
	rest := body[4:]
	for len(rest) > 0 {
		if len(rest) < 1 {
			return Msg{}, &FramingError{Reason: "OP_MSG section missing payload type"}
		}
		pt := OpMsgPayloadType(rest[0])
		rest = rest[1:]
		switch pt {
		case PayloadType0:
			doc := bsonutil.RawDocument(rest)
			n, err := doc.Len()
			if err != nil || int(n) > len(rest) {
				return Msg{}, &FramingError{Reason: "OP_MSG payload type 0 document length invalid"}
			}
			m.Sections = append(m.Sections, MsgSection{PayloadType: PayloadType0, Document: bsonutil.RawDocument(rest[:n])})
			rest = rest[n:]
		case PayloadType1:
			if len(rest) < 4 {
				return Msg{}, &FramingError{Reason: "OP_MSG payload type 1 section too short"}
			}
			size := int32(binary.LittleEndian.Uint32(rest[0:4]))
			if int(size) > len(rest) || size < 4 {
				return Msg{}, &FramingError{Reason: "OP_MSG payload type 1 size invalid"}
			}
			section := rest[4:size]
			rest = rest[size:]

			idEnd := indexByte(section, 0)
			if idEnd < 0 {
				return Msg{}, &FramingError{Reason: "OP_MSG payload type 1 missing identifier terminator"}
			}
			identifier := string(section[:idEnd])
			docs, err := bsonutil.SplitDocuments(section[idEnd+1:])
			if err != nil {
				return Msg{}, &FramingError{Reason: "OP_MSG payload type 1 document split: " + err.Error()}
			}
			m.Sections = append(m.Sections, MsgSection{
				PayloadType:        PayloadType1,
				SequenceIdentifier: identifier,
				Documents:          docs,
			})
		default:
			return Msg{}, &FramingError{Reason: fmt.Sprintf("unknown OP_MSG payload type %d", pt)}
		}
	}
	return m, nil
}

// CommandDocument returns the first PayloadType0 section's document, which
// by convention is the command document for a command message.
func (m Msg) CommandDocument() (bsonutil.RawDocument, bool) {
	for _, s := range m.Sections {
		if s.PayloadType == PayloadType0 {
			return s.Document, true
		}
	}
	return nil, false
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
