// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.1 (request/response correlation, OP_COMPRESSED
// re-entry) and §8 testable property ("the (request id, response-to) pair
// round-trips through any sequence of OP_COMPRESSED wrappings").

package wiremessage

// DecodedMessage is the fully-decoded form of an incoming wire message,
// after unwrapping any number of nested OP_COMPRESSED envelopes.
type DecodedMessage struct {
	Header Header // header of the outermost (possibly compressed) message

	// FinalOpCode is the opcode of the innermost, decompressed message.
	FinalOpCode OpCode

	Reply *Reply
	Msg   *Msg
}

// Decode parses a full wire message (header + body) from raw, recursing
// through OP_COMPRESSED envelopes until it reaches OP_REPLY or OP_MSG.
// The outer header's RequestID/ResponseTo survive unchanged through any
// number of compression wrappings, since compression only wraps the body.
func Decode(raw []byte, maxMessageSize int32, reg CompressorRegistry, hook DebugHook) (DecodedMessage, error) {
	header, err := DecodeHeader(raw, maxMessageSize, hook)
	if err != nil {
		return DecodedMessage{}, err
	}
	if int(header.MessageLength) > len(raw) {
		err := &FramingError{Reason: "declared message length exceeds buffer"}
		if hook != nil {
			hook.OnFramingError(err)
		}
		return DecodedMessage{}, err
	}
	body := raw[HeaderLength:header.MessageLength]
	opCode := header.OpCode

	for opCode == OpCompressed {
		env, err := DecodeCompressedEnvelope(body)
		if err != nil {
			return DecodedMessage{}, err
		}
		opCode, body, err = env.Decompress(reg)
		if err != nil {
			return DecodedMessage{}, err
		}
	}

	out := DecodedMessage{Header: header, FinalOpCode: opCode}
	switch opCode {
	case OpReply:
		r, err := DecodeReply(body)
		if err != nil {
			return DecodedMessage{}, err
		}
		out.Reply = &r
	case OpMsg:
		m, err := DecodeMsg(body)
		if err != nil {
			return DecodedMessage{}, err
		}
		out.Msg = &m
	default:
		return DecodedMessage{}, &FramingError{Reason: "unsupported response opcode " + opCode.String()}
	}
	return out, nil
}
