// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.1/§6 (OP_COMPRESSED envelope).

package wiremessage

import (
	"encoding/binary"
	"fmt"
)

// Compressor decompresses (and compresses, for outgoing messages) a wire
// payload for a specific [CompressorID]. Concrete compressors (snappy,
// zlib, zstd) are external collaborators; this package only defines the
// envelope framing.
type Compressor interface {
	ID() CompressorID
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte) ([]byte, error)
}

// CompressorRegistry looks up a [Compressor] by id.
type CompressorRegistry map[CompressorID]Compressor

// Get returns the compressor for id, or ok=false if unregistered.
func (r CompressorRegistry) Get(id CompressorID) (Compressor, bool) {
	c, ok := r[id]
	return c, ok
}

const compressedHeaderLength = 9 // originalOpCode(4) + uncompressedSize(4) + compressorID(1)

// CompressedEnvelope is the decoded body of an OP_COMPRESSED message,
// before decompression.
type CompressedEnvelope struct {
	OriginalOpCode   OpCode
	UncompressedSize int32
	CompressorID     CompressorID
	CompressedBody   []byte
}

// DecodeCompressedEnvelope parses an OP_COMPRESSED body (everything after
// the 16-byte header).
func DecodeCompressedEnvelope(body []byte) (CompressedEnvelope, error) {
	if len(body) < compressedHeaderLength {
		return CompressedEnvelope{}, &FramingError{Reason: "OP_COMPRESSED body too short"}
	}
	return CompressedEnvelope{
		OriginalOpCode:   OpCode(binary.LittleEndian.Uint32(body[0:4])),
		UncompressedSize: int32(binary.LittleEndian.Uint32(body[4:8])),
		CompressorID:     CompressorID(body[8]),
		CompressedBody:   body[compressedHeaderLength:],
	}, nil
}

// Decompress decompresses env.CompressedBody using reg, returning a body
// of env.OriginalOpCode to re-enter the framing logic.
func (env CompressedEnvelope) Decompress(reg CompressorRegistry) (OpCode, []byte, error) {
	c, ok := reg.Get(env.CompressorID)
	if !ok {
		return 0, nil, &FramingError{Reason: fmt.Sprintf("unsupported compressor id %d", env.CompressorID)}
	}
	dst := make([]byte, 0, env.UncompressedSize)
	out, err := c.Decompress(dst, env.CompressedBody)
	if err != nil {
		return 0, nil, &FramingError{Reason: "decompression failed: " + err.Error()}
	}
	if int32(len(out)) != env.UncompressedSize {
		return 0, nil, &FramingError{Reason: "decompressed size mismatch"}
	}
	return env.OriginalOpCode, out, nil
}

// EncodeCompressedEnvelope compresses body (whose opcode is
// originalOpCode) with compressor c, returning the OP_COMPRESSED body
// (without the outer 16-byte header).
func EncodeCompressedEnvelope(c Compressor, originalOpCode OpCode, body []byte) []byte {
	compressed, err := c.Compress(nil, body)
	if err != nil {
		// A compressor failure is treated as a programmer error in the
		// configured codec; no uncompressed fallback is attempted.
		panic(err)
	}
	out := make([]byte, 0, compressedHeaderLength+len(compressed))
	out = binary.LittleEndian.AppendUint32(out, uint32(originalOpCode))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(body)))
	out = append(out, byte(c.ID()))
	out = append(out, compressed...)
	return out
}
