// SPDX-License-Identifier: GPL-3.0-or-later

package wiremessage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type identityCompressor struct{}

func (identityCompressor) ID() CompressorID { return CompressorNoop }
func (identityCompressor) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}
func (identityCompressor) Decompress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

func TestCompressedEnvelopeRoundTrip(t *testing.T) {
	reg := CompressorRegistry{CompressorNoop: identityCompressor{}}
	original := []byte("hello world body")

	compressedBody := EncodeCompressedEnvelope(identityCompressor{}, OpMsg, original)

	env, err := DecodeCompressedEnvelope(compressedBody)
	require.NoError(t, err)
	require.Equal(t, OpMsg, env.OriginalOpCode)

	opCode, body, err := env.Decompress(reg)
	require.NoError(t, err)
	require.Equal(t, OpMsg, opCode)
	require.Equal(t, original, body)
}

func TestDecodeRequestResponseSurviveNestedCompression(t *testing.T) {
	reg := CompressorRegistry{CompressorNoop: identityCompressor{}}

	msgBody := EncodeOpMsgSections(0, []MsgSection{
		{PayloadType: PayloadType0, Document: testDoc(t, "ok", 1)},
	})

	// Wrap twice: OP_MSG -> OP_COMPRESSED -> OP_COMPRESSED.
	once := EncodeCompressedEnvelope(identityCompressor{}, OpMsg, msgBody)
	twice := EncodeCompressedEnvelope(identityCompressor{}, OpCompressed, once)

	raw := EncodeMessage(123, 456, OpCompressed, twice)

	decoded, err := Decode(raw, 0, reg, nil)
	require.NoError(t, err)
	require.Equal(t, int32(123), decoded.Header.RequestID)
	require.Equal(t, int32(456), decoded.Header.ResponseTo)
	require.Equal(t, OpMsg, decoded.FinalOpCode)
	require.NotNil(t, decoded.Msg)
}
