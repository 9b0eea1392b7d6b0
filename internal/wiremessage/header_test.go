// SPDX-License-Identifier: GPL-3.0-or-later

package wiremessage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{MessageLength: 42, RequestID: 7, ResponseTo: 3, OpCode: OpMsg}
	buf := EncodeHeader(nil, h)
	require.Len(t, buf, HeaderLength)

	got, err := DecodeHeader(buf, 0, nil)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestDecodeHeaderRejectsOversizedMessage(t *testing.T) {
	h := Header{MessageLength: 1000, RequestID: 1, ResponseTo: 0, OpCode: OpMsg}
	buf := EncodeHeader(nil, h)

	_, err := DecodeHeader(buf, 100, nil)
	require.Error(t, err)
	var fe *FramingError
	require.ErrorAs(t, err, &fe)
}

func TestDecodeHeaderRejectsShortBuffer(t *testing.T) {
	_, err := DecodeHeader([]byte{1, 2, 3}, 0, nil)
	require.Error(t, err)
}

func TestRequestIDIsMonotonic(t *testing.T) {
	a := NextRequestID()
	b := NextRequestID()
	require.Greater(t, b, a)
}
