// SPDX-License-Identifier: GPL-3.0-or-later

package wiremessage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bassosimone/dbconncore/internal/bsonutil"
)

func TestDecodeMsgPayloadType0(t *testing.T) {
	doc := testDoc(t, "ok", 1)
	body := EncodeOpMsgSections(0, []MsgSection{{PayloadType: PayloadType0, Document: doc}})

	m, err := DecodeMsg(body)
	require.NoError(t, err)
	require.False(t, m.MoreToCome())
	cmdDoc, ok := m.CommandDocument()
	require.True(t, ok)
	require.Equal(t, doc, cmdDoc)
}

func TestDecodeMsgPayloadType1(t *testing.T) {
	docs := []MsgSection{
		{PayloadType: PayloadType0, Document: testDoc(t, "insert", 1)},
		{
			PayloadType:        PayloadType1,
			SequenceIdentifier: "documents",
			Documents:          []bsonutil.RawDocument{testDoc(t, "a", 1), testDoc(t, "b", 2)},
		},
	}
	body := EncodeOpMsgSections(0, docs)

	m, err := DecodeMsg(body)
	require.NoError(t, err)
	require.Len(t, m.Sections, 2)
	require.Equal(t, PayloadType1, m.Sections[1].PayloadType)
	require.Equal(t, "documents", m.Sections[1].SequenceIdentifier)
	require.Len(t, m.Sections[1].Documents, 2)
}

func TestDecodeMsgMoreToCome(t *testing.T) {
	body := EncodeOpMsgSections(MsgFlagMoreToCome, []MsgSection{
		{PayloadType: PayloadType0, Document: testDoc(t, "ok", 1)},
	})
	m, err := DecodeMsg(body)
	require.NoError(t, err)
	require.True(t, m.MoreToCome())
}

func TestDecodeReply(t *testing.T) {
	doc1 := testDoc(t, "a", 1)
	doc2 := testDoc(t, "b", 2)

	body := make([]byte, 0)
	body = appendUint32(body, 0)     // response flags
	body = appendUint64(body, 99)    // cursor id
	body = appendUint32(body, 0)     // starting from
	body = appendUint32(body, 2)     // number returned
	body = append(body, doc1...)
	body = append(body, doc2...)

	r, err := DecodeReply(body)
	require.NoError(t, err)
	require.Equal(t, int64(99), r.CursorID)
	require.Equal(t, int32(2), r.NumberReturned)
	require.Len(t, r.Documents, 2)
	require.False(t, r.CursorNotFound())
	require.False(t, r.QueryFailure())
}

func TestDecodeReplyRejectsNegativeNumberReturned(t *testing.T) {
	body := make([]byte, 0)
	body = appendUint32(body, 0)
	body = appendUint64(body, 0)
	body = appendUint32(body, 0)
	body = appendUint32(body, uint32(int32(-1)))

	_, err := DecodeReply(body)
	require.Error(t, err)
}

func TestDecodeReplyFlags(t *testing.T) {
	body := make([]byte, 0)
	body = appendUint32(body, ReplyFlagQueryFailure)
	body = appendUint64(body, 0)
	body = appendUint32(body, 0)
	body = appendUint32(body, 0)

	r, err := DecodeReply(body)
	require.NoError(t, err)
	require.True(t, r.QueryFailure())
	require.False(t, r.CursorNotFound())
}
