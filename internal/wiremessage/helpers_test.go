// SPDX-License-Identifier: GPL-3.0-or-later

package wiremessage

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/bassosimone/dbconncore/internal/bsonutil"
)

// testDoc builds a fake length-prefixed "document" for wire-framing tests.
// It is not a real BSON document: the framing codec only needs the
// length prefix, so the payload is an opaque marker derived from key/val.
func testDoc(t *testing.T, key string, val int) bsonutil.RawDocument {
	t.Helper()
	payload := []byte(fmt.Sprintf("%s=%d", key, val))
	total := 4 + len(payload) + 1 // length + payload + trailing NUL
	buf := make([]byte, 0, total)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(total))
	buf = append(buf, payload...)
	buf = append(buf, 0)
	return bsonutil.RawDocument(buf)
}

func appendUint32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendUint64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}
