// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.3 (Session context projection).

package driverutil

import (
	"errors"

	"github.com/bassosimone/dbconncore/internal/bsonutil"
)

// snapshotIntroducedWireVersion is the minimum wire version that supports
// atClusterTime / snapshot reads.
const snapshotIntroducedWireVersion = 13

// ErrSnapshotTooOld is returned by [ReadConcernFragment] when a snapshot
// session is projected against a server whose wire version precedes the
// introduction of snapshot reads.
var ErrSnapshotTooOld = errors.New("driverutil: snapshot reads require a newer server")

// ReadConcernFragment produces the read-concern fragment to attach to an
// outgoing command, per §4.3:
//
//   - an optional "level" entry (sc.ReadConcernLevel, when non-empty)
//   - plus exactly one of "afterClusterTime" (causally-consistent sessions
//     that have advanced an operation time) or "atClusterTime" (snapshot
//     sessions with a snapshot timestamp)
//
// A session that is both causally-consistent and snapshot violates the
// session layer's invariant; ReadConcernFragment returns an error for it.
func ReadConcernFragment(sc SessionContext, serverMaxWireVersion int32) (bsonutil.D, error) {
	if sc.CausallyConsistent && sc.Snapshot {
		return nil, errors.New("driverutil: session cannot be both causally consistent and snapshot")
	}

	if sc.Snapshot && serverMaxWireVersion < snapshotIntroducedWireVersion {
		return nil, ErrSnapshotTooOld
	}

	var frag bsonutil.D
	if sc.ReadConcernLevel != "" {
		frag = frag.Append("level", sc.ReadConcernLevel)
	}

	switch {
	case sc.Snapshot && sc.HasSnapshotTime:
		frag = frag.Append("atClusterTime", sc.SnapshotTime)
	case sc.CausallyConsistent && sc.HasOperationTime:
		frag = frag.Append("afterClusterTime", sc.OperationTime)
	}

	return frag, nil
}
