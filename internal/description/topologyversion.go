// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §3/§4.5 and the partial-order design note in §9
// ("encode as an explicit three-valued comparator ... do not reuse a total
// order comparator interface"), cross-checked against the freshness logic
// in other_examples' mongo-go-driver topology/server.go ProcessError.

package description

// TopologyVersion is a (process-id, counter) pair identifying a server's
// SDAM state revision across restarts (ProcessID) and within a run
// (Counter).
type TopologyVersion struct {
	ProcessID string
	Counter   int64

	// Valid is false for the zero value: a server description with no
	// topology version reported by the server.
	Valid bool
}

// Newer reports whether v is strictly newer than other under the strict
// partial order of §3: true iff both are valid, process ids match, and
// v.Counter > other.Counter. Differing process ids are incomparable and
// Newer returns false for them.
func (v TopologyVersion) Newer(other TopologyVersion) bool {
	if !v.Valid || !other.Valid {
		return false
	}
	if v.ProcessID != other.ProcessID {
		return false
	}
	return v.Counter > other.Counter
}

// NewerOrEqual reports whether v is newer than or equal to other under the
// non-strict order of §3: Newer(v, other) or (matching process id and
// equal counter).
func (v TopologyVersion) NewerOrEqual(other TopologyVersion) bool {
	if !v.Valid || !other.Valid {
		return false
	}
	if v.ProcessID != other.ProcessID {
		return false
	}
	return v.Counter >= other.Counter
}
