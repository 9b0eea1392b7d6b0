// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.1 ("Nesting meter: an encoder-decorator tracks
// BSON document/array nesting depth around every start/end pair").

package wiremessage

// MaxNestingDepth bounds how deep a document/array structure may nest,
// matching the document-database server's own limit.
const MaxNestingDepth = 200

// NestingMeter tracks document/array nesting depth around start/end
// pairs. A document codec (external to this package, per §1 Non-goals)
// wraps its encoder with a NestingMeter to enforce the maximum nesting
// invariant without needing to know the codec's internal representation.
type NestingMeter struct {
	depth        int
	initialDepth int
}

// NewNestingMeter returns a meter starting at initialDepth (nonzero when
// encoding a document that is itself already nested inside another).
func NewNestingMeter(initialDepth int) *NestingMeter {
	return &NestingMeter{depth: initialDepth, initialDepth: initialDepth}
}

// Depth returns the current nesting depth.
func (m *NestingMeter) Depth() int { return m.depth }

// Enter records entry into a nested document or array, returning an error
// if doing so would exceed [MaxNestingDepth].
func (m *NestingMeter) Enter() error {
	if m.depth+1 > MaxNestingDepth {
		return &FramingError{Reason: "maximum BSON nesting depth exceeded"}
	}
	m.depth++
	return nil
}

// Exit records exit from a nested document or array.
func (m *NestingMeter) Exit() {
	if m.depth > m.initialDepth {
		m.depth--
	}
}
