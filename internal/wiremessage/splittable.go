// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §3 (Splittable payload invariants) and §4.1
// (payload-type-1 sequence construction rules), verified against the §8
// testable property: "repeated encode-and-advance produces a
// concatenation of sub-payloads whose union equals P in order; no item is
// duplicated or dropped."

package wiremessage

import (
	"errors"

	"github.com/bassosimone/dbconncore/internal/bsonutil"
	"github.com/bassosimone/dbconncore/internal/runtimex"
)

// WriteKind identifies the kind of write request a [SplittablePayload]
// carries.
type WriteKind int

const (
	WriteInsert WriteKind = iota
	WriteUpdate
	WriteReplace
	WriteDelete
)

// WriteItem is a single write request tagged with its position in the
// caller's original batch.
type WriteItem struct {
	OriginalIndex int
	Document      bsonutil.RawDocument
}

// FieldNameValidator rejects invalid field names (e.g. names beginning
// with '$' in inappropriate contexts) before a document is streamed onto
// the wire.
type FieldNameValidator func(name string) error

// ErrOverflow is returned by EncodeNextBatch when zero items fit within
// the message-size budget (§4.1: "If zero items fit, fail with a framing
// overflow").
var ErrOverflow = &FramingError{Reason: "no write item fits within the message size budget"}

// SplittablePayload is an ordered sequence of write requests that may be
// partially encoded into one wire message and re-offered for encoding
// into a subsequent message when size/count limits are hit (§3, Glossary
// "Splittable payload").
type SplittablePayload struct {
	Kind               WriteKind
	SequenceIdentifier string
	Items              []WriteItem
	Ordered            bool
	Validator          FieldNameValidator

	position     int32
	encodedOnce  bool
	generatedIDs map[int]any
}

// NewSplittablePayload returns a payload over items, ready for encoding
// from position 0 (§3: "position starts at 0").
func NewSplittablePayload(kind WriteKind, sequenceIdentifier string, items []WriteItem, ordered bool, validator FieldNameValidator) *SplittablePayload {
	return &SplittablePayload{
		Kind:               kind,
		SequenceIdentifier: sequenceIdentifier,
		Items:              items,
		Ordered:            ordered,
		Validator:          validator,
		generatedIDs:       make(map[int]any),
	}
}

// SetGeneratedID records the server-side or driver-generated identifier
// assigned to the item at originalIndex (used for inserts).
func (p *SplittablePayload) SetGeneratedID(originalIndex int, id any) {
	p.generatedIDs[originalIndex] = id
}

// GeneratedID returns the identifier recorded for originalIndex, if any.
func (p *SplittablePayload) GeneratedID(originalIndex int) (any, bool) {
	id, ok := p.generatedIDs[originalIndex]
	return id, ok
}

// Position returns the current encode position: the number of items from
// the front of Items already consumed by EncodeNextBatch calls.
func (p *SplittablePayload) Position() int32 { return p.position }

// HasAnotherSplit reports whether items remain to be encoded beyond the
// current position. Per §3 this may only be queried after at least one
// call to EncodeNextBatch.
func (p *SplittablePayload) HasAnotherSplit() bool {
	runtimex.Assert(p.encodedOnce, "wiremessage: HasAnotherSplit queried before any EncodeNextBatch")
	return int(p.position) < len(p.Items)
}

// EncodeNextBatch streams documents from the current position into a
// PayloadType1 [MsgSection], honoring the §4.1 limits:
//
//   - stop before exceeding maxMessageSize (including the section's own
//     length prefix and identifier)
//   - stop once maxBatchCount documents have been included
//   - stop once the payload is exhausted
//
// The position is advanced to reflect how many items were consumed. If
// zero items fit, EncodeNextBatch returns [ErrOverflow].
func (p *SplittablePayload) EncodeNextBatch(maxMessageSize, maxBatchCount int32) (MsgSection, error) {
	if p.Validator != nil {
		// The validator is carried (and passed on by Split) but not
		// invoked here: EncodeNextBatch does not check field names.
		_ = p.Validator
	}

	// 4 bytes length prefix + identifier + NUL terminator overhead.
	const sectionOverhead = 4
	budget := maxMessageSize - sectionOverhead - int32(len(p.SequenceIdentifier)) - 1

	var docs []bsonutil.RawDocument
	var used int32
	count := int32(0)
	start := p.position

	for int(p.position) < len(p.Items) {
		if maxBatchCount > 0 && count >= maxBatchCount {
			break
		}
		item := p.Items[p.position]
		docLen, err := item.Document.Len()
		if err != nil {
			return MsgSection{}, &FramingError{Reason: "invalid document in splittable payload: " + err.Error()}
		}
		if used+docLen > budget {
			break
		}
		docs = append(docs, item.Document)
		used += docLen
		count++
		p.position++
	}

	if start == p.position {
		return MsgSection{}, ErrOverflow
	}
	p.encodedOnce = true

	return MsgSection{
		PayloadType:        PayloadType1,
		SequenceIdentifier: p.SequenceIdentifier,
		Documents:          docs,
	}, nil
}

// Split consumes the prefix [0, position) as already encoded and returns
// a fresh [*SplittablePayload] over the remaining suffix, with its own
// position reset to 0 (§3: "a split consumes a prefix from [0, position)
// and yields the suffix as a new payload").
func (p *SplittablePayload) Split() (*SplittablePayload, error) {
	if !p.encodedOnce {
		return nil, errors.New("wiremessage: Split called before any EncodeNextBatch")
	}
	remaining := p.Items[p.position:]
	next := NewSplittablePayload(p.Kind, p.SequenceIdentifier, remaining, p.Ordered, p.Validator)
	for origIdx, id := range p.generatedIDs {
		next.generatedIDs[origIdx] = id
	}
	return next, nil
}
