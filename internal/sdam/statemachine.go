// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: the ProcessError/ProcessHandshakeError/updateDescription
// shape of other_examples' mongo-go-driver topology/server.go (reference
// only): pool-clear-before-or-after-handshake gating on wire version and
// shutdown state, publishing an unknown description on disqualifying
// errors, and staleness checks against both pool generation and topology
// version. Publishing itself reuses internal/description's Publisher,
// grounded on the same reference file's ServerSubscription pattern.

package sdam

import (
	"github.com/bassosimone/dbconncore/internal/address"
	"github.com/bassosimone/dbconncore/internal/description"
)

// Outcome is the state machine's verdict for a single observed error: what
// the caller should do to the connection pool and the server description.
type Outcome struct {
	ClearPool      bool
	InterruptInUse bool // clear in-use connections too, not just idle ones
	MarkUnknown    bool
	NewDescription description.Server
}

// legacyWireVersionPoolClearThreshold is the wire version below which any
// issue that clears the pool (state change, non-timeout network error, TLS
// configuration, shutdown) also interrupts in-use connections (pre-4.2
// servers cannot tell the driver which connections are stale).
const legacyWireVersionPoolClearThreshold = 8

// StateMachine drives description transitions for a single monitored
// server. It holds no network/transport code itself, only the decision
// logic plus the publish side-effect.
type StateMachine struct {
	publisher *description.Publisher
}

// NewStateMachine creates a [StateMachine] that publishes through pub.
func NewStateMachine(pub *description.Publisher) *StateMachine {
	return &StateMachine{publisher: pub}
}

// HandleExceptionBeforeHandshake processes an error observed while
// establishing or authenticating a new connection, before any application
// command has been exchanged on it.
func (sm *StateMachine) HandleExceptionBeforeHandshake(addr address.Address, err error, maxWireVersion int32) Outcome {
	issue := Classify(err)
	return sm.apply(addr, issue, maxWireVersion)
}

// HandleExceptionAfterHandshake processes an error observed while
// executing an application command on an already-handshaken connection.
func (sm *StateMachine) HandleExceptionAfterHandshake(addr address.Address, err error, poolGeneration uint64, maxWireVersion int32) Outcome {
	issue := Classify(err)
	issue.PoolGeneration = poolGeneration

	current := sm.publisher.Current()
	if issue.IsStale(poolGeneration, current.TopologyVersion) {
		return Outcome{NewDescription: current}
	}
	return sm.apply(addr, issue, maxWireVersion)
}

func (sm *StateMachine) apply(addr address.Address, issue Issue, maxWireVersion int32) Outcome {
	if issue.RelatedToWriteConcern && !issue.RelatedToStateChange {
		return Outcome{NewDescription: sm.publisher.Current()}
	}

	if !issue.RelatedToStateChange && !issue.RelatedToNetworkNotTimeout &&
		!issue.RelatedToTLSConfiguration && !issue.RelatedToShutdown {
		return Outcome{NewDescription: sm.publisher.Current()}
	}

	unknown := description.NewServerFromError(addr, issue.Err, issue.TopologyVersion)
	sm.publisher.Publish(unknown)

	outcome := Outcome{MarkUnknown: true, NewDescription: unknown, ClearPool: true}
	if issue.RelatedToShutdown || maxWireVersion < legacyWireVersionPoolClearThreshold {
		outcome.InterruptInUse = true
	}
	return outcome
}

// UpdateToUnknown forcibly transitions the monitored server's published
// description to the unknown state, e.g. after a heartbeat failure.
func (sm *StateMachine) UpdateToUnknown(addr address.Address, err error) description.Server {
	unknown := description.NewServerFromError(addr, err, description.TopologyVersion{})
	sm.publisher.Publish(unknown)
	return unknown
}

// MonitorUpdate applies a freshly observed heartbeat description, but only
// if it is not stale relative to what is currently published.
func (sm *StateMachine) MonitorUpdate(next description.Server) (applied bool) {
	current := sm.publisher.Current()
	if next.TopologyVersion.Valid && current.TopologyVersion.Valid &&
		current.TopologyVersion.Newer(next.TopologyVersion) {
		return false
	}
	sm.publisher.Publish(next)
	return true
}
