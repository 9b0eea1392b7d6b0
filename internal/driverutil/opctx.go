// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.2 (Operation context) and §9's design note that
// the deprioritization selector is a value type carried in the operation
// context requiring no shared mutation. Counter pattern adapted from
// bassosimone-nop's spanid.go (process-unique monotonic ids) and §9's note
// on a single shared atomic counter per process.

package driverutil

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/dbconncore/internal/address"
	"github.com/bassosimone/dbconncore/internal/description"
)

// opIDCounter is the process-wide monotonic counter backing operation ids
// (§9: wrap-around is undefined and is a practical non-issue).
var opIDCounter atomic.Uint64

// NextOperationID returns a fresh, globally-unique operation id.
func NextOperationID() uint64 {
	return opIDCounter.Add(1)
}

// Deprioritization carries per-operation soft-exclusion state for server
// selection in sharded topologies (§4.2, Glossary "Deprioritization").
//
// Each operation owns its own Deprioritization value; it is never shared
// across operations, only with the contexts derived from the owning one
// (see [OperationContext.WithTimeout]). Every method takes an internal
// mutex, so those derived contexts may use it concurrently.
type Deprioritization struct {
	mu           sync.Mutex
	candidate    address.Address
	hasCandidate bool
	deprioritized map[address.Address]struct{}
}

// NewDeprioritization returns a zero-state [*Deprioritization].
func NewDeprioritization() *Deprioritization {
	return &Deprioritization{deprioritized: make(map[address.Address]struct{})}
}

// SetCandidate records the address an operation is about to attempt.
func (d *Deprioritization) SetCandidate(addr address.Address) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.candidate = addr
	d.hasCandidate = true
}

// Filter applies the deprioritization rule to candidates: when clusterType
// is Sharded, servers in the deprioritized set are excluded unless doing
// so would empty the list, in which case the unfiltered list is returned.
// Outside sharded mode the filter is a pass-through.
func (d *Deprioritization) Filter(clusterType description.ClusterType, candidates []address.Address) []address.Address {
	if clusterType != description.Sharded {
		return candidates
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deprioritized) == 0 {
		return candidates
	}
	filtered := make([]address.Address, 0, len(candidates))
	for _, c := range candidates {
		if _, bad := d.deprioritized[c]; !bad {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return candidates
	}
	return filtered
}

// OnAttemptFailure applies the §4.2 failure rule: if there is no current
// candidate or the failure is a pool-cleared signal, the candidate is
// cleared without deprioritizing it; otherwise the candidate is added to
// the deprioritized set.
func (d *Deprioritization) OnAttemptFailure(poolCleared bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasCandidate || poolCleared {
		d.hasCandidate = false
		return
	}
	d.deprioritized[d.candidate] = struct{}{}
	d.hasCandidate = false
}

// TimeoutContext carries the absolute deadline for an operation, plus an
// optional minimum-RTT adjustment applied when computing derived
// per-round budgets.
type TimeoutContext struct {
	Deadline  time.Time // zero value means "never expires"
	MinRTT    time.Duration
}

// Infinite reports whether this timeout context never expires.
func (t TimeoutContext) Infinite() bool {
	return t.Deadline.IsZero()
}

// Remaining returns the time left before the deadline, measured against
// now. For an infinite deadline this returns a very large duration.
func (t TimeoutContext) Remaining(now time.Time) time.Duration {
	if t.Infinite() {
		return time.Duration(1<<63 - 1)
	}
	return t.Deadline.Sub(now)
}

// SessionContext is the minimal projection this core needs from a
// higher-level client session (§4.3): whether the session is causally
// consistent or snapshot, its advanced operation time, and its snapshot
// timestamp, plus the read concern level to combine with those.
type SessionContext struct {
	CausallyConsistent bool
	Snapshot           bool

	ReadConcernLevel string

	HasOperationTime bool
	OperationTime    [2]uint32 // (seconds, increment) BSON timestamp components

	HasSnapshotTime bool
	SnapshotTime    [2]uint32
}

// OperationContext carries everything a single logical operation needs to
// thread through the connection core: a unique id, the session context,
// the timeout context, the server-api marker, an optional operation name,
// and the deprioritization state shared by every attempt the operation
// makes (§4.2).
type OperationContext struct {
	OperationID      uint64
	Session          SessionContext
	Timeout          TimeoutContext
	ServerAPI        *ServerAPIOptions
	Name             string
	Deprioritization *Deprioritization

	requestID uint64
}

// NewOperationContext returns a fresh [*OperationContext] with a new
// operation id and deprioritization state.
func NewOperationContext(session SessionContext, timeout TimeoutContext) *OperationContext {
	return &OperationContext{
		OperationID:      NextOperationID(),
		Session:          session,
		Timeout:          timeout,
		Deprioritization: NewDeprioritization(),
	}
}

// WithTimeout returns a derived [*OperationContext] sharing this context's
// id and deprioritization state but with a freshly-started timeout
// (§4.2: "resets the maintenance deadline but preserves operation id").
// Used by the authentication engines to give every SASL round its own
// per-round budget while the overall operation deadline still bounds the
// sum (§4.4.1).
func (oc *OperationContext) WithTimeout(timeout TimeoutContext) *OperationContext {
	return &OperationContext{
		OperationID:      oc.OperationID,
		Session:          oc.Session,
		Timeout:          timeout,
		ServerAPI:        oc.ServerAPI,
		Name:             oc.Name,
		Deprioritization: oc.Deprioritization,
		requestID:        oc.requestID,
	}
}

// StartMaintenanceDeadline returns a derived context whose deadline is
// now+d, preserving everything else. This is the "newly-started
// maintenance deadline" of §4.4.1: used per SASL round so that one slow
// round does not silently consume another round's budget, while the
// original context (and its overall deadline) continues to bound the
// whole conversation at the call site.
func (oc *OperationContext) StartMaintenanceDeadline(now time.Time, d time.Duration) *OperationContext {
	return oc.WithTimeout(TimeoutContext{Deadline: now.Add(d), MinRTT: oc.Timeout.MinRTT})
}
