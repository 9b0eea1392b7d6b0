// SPDX-License-Identifier: GPL-3.0-or-later

package driverutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bassosimone/dbconncore/internal/address"
	"github.com/bassosimone/dbconncore/internal/description"
)

func TestNextOperationIDIsMonotonic(t *testing.T) {
	a := NextOperationID()
	b := NextOperationID()
	require.Less(t, a, b)
}

func TestDeprioritizationFilterOnlyAppliesWhenSharded(t *testing.T) {
	d := NewDeprioritization()
	bad := address.New("bad", "27017")
	good := address.New("good", "27017")
	d.SetCandidate(bad)
	d.OnAttemptFailure(false)

	candidates := []address.Address{bad, good}
	require.Equal(t, candidates, d.Filter(description.ReplicaSetWithPrimary, candidates))
	require.Equal(t, []address.Address{good}, d.Filter(description.Sharded, candidates))
}

func TestDeprioritizationFilterFallsBackWhenFilteringWouldEmptyList(t *testing.T) {
	d := NewDeprioritization()
	only := address.New("only", "27017")
	d.SetCandidate(only)
	d.OnAttemptFailure(false)

	candidates := []address.Address{only}
	require.Equal(t, candidates, d.Filter(description.Sharded, candidates))
}

func TestDeprioritizationOnAttemptFailurePoolClearedDoesNotDeprioritize(t *testing.T) {
	d := NewDeprioritization()
	addr := address.New("host", "27017")
	d.SetCandidate(addr)
	d.OnAttemptFailure(true)

	require.Equal(t, []address.Address{addr}, d.Filter(description.Sharded, []address.Address{addr}))
}

func TestDeprioritizationOnAttemptFailureNoCandidateIsNoop(t *testing.T) {
	d := NewDeprioritization()
	d.OnAttemptFailure(false) // must not panic
}

func TestTimeoutContextInfiniteAndRemaining(t *testing.T) {
	var tc TimeoutContext
	require.True(t, tc.Infinite())
	require.Greater(t, tc.Remaining(time.Now()), time.Hour*24*365)

	deadline := time.Now().Add(5 * time.Second)
	tc = TimeoutContext{Deadline: deadline}
	require.False(t, tc.Infinite())
	require.InDelta(t, 5*time.Second, tc.Remaining(deadline.Add(-5*time.Second)), float64(50*time.Millisecond))
}

func TestOperationContextWithTimeoutPreservesIdentity(t *testing.T) {
	oc := NewOperationContext(SessionContext{}, TimeoutContext{})
	derived := oc.WithTimeout(TimeoutContext{Deadline: time.Now().Add(time.Second)})

	require.Equal(t, oc.OperationID, derived.OperationID)
	require.Same(t, oc.Deprioritization, derived.Deprioritization)
	require.NotEqual(t, oc.Timeout, derived.Timeout)
}

func TestOperationContextStartMaintenanceDeadline(t *testing.T) {
	oc := NewOperationContext(SessionContext{}, TimeoutContext{MinRTT: 10 * time.Millisecond})
	now := time.Now()
	derived := oc.StartMaintenanceDeadline(now, time.Second)

	require.Equal(t, now.Add(time.Second), derived.Timeout.Deadline)
	require.Equal(t, 10*time.Millisecond, derived.Timeout.MinRTT)
	require.Equal(t, oc.OperationID, derived.OperationID)
}
