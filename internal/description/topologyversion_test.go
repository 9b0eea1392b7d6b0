// SPDX-License-Identifier: GPL-3.0-or-later

package description

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopologyVersionNewerSameProcess(t *testing.T) {
	v1 := TopologyVersion{ProcessID: "p", Counter: 1, Valid: true}
	v2 := TopologyVersion{ProcessID: "p", Counter: 2, Valid: true}

	require.True(t, v2.Newer(v1))
	require.False(t, v1.Newer(v2))
	require.True(t, v2.NewerOrEqual(v1))
	require.True(t, v1.NewerOrEqual(v1))
}

func TestTopologyVersionDifferentProcessIncomparable(t *testing.T) {
	v1 := TopologyVersion{ProcessID: "a", Counter: 5, Valid: true}
	v2 := TopologyVersion{ProcessID: "b", Counter: 1, Valid: true}

	require.False(t, v1.Newer(v2))
	require.False(t, v2.Newer(v1))
	require.False(t, v1.NewerOrEqual(v2))
}

func TestTopologyVersionInvalidNeverNewer(t *testing.T) {
	var zero TopologyVersion
	v := TopologyVersion{ProcessID: "p", Counter: 1, Valid: true}
	require.False(t, v.Newer(zero))
	require.False(t, zero.Newer(v))
}
