// SPDX-License-Identifier: GPL-3.0-or-later

package description

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterTypeString(t *testing.T) {
	require.Equal(t, "ReplicaSetWithPrimary", ReplicaSetWithPrimary.String())
	require.Equal(t, "LoadBalanced", LoadBalancedCluster.String())
	require.Equal(t, "Unknown", ClusterType(99).String())
}

func TestClusterStringDelegatesToType(t *testing.T) {
	c := Cluster{Type: Sharded}
	require.Equal(t, "Sharded", c.String())
}
