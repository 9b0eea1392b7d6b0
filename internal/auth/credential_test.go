// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCredentialCacheMissThenHit(t *testing.T) {
	c := NewCredentialCache(4)

	_, _, ok := c.Get("hp", "salt", 4096)
	require.False(t, ok)

	c.Put("hp", "salt", 4096, []byte("client-key"), []byte("server-key"))

	ck, sk, ok := c.Get("hp", "salt", 4096)
	require.True(t, ok)
	require.Equal(t, []byte("client-key"), ck)
	require.Equal(t, []byte("server-key"), sk)
}

func TestCredentialCacheDistinguishesKeyComponents(t *testing.T) {
	c := NewCredentialCache(4)
	c.Put("hp", "salt1", 4096, []byte("a"), []byte("b"))

	_, _, ok := c.Get("hp", "salt2", 4096)
	require.False(t, ok)
	_, _, ok = c.Get("hp", "salt1", 8192)
	require.False(t, ok)
}

func TestCredentialCacheDefaultsSizeWhenNonPositive(t *testing.T) {
	c := NewCredentialCache(0)
	require.NotNil(t, c.lru)
}

func TestCredentialCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCredentialCache(1)
	c.Put("hp1", "salt", 4096, []byte("a"), []byte("a"))
	c.Put("hp2", "salt", 4096, []byte("b"), []byte("b"))

	_, _, ok := c.Get("hp1", "salt", 4096)
	require.False(t, ok)
	_, _, ok = c.Get("hp2", "salt", 4096)
	require.True(t, ok)
}
