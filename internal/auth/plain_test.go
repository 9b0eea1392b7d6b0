// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainClientProducesInitialResponse(t *testing.T) {
	c := NewPlainClient(Credential{Username: "user", Password: "pw"})
	require.True(t, c.HasInitialResponse())

	payload, err := c.Next(nil)
	require.NoError(t, err)
	require.Equal(t, "\x00user\x00pw", string(payload))
	require.True(t, c.Complete())
}

func TestPlainClientRejectsSecondRound(t *testing.T) {
	c := NewPlainClient(Credential{Username: "user", Password: "pw"})
	_, err := c.Next(nil)
	require.NoError(t, err)

	_, err = c.Next(nil)
	require.Error(t, err)
}

func TestPlainClientDisposeClearsPassword(t *testing.T) {
	c := NewPlainClient(Credential{Username: "user", Password: "pw"})
	c.Dispose()
	require.Empty(t, c.password)
}
