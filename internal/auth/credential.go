// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §3 (authentication credential + cache) and
// nabbar-golib's use of github.com/hashicorp/golang-lru for bounded
// general-purpose caches, adapted here to key cached SCRAM key material by
// (hashed password, salt, iterations) so repeated authentications
// against the same server skip PBKDF2 (§4.4.2).

package auth

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Credential identifies a principal and secret for a single mechanism.
type Credential struct {
	Source   string // authentication database, e.g. "admin"
	Username string
	Password string

	// Mechanism overrides auto-selection; empty means "negotiate via
	// saslSupportedMechs" (§4.7).
	Mechanism string
}

// ScramKeyMaterial is the derived key material SCRAM caches to avoid
// repeating PBKDF2 across authentications against the same server.
type ScramKeyMaterial struct {
	ClientKey []byte
	ServerKey []byte
}

// scramCacheKey identifies one cache entry: salted-password derivation is
// keyed by the inputs that determine it.
type scramCacheKey struct {
	hashedPasswordAndSalt string
	salt                  string
	iterations            int
}

const defaultCredentialCacheSize = 256

// CredentialCache caches derived SCRAM key material across authentication
// attempts, bounded to avoid unbounded growth across many distinct
// servers/users (§2.B: "bounded LRU used by the per-credential general
// cache").
type CredentialCache struct {
	lru *lru.Cache[scramCacheKey, ScramKeyMaterial]
}

// NewCredentialCache returns a [*CredentialCache] bounded to size entries
// (defaultCredentialCacheSize if size <= 0).
func NewCredentialCache(size int) *CredentialCache {
	if size <= 0 {
		size = defaultCredentialCacheSize
	}
	c, _ := lru.New[scramCacheKey, ScramKeyMaterial](size)
	return &CredentialCache{lru: c}
}

// Get returns cached key material for (hashedPasswordAndSalt, salt,
// iterations), if present. Satisfies scram.KeyCache structurally so the
// scram package never imports auth (avoiding an import cycle, since auth
// constructs scram clients).
func (c *CredentialCache) Get(hashedPasswordAndSalt, salt string, iterations int) (clientKey, serverKey []byte, ok bool) {
	m, ok := c.lru.Get(scramCacheKey{hashedPasswordAndSalt, salt, iterations})
	if !ok {
		return nil, nil, false
	}
	return m.ClientKey, m.ServerKey, true
}

// Put stores derived key material for later reuse.
func (c *CredentialCache) Put(hashedPasswordAndSalt, salt string, iterations int, clientKey, serverKey []byte) {
	c.lru.Add(scramCacheKey{hashedPasswordAndSalt, salt, iterations}, ScramKeyMaterial{ClientKey: clientKey, ServerKey: serverKey})
}
