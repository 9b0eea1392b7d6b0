// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.4.2 OIDC three-phase fallback. Token-provider
// plumbing wired per SPEC_FULL.md §2.B from nabbar-golib's
// golang.org/x/oauth2 usage: callbacks return an [oauth2.Token]-shaped
// pair of access/refresh tokens and an expiry, and the credential cache
// uses a reader-writer lock the way a shared oauth2.TokenSource would be
// guarded against concurrent refreshes.

// Package oidc implements the three-phase OIDC authentication fallback
// state machine (§4.4.2): cached access token, refresh, then a full
// request round, each gated behind a reader-writer-locked credential
// cache and an allowed-hosts check before any callback runs.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// callbackTimeout is the fixed deadline applied to refresh/request
// callbacks (§4.4.2: "invoke the callback with a 5-minute deadline").
const callbackTimeout = 5 * time.Minute

// IdentityProviderInfo is the server-supplied challenge identifying which
// identity provider to use, delivered in Phase 3a's response.
type IdentityProviderInfo struct {
	Issuer   string
	ClientID string
}

// RefreshCallback exchanges a cached refresh token for a fresh token pair.
type RefreshCallback func(ctx context.Context, info IdentityProviderInfo, refreshToken string) (*oauth2.Token, error)

// RequestCallback performs an interactive/device-flow token request given
// identity-provider info.
type RequestCallback func(ctx context.Context, info IdentityProviderInfo) (*oauth2.Token, error)

// AutomaticProvider reads a token directly (e.g. a web-identity token
// file named by an environment variable), bypassing callbacks entirely.
type AutomaticProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// CacheEntry holds per-credential OIDC state: cached tokens and, once
// learned, the identity-provider info from a Phase 3a round.
type CacheEntry struct {
	AccessToken  string
	AccessExpiry time.Time
	RefreshToken string

	IDPInfo    IdentityProviderInfo
	HasIDPInfo bool
}

func (e *CacheEntry) accessTokenValid(now time.Time) bool {
	return e.AccessToken != "" && now.Before(e.AccessExpiry)
}

// Cache guards a set of [CacheEntry] values behind a single
// reader-writer lock. [Engine.Authenticate] holds the lock only while
// reading or writing cache state; it releases it before invoking a
// refresh/request callback so concurrent authentication attempts for the
// same credential race into the same [singleflight.Group] key instead of
// queueing on the lock (§4.4.2).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewCache returns an empty [*Cache].
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*CacheEntry)}
}

func (c *Cache) entry(key string) *CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &CacheEntry{}
		c.entries[key] = e
	}
	return e
}

// AllowedHosts validates callback-triggering server addresses against a
// pattern list supporting literal matches and a leading "*." wildcard
// (§4.4.2).
type AllowedHosts []string

// ErrHostNotAllowed is returned by [AllowedHosts.Check] when no pattern
// matches.
var ErrHostNotAllowed = errors.New("oidc: server address is not in the allowed-hosts list")

// Check validates host against the pattern list. A pattern with a
// wildcard anywhere other than a leading "*." is a configuration error.
func (hosts AllowedHosts) Check(host string) error {
	for _, pattern := range hosts {
		if strings.Count(pattern, "*") > 1 || (strings.Contains(pattern, "*") && !strings.HasPrefix(pattern, "*.")) {
			return fmt.Errorf("oidc: invalid allowed-hosts pattern %q: wildcards are only permitted as a leading \"*.\"", pattern)
		}
		if pattern == host {
			return nil
		}
		if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) || host == suffix {
				return nil
			}
		}
	}
	return ErrHostNotAllowed
}

// authFailedCode is the server error code signaling an authentication
// failure, used to decide whether to clear cached tokens and fall back
// (§4.4.2).
const authFailedCode = 18

// CommandError is implemented by the caller's server-response error type
// so this package can detect authFailedCode without depending on a
// concrete wire-error type.
type CommandError interface {
	error
	Code() int32
}

// Engine drives the three-phase OIDC fallback for one credential.
type Engine struct {
	Cache             *Cache
	CacheKey          string
	AllowedHosts      AllowedHosts
	Automatic         AutomaticProvider
	Refresh           RefreshCallback
	Request           RequestCallback
	Username          string // empty for automatic/workload credentials
	now               func() time.Time
	group             singleflight.Group
}

// NewEngine returns an [*Engine]. now defaults to [time.Now].
func NewEngine(cache *Cache, cacheKey string, allowed AllowedHosts) *Engine {
	return &Engine{Cache: cache, CacheKey: cacheKey, AllowedHosts: allowed, now: time.Now}
}

// Authenticate runs the OIDC fallback to produce the JWT to send as the
// saslStart/saslContinue payload. challengeIDPInfo, when non-nil, is the
// identity-provider info the server returned in response to a prior
// Phase 3a probe.
func (e *Engine) Authenticate(ctx context.Context, host string, challengeIDPInfo *IdentityProviderInfo) (jwt string, needsPhase3a bool, err error) {
	if err := e.AllowedHosts.Check(host); err != nil {
		return "", false, err
	}

	entry := e.Cache.entry(e.CacheKey)

	e.Cache.mu.Lock()
	now := e.nowFunc()

	// Automatic providers bypass the cache/callback fallback entirely.
	if e.Automatic != nil {
		e.Cache.mu.Unlock()
		tok, err := e.Automatic.Token(ctx)
		if err != nil {
			return "", false, fmt.Errorf("oidc: automatic provider failed: %w", err)
		}
		return tok.AccessToken, false, nil
	}

	// Phase 1: cached access token.
	if entry.accessTokenValid(now) {
		accessToken := entry.AccessToken
		e.Cache.mu.Unlock()
		return accessToken, false, nil
	}

	// Phase 2: refresh. The lock is released before the callback runs, so
	// concurrent Authenticate calls for this credential race into the same
	// singleflight key: only one actually calls Refresh, and every caller
	// observes its result.
	if e.Refresh != nil && entry.RefreshToken != "" {
		idpInfo, refreshToken := entry.IDPInfo, entry.RefreshToken
		e.Cache.mu.Unlock()

		cctx, cancel := context.WithTimeout(ctx, callbackTimeout)
		tokAny, err, _ := e.group.Do(e.CacheKey+":refresh", func() (any, error) {
			return e.Refresh(cctx, idpInfo, refreshToken)
		})
		cancel()

		e.Cache.mu.Lock()
		if err == nil {
			tok := tokAny.(*oauth2.Token)
			e.storeToken(entry, tok)
			accessToken := entry.AccessToken
			e.Cache.mu.Unlock()
			return accessToken, false, nil
		}
		entry.AccessToken = ""
		entry.RefreshToken = ""
	}

	// Phase 3: request.
	if challengeIDPInfo == nil {
		if !entry.HasIDPInfo {
			e.Cache.mu.Unlock()
			return "", true, nil // Phase 3a: ask the server for idp info
		}
		challengeIDPInfo = &entry.IDPInfo
	} else {
		entry.IDPInfo = *challengeIDPInfo
		entry.HasIDPInfo = true
	}

	if e.Request == nil {
		e.Cache.mu.Unlock()
		return "", false, errors.New("oidc: no request callback configured and no cached token available")
	}
	idpInfo := *challengeIDPInfo
	e.Cache.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, callbackTimeout)
	tokAny, err, _ := e.group.Do(e.CacheKey+":request", func() (any, error) {
		return e.Request(cctx, idpInfo)
	})
	cancel()
	if err != nil {
		return "", false, fmt.Errorf("oidc: request callback failed: %w", err)
	}
	tok := tokAny.(*oauth2.Token)

	e.Cache.mu.Lock()
	e.storeToken(entry, tok)
	accessToken := entry.AccessToken
	e.Cache.mu.Unlock()
	return accessToken, false, nil
}

func (e *Engine) storeToken(entry *CacheEntry, tok *oauth2.Token) {
	entry.AccessToken = tok.AccessToken
	entry.AccessExpiry = tok.Expiry
	if tok.RefreshToken != "" {
		entry.RefreshToken = tok.RefreshToken
	}
}

func (e *Engine) nowFunc() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// OnAuthFailure applies the §4.4.2 error-code-18 fallback rule: clear the
// cached access token (Phase 1 failure) or both tokens (Phase 2 failure),
// depending on which phase was attempted.
func (e *Engine) OnAuthFailure(err error, wasRefreshPhase bool) {
	var cmdErr CommandError
	if !errors.As(err, &cmdErr) || cmdErr.Code() != authFailedCode {
		return
	}
	entry := e.Cache.entry(e.CacheKey)
	e.Cache.mu.Lock()
	defer e.Cache.mu.Unlock()
	entry.AccessToken = ""
	if wasRefreshPhase {
		entry.RefreshToken = ""
	}
}

// SpeculativeDocument returns the document to embed under
// "speculativeAuthenticate" (§4.4.3 combined with §4.4.2's speculative
// rule): a cached access token if valid, a username-only probe if no idp
// info is cached and no automatic provider is configured, or nothing.
func (e *Engine) SpeculativeDocument() (jwt string, usernameOnly bool, ok bool) {
	entry := e.Cache.entry(e.CacheKey)
	e.Cache.mu.RLock()
	defer e.Cache.mu.RUnlock()

	if entry.accessTokenValid(e.nowFunc()) {
		return entry.AccessToken, false, true
	}
	if !entry.HasIDPInfo && e.Automatic == nil {
		return "", true, true
	}
	return "", false, false
}

// ResetFallbackState clears a credential's cached idp info and tokens,
// used by reauthentication to force phase 3 from the beginning (§4.4.2:
// "reauthentication ... always resets the fallback state").
func (e *Engine) ResetFallbackState() {
	e.Cache.mu.Lock()
	defer e.Cache.mu.Unlock()
	e.Cache.entries[e.CacheKey] = &CacheEntry{}
}
