// SPDX-License-Identifier: GPL-3.0-or-later

package oidc

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type codedErr struct{ code int32 }

func (e *codedErr) Error() string { return "auth failed" }
func (e *codedErr) Code() int32   { return e.code }

func TestAllowedHostsLiteralAndWildcard(t *testing.T) {
	hosts := AllowedHosts{"db.example.com", "*.cluster0.mongodb.net"}
	require.NoError(t, hosts.Check("db.example.com"))
	require.NoError(t, hosts.Check("shard-00.cluster0.mongodb.net"))
	require.NoError(t, hosts.Check("cluster0.mongodb.net"))
	require.ErrorIs(t, hosts.Check("evil.com"), ErrHostNotAllowed)
}

func TestAllowedHostsRejectsMidPatternWildcard(t *testing.T) {
	hosts := AllowedHosts{"db.*.example.com"}
	err := hosts.Check("db.x.example.com")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrHostNotAllowed)
}

func TestEnginePhase1UsesCachedAccessToken(t *testing.T) {
	cache := NewCache()
	fixedNow := time.Now()
	e := NewEngine(cache, "key1", nil)
	e.now = func() time.Time { return fixedNow }

	entry := cache.entry("key1")
	entry.AccessToken = "cached-token"
	entry.AccessExpiry = fixedNow.Add(time.Hour)

	jwt, needsPhase3a, err := e.Authenticate(context.Background(), "db.example.com", nil)
	require.NoError(t, err)
	require.False(t, needsPhase3a)
	require.Equal(t, "cached-token", jwt)
}

func TestEngineRejectsDisallowedHost(t *testing.T) {
	e := NewEngine(NewCache(), "key1", AllowedHosts{"ok.example.com"})
	_, _, err := e.Authenticate(context.Background(), "bad.example.com", nil)
	require.ErrorIs(t, err, ErrHostNotAllowed)
}

func TestEngineFallsBackToPhase3aWhenNoIDPInfoCached(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	jwt, needsPhase3a, err := e.Authenticate(context.Background(), "db.example.com", nil)
	require.NoError(t, err)
	require.True(t, needsPhase3a)
	require.Empty(t, jwt)
}

func TestEnginePhase3RequestsTokenGivenIDPInfo(t *testing.T) {
	called := false
	e := NewEngine(NewCache(), "key1", nil)
	e.Request = func(ctx context.Context, info IdentityProviderInfo) (*oauth2.Token, error) {
		called = true
		require.Equal(t, "https://issuer.example.com", info.Issuer)
		return &oauth2.Token{AccessToken: "fresh-token", Expiry: time.Now().Add(time.Hour)}, nil
	}

	info := &IdentityProviderInfo{Issuer: "https://issuer.example.com", ClientID: "client1"}
	jwt, needsPhase3a, err := e.Authenticate(context.Background(), "db.example.com", info)
	require.NoError(t, err)
	require.False(t, needsPhase3a)
	require.True(t, called)
	require.Equal(t, "fresh-token", jwt)
}

func TestEnginePhase2RefreshPreferredOverPhase3(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	entry := e.Cache.entry("key1")
	entry.RefreshToken = "refresh-tok"
	entry.IDPInfo = IdentityProviderInfo{Issuer: "https://issuer.example.com"}
	entry.HasIDPInfo = true

	requestCalled := false
	e.Request = func(ctx context.Context, info IdentityProviderInfo) (*oauth2.Token, error) {
		requestCalled = true
		return &oauth2.Token{AccessToken: "from-request"}, nil
	}
	e.Refresh = func(ctx context.Context, info IdentityProviderInfo, refreshToken string) (*oauth2.Token, error) {
		require.Equal(t, "refresh-tok", refreshToken)
		return &oauth2.Token{AccessToken: "from-refresh", Expiry: time.Now().Add(time.Hour)}, nil
	}

	jwt, _, err := e.Authenticate(context.Background(), "db.example.com", nil)
	require.NoError(t, err)
	require.Equal(t, "from-refresh", jwt)
	require.False(t, requestCalled)
}

func TestEngineRefreshFailureFallsThroughToRequest(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	entry := e.Cache.entry("key1")
	entry.RefreshToken = "stale-refresh"
	entry.IDPInfo = IdentityProviderInfo{Issuer: "https://issuer.example.com"}
	entry.HasIDPInfo = true

	e.Refresh = func(ctx context.Context, info IdentityProviderInfo, refreshToken string) (*oauth2.Token, error) {
		return nil, errBoom
	}
	e.Request = func(ctx context.Context, info IdentityProviderInfo) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "recovered"}, nil
	}

	jwt, _, err := e.Authenticate(context.Background(), "db.example.com", nil)
	require.NoError(t, err)
	require.Equal(t, "recovered", jwt)
}

func TestAutomaticProviderBypassesCacheAndCallbacks(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	e.Automatic = automaticStub{token: "workload-token"}
	e.Request = func(ctx context.Context, info IdentityProviderInfo) (*oauth2.Token, error) {
		t.Fatal("request callback must not be invoked when an automatic provider is configured")
		return nil, nil
	}

	jwt, needsPhase3a, err := e.Authenticate(context.Background(), "db.example.com", nil)
	require.NoError(t, err)
	require.False(t, needsPhase3a)
	require.Equal(t, "workload-token", jwt)
}

func TestOnAuthFailureClearsAccessTokenOnCode18(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	entry := e.Cache.entry("key1")
	entry.AccessToken = "stale"
	entry.RefreshToken = "keep-me"

	e.OnAuthFailure(&codedErr{code: authFailedCode}, false)

	require.Empty(t, entry.AccessToken)
	require.Equal(t, "keep-me", entry.RefreshToken)
}

func TestOnAuthFailureClearsRefreshTokenWhenRefreshPhaseFailed(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	entry := e.Cache.entry("key1")
	entry.RefreshToken = "stale-refresh"

	e.OnAuthFailure(&codedErr{code: authFailedCode}, true)

	require.Empty(t, entry.RefreshToken)
}

func TestOnAuthFailureIgnoresUnrelatedErrorCodes(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	entry := e.Cache.entry("key1")
	entry.AccessToken = "keep"

	e.OnAuthFailure(&codedErr{code: 1}, false)

	require.Equal(t, "keep", entry.AccessToken)
}

func TestSpeculativeDocumentReturnsCachedToken(t *testing.T) {
	fixedNow := time.Now()
	e := NewEngine(NewCache(), "key1", nil)
	e.now = func() time.Time { return fixedNow }
	entry := e.Cache.entry("key1")
	entry.AccessToken = "cached"
	entry.AccessExpiry = fixedNow.Add(time.Minute)

	jwt, usernameOnly, ok := e.SpeculativeDocument()
	require.True(t, ok)
	require.False(t, usernameOnly)
	require.Equal(t, "cached", jwt)
}

func TestSpeculativeDocumentProbesUsernameOnlyWithNoCachedState(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	_, usernameOnly, ok := e.SpeculativeDocument()
	require.True(t, ok)
	require.True(t, usernameOnly)
}

func TestResetFallbackStateClearsCachedIDPInfo(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)
	entry := e.Cache.entry("key1")
	entry.HasIDPInfo = true
	entry.AccessToken = "tok"

	e.ResetFallbackState()

	fresh := e.Cache.entry("key1")
	require.False(t, fresh.HasIDPInfo)
	require.Empty(t, fresh.AccessToken)
}

func TestEngineSingleflightCollapsesConcurrentRequests(t *testing.T) {
	e := NewEngine(NewCache(), "key1", nil)

	var calls atomic.Int32
	release := make(chan struct{})
	e.Request = func(ctx context.Context, info IdentityProviderInfo) (*oauth2.Token, error) {
		calls.Add(1)
		<-release
		return &oauth2.Token{AccessToken: "shared-token", Expiry: time.Now().Add(time.Hour)}, nil
	}

	info := &IdentityProviderInfo{Issuer: "https://issuer.example.com"}
	const concurrency = 8
	var wg sync.WaitGroup
	results := make([]string, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jwt, _, err := e.Authenticate(context.Background(), "db.example.com", info)
			require.NoError(t, err)
			results[i] = jwt
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, jwt := range results {
		require.Equal(t, "shared-token", jwt)
	}
}

type automaticStub struct{ token string }

func (a automaticStub) Token(ctx context.Context) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: a.token}, nil
}

var errBoom = boomErr{}

type boomErr struct{}

func (boomErr) Error() string { return "boom" }
