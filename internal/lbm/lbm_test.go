// SPDX-License-Identifier: GPL-3.0-or-later

package lbm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bassosimone/dbconncore/internal/description"
)

// fakeResolver lets tests deliver a scripted SRV result after a delay, or
// never deliver one at all.
type fakeResolver struct {
	mu       sync.Mutex
	onUpdate func(targets []SRVTarget, err error)
	stopped  bool
}

func (r *fakeResolver) Start(onUpdate func(targets []SRVTarget, err error)) {
	r.mu.Lock()
	r.onUpdate = onUpdate
	r.mu.Unlock()
}

func (r *fakeResolver) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

func (r *fakeResolver) deliver(targets []SRVTarget, err error) {
	r.mu.Lock()
	cb := r.onUpdate
	r.mu.Unlock()
	if cb != nil {
		cb(targets, err)
	}
}

type countingEvents struct {
	mu                  sync.Mutex
	opened, changed, closed int
}

func (e *countingEvents) Opening()            { e.mu.Lock(); e.opened++; e.mu.Unlock() }
func (e *countingEvents) DescriptionChanged() { e.mu.Lock(); e.changed++; e.mu.Unlock() }
func (e *countingEvents) Closed()             { e.mu.Lock(); e.closed++; e.mu.Unlock() }

func (e *countingEvents) snapshot() (int, int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened, e.changed, e.closed
}

func TestNewControllerWithoutSRVSynthesizesConnectedServerImmediately(t *testing.T) {
	events := &countingEvents{}
	c := NewController("", SRVTarget{Host: "static-host", Port: 27017}, nil, events)
	defer c.Close()

	srv, err := c.SelectServer(context.Background())
	require.NoError(t, err)
	require.Equal(t, "static-host:27017", srv.Addr.String())

	opened, changed, _ := events.snapshot()
	require.Equal(t, 1, opened)
	require.Equal(t, 1, changed)
}

func TestSRVSingleHostInitializesAndResolvesWaiters(t *testing.T) {
	resolver := &fakeResolver{}
	events := &countingEvents{}
	c := NewController("srv.example", SRVTarget{}, resolver, events)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	go func() {
		time.AfterFunc(20*time.Millisecond, func() {
			resolver.deliver([]SRVTarget{{Host: "node-7", Port: 27017}}, nil)
		})
	}()

	srv, err := c.SelectServer(ctx)
	require.NoError(t, err)
	require.Equal(t, "node-7:27017", srv.Addr.String())

	opened, changed, _ := events.snapshot()
	require.Equal(t, 1, opened)
	require.Equal(t, 1, changed)
}

func TestSRVTimeoutCarriesLastResolutionError(t *testing.T) {
	resolver := &fakeResolver{}
	c := NewController("srv.timeout", SRVTarget{}, resolver, nil)
	defer c.Close()

	resolver.deliver(nil, errors.New("boom"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.SelectServer(ctx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "srv.timeout")
	require.Contains(t, err.Error(), "boom")
}

func TestSRVMultipleHostsPoisonsAllSelections(t *testing.T) {
	resolver := &fakeResolver{}
	c := NewController("srv.multi", SRVTarget{}, resolver, nil)
	defer c.Close()

	resolver.deliver([]SRVTarget{{Host: "a", Port: 1}, {Host: "b", Port: 2}}, nil)

	_, err := c.SelectServer(context.Background())
	require.Error(t, err)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)

	// A selection queued after poisoning also fails the same way.
	_, err = c.SelectServer(context.Background())
	require.ErrorAs(t, err, &cfgErr)
}

func TestQueuedWaitersBeforeInitAllResolveSuccessfully(t *testing.T) {
	resolver := &fakeResolver{}
	c := NewController("srv.example", SRVTarget{}, resolver, nil)
	defer c.Close()

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, errs[i] = c.SelectServer(ctx)
		}(i)
	}

	time.Sleep(10 * time.Millisecond)
	resolver.deliver([]SRVTarget{{Host: "node-1", Port: 27017}}, nil)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestSelectServerAsyncDispatchesInlineWhenAlreadyInitialized(t *testing.T) {
	c := NewController("", SRVTarget{Host: "h", Port: 1}, nil, nil)
	defer c.Close()

	called := false
	c.SelectServerAsync(time.Time{}, func(srv *description.Server, err error) {
		called = true
	})
	require.True(t, called)
}

func TestCloseIsIdempotentAndDrainsQueueWithShutdownError(t *testing.T) {
	resolver := &fakeResolver{}
	c := NewController("srv.example", SRVTarget{}, resolver, nil)

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, err := c.SelectServer(ctx)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	err := <-errCh
	require.Error(t, err)
	var shutdownErr *ShutdownError
	require.ErrorAs(t, err, &shutdownErr)
}

func TestSelectServerContextCancellationIsInterrupted(t *testing.T) {
	resolver := &fakeResolver{}
	c := NewController("srv.example", SRVTarget{}, resolver, nil)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.SelectServer(ctx)
		errCh <- err
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	err := <-errCh
	require.Error(t, err)
	var interrupted *InterruptedError
	require.ErrorAs(t, err, &interrupted)
}
