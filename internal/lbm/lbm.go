// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.6 Load-balanced topology controller and §5's
// fair-lock/wait-queue/handler-thread concurrency model. The exactly-once
// waiter resolution pattern (sync.Once guarding a callback fired from
// either the handler goroutine, initialization, close, or local deadline
// expiry) is adapted from bassosimone-nop's cancelwatch.go, which uses the
// same "exactly one disposal path wins" idea for context-driven connection
// closing.

// Package lbm implements the single-server-behind-a-load-balancer
// topology controller: SRV-resolution gating, a fair FIFO wait queue for
// server selection before initialization completes, and idempotent close
// (§4.6).
package lbm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bassosimone/dbconncore/internal/address"
	"github.com/bassosimone/dbconncore/internal/description"
)

// SRVTarget is one resolved SRV record: host and port of a candidate
// mongos/load-balancer endpoint.
type SRVTarget struct {
	Host string
	Port uint16
}

// SRVResolver starts background SRV resolution and reports every attempt
// (success or failure) to onUpdate until Stop is called. Production
// callers back this with periodic github.com/miekg/dns SRV lookups; tests
// supply a fake that calls onUpdate directly.
type SRVResolver interface {
	Start(onUpdate func(targets []SRVTarget, err error))
	Stop()
}

// Events receives the topology notifications a caller may want to log or
// forward to an application-visible event stream (§8 scenario 1: "two
// description-changed events and one opening event").
type Events interface {
	Opening()
	DescriptionChanged()
	Closed()
}

type noopEvents struct{}

func (noopEvents) Opening()            {}
func (noopEvents) DescriptionChanged() {}
func (noopEvents) Closed()             {}

// ConfigurationError reports a fixed, non-retriable controller
// misconfiguration (§4.6: SRV resolved to more than one host).
type ConfigurationError struct{ msg string }

func (e *ConfigurationError) Error() string { return "lbm: configuration error: " + e.msg }

// ShutdownError is returned to any selection in flight when the
// controller is closed.
type ShutdownError struct{}

func (*ShutdownError) Error() string { return "lbm: controller is closed" }

// TimeoutError is returned when a selection's deadline is reached while
// the controller is still pre-initialized, optionally carrying the most
// recent SRV resolution failure.
type TimeoutError struct {
	Host         string
	LastSRVError error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("lbm: timed out waiting for SRV resolution of %q", e.Host)
	if e.LastSRVError != nil {
		msg += fmt.Sprintf(" (last SRV error: %q)", e.LastSRVError.Error())
	}
	return msg
}

// InterruptedError wraps a context cancellation observed while waiting.
type InterruptedError struct{ Cause error }

func (e *InterruptedError) Error() string  { return "lbm: interrupted: " + e.Cause.Error() }
func (e *InterruptedError) Unwrap() error  { return e.Cause }

type state int

const (
	statePreInitialized state = iota
	stateInitialized
	statePoisoned
	stateClosed
)

// waiterEntry is one enqueued selection request. resolve fires exactly
// once regardless of which of the handler, initialization, Close, or a
// local context cancellation observes it first.
type waiterEntry struct {
	deadline time.Time
	once     sync.Once
	fire     func(*description.Server, error)
}

func (w *waiterEntry) resolve(s *description.Server, err error) {
	w.once.Do(func() { w.fire(s, err) })
}

// Controller is the load-balanced topology controller described in §4.6.
type Controller struct {
	host     string
	resolver SRVResolver
	events   Events
	pub      *description.Publisher

	mu             sync.Mutex
	st             state
	server         description.Server
	lastSRVErr     error
	queue          []*waiterEntry
	handlerStarted bool
	wake           chan struct{}
	stop           chan struct{}
	stopOnce       sync.Once
}

// NewController constructs the controller. If srvHost is empty, the
// controller synthesizes a CONNECTED load-balancer server description for
// staticTarget immediately (§4.6 "otherwise synthesize ... immediately");
// otherwise staticTarget is ignored, resolver is started, and the
// controller begins in the pre-initialized state.
func NewController(srvHost string, staticTarget SRVTarget, resolver SRVResolver, events Events) *Controller {
	if events == nil {
		events = noopEvents{}
	}
	c := &Controller{
		host:     srvHost,
		resolver: resolver,
		events:   events,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}

	if srvHost == "" {
		addr := address.New(staticTarget.Host, fmt.Sprintf("%d", staticTarget.Port))
		server := description.Server{Addr: addr, Type: description.LoadBalancer, State: description.Connected, Ok: true}
		c.st = stateInitialized
		c.server = server
		c.pub = description.NewPublisher(server)
		c.events.Opening()
		c.events.DescriptionChanged()
		return c
	}

	c.st = statePreInitialized
	c.pub = description.NewPublisher(description.NewDefaultServer(address.New(srvHost, "")))
	c.events.Opening()
	resolver.Start(c.onSRVUpdate)
	return c
}

func (c *Controller) wakeHandler() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Controller) onSRVUpdate(targets []SRVTarget, err error) {
	c.mu.Lock()
	if c.st != statePreInitialized {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.lastSRVErr = err
		c.mu.Unlock()
		return
	}

	var server description.Server
	var poisonErr error
	switch len(targets) {
	case 1:
		addr := address.New(targets[0].Host, fmt.Sprintf("%d", targets[0].Port))
		server = description.Server{Addr: addr, Type: description.LoadBalancer, State: description.Connected, Ok: true}
		c.st = stateInitialized
		c.server = server
	default:
		poisonErr = &ConfigurationError{msg: "SRV resolution returned more than one host in load-balanced mode"}
		c.st = statePoisoned
	}

	drained := c.queue
	c.queue = nil
	c.mu.Unlock()

	if poisonErr == nil {
		c.pub.Publish(server)
		c.events.DescriptionChanged()
	}

	for _, w := range drained {
		if poisonErr != nil {
			w.resolve(nil, poisonErr)
		} else {
			srv := server
			w.resolve(&srv, nil)
		}
	}
	c.wakeHandler()
}

// enqueue dispatches inline if already decided, otherwise appends to the
// fair FIFO wait queue and lazily starts the handler goroutine.
func (c *Controller) enqueue(deadline time.Time, fire func(*description.Server, error)) {
	entry := &waiterEntry{deadline: deadline, fire: fire}

	c.mu.Lock()
	switch c.st {
	case stateClosed:
		c.mu.Unlock()
		entry.resolve(nil, &ShutdownError{})
		return
	case stateInitialized:
		srv := c.server
		c.mu.Unlock()
		entry.resolve(&srv, nil)
		return
	case statePoisoned:
		c.mu.Unlock()
		entry.resolve(nil, &ConfigurationError{msg: "SRV resolution returned more than one host in load-balanced mode"})
		return
	default:
		c.queue = append(c.queue, entry)
		if !c.handlerStarted {
			c.handlerStarted = true
			go c.runHandler()
		}
		c.mu.Unlock()
	}
}

// SelectServer is the blocking selection form (§4.6).
func (c *Controller) SelectServer(ctx context.Context) (*description.Server, error) {
	resultCh := make(chan struct {
		server *description.Server
		err    error
	}, 1)

	var deadline time.Time
	if dl, ok := ctx.Deadline(); ok {
		deadline = dl
	}

	var entry *waiterEntry
	fire := func(s *description.Server, err error) {
		resultCh <- struct {
			server *description.Server
			err    error
		}{s, err}
	}

	c.mu.Lock()
	switch c.st {
	case stateClosed:
		c.mu.Unlock()
		return nil, &ShutdownError{}
	case stateInitialized:
		srv := c.server
		c.mu.Unlock()
		return &srv, nil
	case statePoisoned:
		c.mu.Unlock()
		return nil, &ConfigurationError{msg: "SRV resolution returned more than one host in load-balanced mode"}
	default:
		entry = &waiterEntry{deadline: deadline, fire: fire}
		c.queue = append(c.queue, entry)
		if !c.handlerStarted {
			c.handlerStarted = true
			go c.runHandler()
		}
		c.mu.Unlock()
	}

	select {
	case res := <-resultCh:
		return res.server, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			entry.resolve(nil, c.timeoutError())
		} else {
			entry.resolve(nil, &InterruptedError{Cause: ctx.Err()})
		}
		select {
		case res := <-resultCh:
			return res.server, res.err
		default:
			return nil, ctx.Err()
		}
	}
}

func (c *Controller) timeoutError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return &TimeoutError{Host: c.host, LastSRVError: c.lastSRVErr}
}

// SelectServerAsync is the callback selection form (§4.6): dispatched
// inline when already initialized, otherwise enqueued on the shared wait
// queue and resolved by the handler goroutine.
func (c *Controller) SelectServerAsync(deadline time.Time, callback func(*description.Server, error)) {
	c.enqueue(deadline, callback)
}

// runHandler is the single dedicated handler goroutine (§4.6): it wakes
// on enqueue/close/init, expires timed-out entries outside the lock, and
// re-sleeps until the next earliest deadline.
func (c *Controller) runHandler() {
	for {
		c.mu.Lock()
		now := time.Now()
		var expired, remaining []*waiterEntry
		var next time.Time
		for _, e := range c.queue {
			if !e.deadline.IsZero() && !now.Before(e.deadline) {
				expired = append(expired, e)
				continue
			}
			remaining = append(remaining, e)
			if !e.deadline.IsZero() && (next.IsZero() || e.deadline.Before(next)) {
				next = e.deadline
			}
		}
		c.queue = remaining
		closed := c.st == stateClosed
		c.mu.Unlock()

		for _, e := range expired {
			e.resolve(nil, c.timeoutError())
		}

		if closed {
			return
		}

		if len(remaining) == 0 {
			select {
			case <-c.wake:
			case <-c.stop:
				return
			}
			continue
		}

		if next.IsZero() {
			select {
			case <-c.wake:
			case <-c.stop:
				return
			}
			continue
		}

		d := time.Until(next)
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-c.wake:
			timer.Stop()
		case <-c.stop:
			timer.Stop()
			return
		}
	}
}

// Close idempotently shuts down the controller, draining any waiters with
// a shutdown error (§4.6).
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.st == stateClosed {
		c.mu.Unlock()
		return nil
	}
	c.st = stateClosed
	drained := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, w := range drained {
		w.resolve(nil, &ShutdownError{})
	}

	if c.resolver != nil {
		c.resolver.Stop()
	}
	c.stopOnce.Do(func() { close(c.stop) })
	c.pub.Close()
	c.events.Closed()
	return nil
}
