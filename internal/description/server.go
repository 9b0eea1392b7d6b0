// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §3 (Server description, Connection description) and
// the observability field naming in bassosimone-nop's connect.go/tls.go
// (localAddr/remoteAddr/protocol/t/t0 fields), cross-checked for shape
// against other_examples' mongo-go-driver topology/server.go description
// handling (reference only, not a teacher).

package description

import (
	"fmt"
	"sync"
	"time"

	"github.com/bassosimone/dbconncore/internal/address"
)

// ServerType enumerates the kinds a server description may report.
type ServerType int

const (
	Unknown ServerType = iota
	Standalone
	ReplicaSetPrimary
	ReplicaSetSecondary
	ReplicaSetArbiter
	ReplicaSetOther
	ReplicaSetGhost
	ShardRouter
	LoadBalancer
)

func (t ServerType) String() string {
	switch t {
	case Standalone:
		return "Standalone"
	case ReplicaSetPrimary:
		return "RSPrimary"
	case ReplicaSetSecondary:
		return "RSSecondary"
	case ReplicaSetArbiter:
		return "RSArbiter"
	case ReplicaSetOther:
		return "RSOther"
	case ReplicaSetGhost:
		return "RSGhost"
	case ShardRouter:
		return "Mongos"
	case LoadBalancer:
		return "LoadBalancer"
	default:
		return "Unknown"
	}
}

// ServerState enumerates the lifecycle of a monitored server.
type ServerState int

const (
	Connecting ServerState = iota
	Connected
	Disconnected
)

func (s ServerState) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// Server is an immutable description of a server as of its last handshake
// or heartbeat. A new description always replaces the previous one
// wholesale; never mutate a Server in place.
type Server struct {
	Addr            address.Address
	Type            ServerType
	State           ServerState
	TopologyVersion TopologyVersion
	MinRTT          time.Duration
	AverageRTT      time.Duration

	// Ok mirrors the greeting reply's "ok" field.
	Ok bool
	// Cryptd indicates the greeting reply carried "iscryptd": true.
	Cryptd bool
	// SessionsSupported indicates the server advertised logical sessions.
	SessionsSupported bool

	// LastError records the most recent error observed for this server,
	// if any (nil once a successful description replaces it).
	LastError error

	Tags map[string]string
}

// NewDefaultServer returns the zero-value description for a freshly added
// server: Unknown type, Connecting state.
func NewDefaultServer(addr address.Address) Server {
	return Server{Addr: addr, Type: Unknown, State: Connecting}
}

// NewServerFromError returns a Server description reflecting a failed
// handshake or heartbeat: Unknown type, Disconnected state, LastError set,
// and the topology version preserved from the triggering error context
// when available (§4.5 freshness checks key off the *previous*
// description's topology version, so callers should pass the version they
// had before the error, not None).
func NewServerFromError(addr address.Address, err error, tv TopologyVersion) Server {
	return Server{
		Addr:            addr,
		Type:            Unknown,
		State:           Disconnected,
		TopologyVersion: tv,
		LastError:       err,
	}
}

func (s Server) String() string {
	str := fmt.Sprintf("Addr: %s, Type: %s, State: %s", s.Addr, s.Type, s.State)
	if len(s.Tags) != 0 {
		str += fmt.Sprintf(", Tags: %v", s.Tags)
	}
	if s.State == Connected {
		str += fmt.Sprintf(", AverageRTT: %s", s.AverageRTT)
	}
	if s.LastError != nil {
		str += fmt.Sprintf(", LastError: %s", s.LastError)
	}
	return str
}

// Publisher fans out Server description changes to subscribers, adapted
// from the reference mongo-go-driver Server.Subscribe/Unsubscribe shape
// (§4.11): every subscriber channel is buffered to 1 and drained before a
// new value is pushed, so a slow subscriber never blocks publication.
type Publisher struct {
	mu          sync.Mutex
	subscribers map[uint64]chan Server
	nextID      uint64
	closed      bool
	current     Server
}

// NewPublisher returns a [*Publisher] seeded with the given initial
// description.
func NewPublisher(initial Server) *Publisher {
	return &Publisher{
		subscribers: make(map[uint64]chan Server),
		current:     initial,
	}
}

// Current returns the most recently published description.
func (p *Publisher) Current() Server {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Publish replaces the current description and notifies all subscribers.
func (p *Publisher) Publish(desc Server) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.current = desc
	for _, ch := range p.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- desc
	}
}

// Subscription is a handle returned by [*Publisher.Subscribe].
type Subscription struct {
	C  <-chan Server
	p  *Publisher
	id uint64
}

// ErrPublisherClosed is returned by Subscribe after [*Publisher.Close].
var ErrPublisherClosed = fmt.Errorf("description: publisher is closed")

// Subscribe returns a [*Subscription] whose channel is pre-populated with
// the current description and receives every subsequent one.
func (p *Publisher) Subscribe() (*Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPublisherClosed
	}
	ch := make(chan Server, 1)
	ch <- p.current
	id := p.nextID
	p.nextID++
	p.subscribers[id] = ch
	return &Subscription{C: ch, p: p, id: id}, nil
}

// Unsubscribe removes sub from the publisher and closes its channel. It is
// idempotent.
func (sub *Subscription) Unsubscribe() {
	sub.p.mu.Lock()
	defer sub.p.mu.Unlock()
	ch, ok := sub.p.subscribers[sub.id]
	if !ok {
		return
	}
	close(ch)
	delete(sub.p.subscribers, sub.id)
}

// Close closes the publisher and all outstanding subscriptions. Idempotent.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
}
