// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: bassosimone-nop's netip.AddrPort-based endpoint handling in
// connect.go and endpoint.go, generalized to also support the unresolved
// host:port pairs the SOCKS5 adapter and SRV-polling callback need (§3).

// Package address implements the server-address and server/connection id
// types shared by the handshake initializer, the SDAM classifier, and the
// load-balanced topology controller.
package address

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Address identifies a database server by host and port.
//
// Unlike [netip.AddrPort], Address may hold an unresolved hostname: the
// SOCKS5 adapter and the load-balanced controller's SRV-derived servers
// never resolve the hostname locally, deferring resolution to the proxy
// or to the server itself.
type Address struct {
	host string
	port string
}

// New returns an [Address] for host and port. An empty port is normalized
// to "27017", following the document-database default.
func New(host, port string) Address {
	if port == "" {
		port = "27017"
	}
	return Address{host: host, port: port}
}

// Host returns the address's hostname or IP literal.
func (a Address) Host() string { return a.host }

// Port returns the address's port.
func (a Address) Port() string { return a.port }

// String renders "host:port", matching the wire address format used in
// log output and in configuration errors.
func (a Address) String() string {
	if a.host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", a.host, a.port)
}

// Equal reports whether two addresses have the same host and port.
//
// Identity is by host+port only (§3): two addresses are equal regardless
// of how they were constructed.
func (a Address) Equal(other Address) bool {
	return a.host == other.host && a.port == other.port
}

// IsZero reports whether a is the zero value.
func (a Address) IsZero() bool {
	return a.host == "" && a.port == ""
}

// ServerID identifies a server within a specific cluster run: the stable
// cluster id (assigned once per client instance) plus the server address.
// Pool generations and load-balancer service ids are keyed by ServerID.
type ServerID struct {
	ClusterID uuid.UUID
	Addr      Address
}

// String renders a debug-friendly identifier.
func (id ServerID) String() string {
	return fmt.Sprintf("%s/%s", id.ClusterID, id.Addr)
}

// NewClusterID returns a fresh, stable cluster identifier, generated once
// per client/topology instance and reused for every ServerID it mints.
func NewClusterID() uuid.UUID {
	return uuid.New()
}

// connIDCounter is a process-unique monotonic counter for the driver-local
// portion of connection ids (§9: "a single monotonically-increasing shared
// counter per process; wrap-around is undefined and must be documented as
// a practical non-issue").
var connIDCounter atomic.Int64

// ConnectionID identifies a single connection: the server it is open to,
// a process-unique local counter, and an optional server-assigned counter
// (filled in once the server reports its own connection id in the
// handshake reply).
type ConnectionID struct {
	ServerID ServerID
	LocalID  int64

	// ServerValue holds the server-assigned counter, or -1 if the server
	// has not yet reported one. A second write to a [ConnectionID] may
	// only replace this field (§3: "immutable after handshake; a second
	// write may replace only the server-assigned counter").
	ServerValue int64
}

// NewConnectionID returns a [ConnectionID] for serverID, allocating a
// fresh process-unique local counter. ServerValue starts unset (-1).
func NewConnectionID(serverID ServerID) ConnectionID {
	return ConnectionID{
		ServerID:    serverID,
		LocalID:     connIDCounter.Add(1),
		ServerValue: -1,
	}
}

// WithServerValue returns a copy of id with ServerValue set. This is the
// only mutation permitted after construction.
func (id ConnectionID) WithServerValue(v int64) ConnectionID {
	id.ServerValue = v
	return id
}

// String renders "conn<local>", or "conn<local>[<server>]" once the
// server-assigned counter is set.
func (id ConnectionID) String() string {
	if id.ServerValue < 0 {
		return fmt.Sprintf("conn%d", id.LocalID)
	}
	return fmt.Sprintf("conn%d[%d]", id.LocalID, id.ServerValue)
}
