// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §3 (Connection description).

package description

import "github.com/bassosimone/dbconncore/internal/address"

// Connection is an immutable description of a single connection, produced
// by the handshake initializer (§4.7) from the greeting reply. A second
// write may replace only the connection id's server-assigned counter
// (§3); every other field is fixed for the connection's lifetime.
type Connection struct {
	ConnectionID address.ConnectionID

	MaxDocumentSize   int32
	MaxMessageSize    int32
	MaxBatchCount     int32
	MaxWireVersion    int32
	MinWireVersion    int32
	ServerType        ServerType
	SessionTimeoutMin *int32
	ServiceID         *[16]byte
	PeerAddr          address.Address

	Compression []string
}

// WithServerAssignedConnectionID returns a copy of d with the server's own
// connection counter recorded, leaving every other field untouched.
func (d Connection) WithServerAssignedConnectionID(v int64) Connection {
	d.ConnectionID = d.ConnectionID.WithServerValue(v)
	return d
}

// SupportsWireVersion reports whether v lies within [MinWireVersion,
// MaxWireVersion].
func (d Connection) SupportsWireVersion(v int32) bool {
	return v >= d.MinWireVersion && v <= d.MaxWireVersion
}

// LoadBalanced reports whether this connection multiplexes through a load
// balancer (has a service id).
func (d Connection) LoadBalanced() bool {
	return d.ServiceID != nil
}
