// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.7 and the greeting-synthesis shape of
// other_examples' mongo-go-driver topology/server.go (reference only):
// a two-part start/finish split so pool warming can overlap the greeting
// with authentication, and synthesizing both a connection description and
// a server description from the same reply plus the measured round trip.

// Package handshake implements the greeting command construction and the
// connection/server description synthesis that follows it (§4.7).
package handshake

import (
	"log/slog"
	"time"

	"github.com/bassosimone/dbconncore/internal/address"
	"github.com/bassosimone/dbconncore/internal/bsonutil"
	"github.com/bassosimone/dbconncore/internal/description"
	"github.com/bassosimone/dbconncore/internal/driverutil"
	"github.com/bassosimone/dbconncore/internal/spanid"
)

// legacyGreetingCommand is sent when no explicit server API is configured;
// "hello" is sent otherwise (§4.7).
const legacyGreetingCommand = "isMaster"
const modernGreetingCommand = "hello"

// userNotFoundCode is the server error code indicating the saslSupportedMechs
// probe referenced an unknown user.
const userNotFoundCode = 11

// SpeculativeAuthenticator is implemented by an authentication mechanism
// capable of offering a speculative first payload (§4.4.3).
type SpeculativeAuthenticator interface {
	// SpeculativeAuthenticateDocument returns the document to embed under
	// "speculativeAuthenticate" in the greeting, and whether one applies.
	SpeculativeAuthenticateDocument() (bsonutil.D, bool)
	// SASLSupportedMechsUser returns "<source>.<user>" when this
	// authenticator auto-selects its mechanism, and whether that applies.
	SASLSupportedMechsUser() (string, bool)
	// ConsumeSpeculativeResponse delivers the server's
	// "speculativeAuthenticate" subdocument, if any, to be consumed
	// exactly once in place of the mechanism's first post-handshake round.
	ConsumeSpeculativeResponse(doc bsonutil.D)
}

// Params configures a single handshake attempt.
type Params struct {
	Addr          address.Address
	ServerID      address.ServerID
	AppName       string
	Compressors   []string
	LoadBalanced  bool
	ServerAPI     *driverutil.ServerAPIOptions
	ClientMeta    bsonutil.D
	Authenticator SpeculativeAuthenticator // nil if unauthenticated

	// Logger receives "handshakeStart"/"handshakeDone" events tagged with
	// a per-attempt span id, the way internal/event tags a command's
	// started/succeeded pair. Defaults to the no-op logger when nil.
	Logger driverutil.SLogger
}

// CommandSender executes a single greeting command and returns its reply
// document plus the measured round-trip duration. Implemented by the
// connection layer; kept abstract here so this package has no direct wire
// dependency.
type CommandSender interface {
	SendCommand(cmd bsonutil.D) (reply bsonutil.D, rtt time.Duration, err error)
}

// SecurityError wraps a greeting failure that the saslSupportedMechs probe
// identifies as a disguised authentication failure (§4.7: "remap the error
// to a security exception wrapping the original").
type SecurityError struct {
	Err error
}

func (e *SecurityError) Error() string { return "handshake: security error: " + e.Err.Error() }
func (e *SecurityError) Unwrap() error { return e.Err }

// Result is the outcome of a successful Start.
type Result struct {
	Connection description.Connection
	Server     description.Server
	Attempts   int // supplemented (§4.11): caller-visible retry-bounded counter
}

// BuildGreetingCommand constructs the greeting command document per §4.7.
func BuildGreetingCommand(p Params) bsonutil.D {
	name := legacyGreetingCommand
	if p.ServerAPI != nil {
		name = modernGreetingCommand
	}

	cmd := bsonutil.D{{Key: name, Value: int32(1)}, {Key: "helloOk", Value: true}}
	if len(p.ClientMeta) > 0 {
		cmd = cmd.Append("client", p.ClientMeta)
	}
	if p.LoadBalanced {
		cmd = cmd.Append("loadBalanced", true)
	}
	if len(p.Compressors) > 0 {
		cmd = cmd.Append("compression", p.Compressors)
	}
	if p.Authenticator != nil {
		if user, ok := p.Authenticator.SASLSupportedMechsUser(); ok {
			cmd = cmd.Append("saslSupportedMechs", user)
		}
		if doc, ok := p.Authenticator.SpeculativeAuthenticateDocument(); ok {
			cmd = cmd.Append("speculativeAuthenticate", doc)
		}
	}
	return cmd
}

// Start executes the greeting round and synthesizes the resulting
// connection and server descriptions (the "start" half of §4.7's
// start/finish split; "finish" is authentication, performed by the
// caller via internal/auth once Start returns).
func Start(sender CommandSender, p Params) (*Result, error) {
	logger := p.Logger
	if logger == nil {
		logger = driverutil.DefaultSLogger()
	}
	span := spanid.New()
	logger.Info("handshakeStart", slog.String("spanID", span), slog.String("remoteAddr", p.Addr.String()))

	cmd := BuildGreetingCommand(p)
	reply, measuredRTT, err := sender.SendCommand(cmd)
	if err != nil {
		logger.Info("handshakeDone", slog.String("spanID", span), slog.String("remoteAddr", p.Addr.String()), slog.Any("err", err))
		if p.Authenticator != nil {
			if _, probed := p.Authenticator.SASLSupportedMechsUser(); probed && isUserNotFound(err) {
				return nil, &SecurityError{Err: err}
			}
		}
		return nil, err
	}

	if p.Authenticator != nil {
		if specDoc, ok := reply.Lookup("speculativeAuthenticate"); ok {
			if doc, ok := specDoc.(bsonutil.D); ok {
				p.Authenticator.ConsumeSpeculativeResponse(doc)
			}
		}
	}

	connDesc := buildConnectionDescription(p, reply)
	srvDesc := buildServerDescription(p.Addr, reply, measuredRTT)

	logger.Info("handshakeDone", slog.String("spanID", span), slog.String("remoteAddr", p.Addr.String()), slog.Duration("rtt", measuredRTT))
	return &Result{Connection: connDesc, Server: srvDesc, Attempts: 1}, nil
}

func isUserNotFound(err error) bool {
	type coder interface{ Code() int32 }
	c, ok := err.(coder)
	return ok && c.Code() == userNotFoundCode
}

func buildConnectionDescription(p Params, reply bsonutil.D) description.Connection {
	d := description.Connection{
		ConnectionID: address.NewConnectionID(p.ServerID),
		PeerAddr:     p.Addr,
	}
	if v, ok := reply.Lookup("maxBsonObjectSize"); ok {
		d.MaxDocumentSize = toInt32(v)
	}
	if v, ok := reply.Lookup("maxMessageSizeBytes"); ok {
		d.MaxMessageSize = toInt32(v)
	}
	if v, ok := reply.Lookup("maxWriteBatchSize"); ok {
		d.MaxBatchCount = toInt32(v)
	}
	if v, ok := reply.Lookup("maxWireVersion"); ok {
		d.MaxWireVersion = toInt32(v)
	}
	if v, ok := reply.Lookup("minWireVersion"); ok {
		d.MinWireVersion = toInt32(v)
	}
	if v, ok := reply.Lookup("connectionId"); ok {
		d = d.WithServerAssignedConnectionID(int64(toInt32(v)))
	}
	if v, ok := reply.Lookup("compression"); ok {
		if list, ok := v.([]string); ok {
			d.Compression = list
		}
	}
	d.ServerType = classifyServerType(reply, p.LoadBalanced)
	return d
}

func buildServerDescription(addr address.Address, reply bsonutil.D, measuredRTT time.Duration) description.Server {
	s := description.Server{
		Addr:       addr,
		Type:       classifyServerType(reply, false),
		State:      description.Connected,
		MinRTT:     0, // §4.7: "initial min-RTT of 0"
		AverageRTT: measuredRTT,
	}
	if v, ok := reply.Lookup("ok"); ok {
		s.Ok = toBool(v)
	}
	if v, ok := reply.Lookup("iscryptd"); ok {
		s.Cryptd = toBool(v)
	}
	if _, ok := reply.Lookup("logicalSessionTimeoutMinutes"); ok {
		s.SessionsSupported = true
	}
	return s
}

func classifyServerType(reply bsonutil.D, loadBalanced bool) description.ServerType {
	if loadBalanced {
		return description.LoadBalancer
	}
	if v, ok := reply.Lookup("msg"); ok && v == "isdbgrid" {
		return description.ShardRouter
	}
	if v, ok := reply.Lookup("setName"); ok && v != "" {
		if isPrimary, _ := reply.Lookup("ismaster"); toBool(isPrimary) {
			return description.ReplicaSetPrimary
		}
		if v, ok := reply.Lookup("arbiterOnly"); ok && toBool(v) {
			return description.ReplicaSetArbiter
		}
		if v, ok := reply.Lookup("hidden"); ok && toBool(v) {
			return description.ReplicaSetOther
		}
		return description.ReplicaSetSecondary
	}
	return description.Standalone
}

func toInt32(v any) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int64:
		return int32(n)
	case int:
		return int32(n)
	case float64:
		return int32(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}
