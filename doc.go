// SPDX-License-Identifier: GPL-3.0-or-later

// Package dbconncore provides the connection-layer core of a document
// database client driver: handshake, authentication, topology control for
// load-balanced deployments, SDAM issue classification, wire framing,
// command events, and a SOCKS5 transport adapter.
//
// # Layout
//
// Every collaborator lives under internal/, since this repository
// implements the connection core only; it has no application-facing API of
// its own:
//
//   - internal/wiremessage: the wire framing codec
//   - internal/driverutil: operation context, config, structured logging
//   - internal/auth, internal/auth/scram, internal/auth/oidc: SASL
//     orchestration, SCRAM helpers, and the OIDC fallback state machine
//   - internal/handshake: the handshake initializer
//   - internal/sdam: SDAM issue classification
//   - internal/lbm: the load-balanced topology controller
//   - internal/event: the command-event emitter
//   - internal/socks5: the SOCKS5 transport adapter
//   - internal/rtt: the round-trip-time sampler
//   - internal/transport: dial/cancel/observe pipeline stages shared by
//     the codec and the SOCKS5 adapter
//   - internal/metrics: optional Prometheus instrumentation
//
// # Observability
//
// Components accept a driverutil.SLogger (compatible with [log/slog]) and
// a driverutil.ErrClassifier. Logging is a no-op unless a logger is
// supplied. Info is used for lifecycle/span events; Debug for per-I/O and
// per-round internals. Use internal/spanid to generate a UUIDv7 span id
// per operation and attach it to the logger.
//
// # Timeout and Context Philosophy
//
// Every blocking call is bounded by the caller's context. internal/transport
// carries a CancelWatchFunc, ported unchanged from bassosimone-nop's
// cancelwatch pattern, that closes the underlying connection when the
// context is done so in-progress I/O fails promptly rather than blocking
// past cancellation.
package dbconncore
