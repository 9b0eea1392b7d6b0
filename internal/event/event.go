// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.8, and bassosimone-nop's observeconn.go
// (started/succeeded/failed event triple keyed by a correlation id,
// structured slog fields) generalized from connection-level to
// command-level events. Truncated-JSON debug logging follows the same
// file's practice of rendering compact structured summaries rather than
// full payloads at debug level.

// Package event implements the command-event emitter: started/succeeded/
// failed notifications with redaction of security-sensitive commands and
// truncated structured-log rendering (§4.8).
package event

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/bassosimone/dbconncore/internal/bsonutil"
	"github.com/bassosimone/dbconncore/internal/description"
	"github.com/bassosimone/dbconncore/internal/driverutil"
	"github.com/bassosimone/dbconncore/internal/spanid"
)

const maxLoggedJSONChars = 1000

// defaultSensitiveCommands mirrors the handshake/auth commands whose
// arguments or replies must never reach a log or an event listener
// unredacted.
var defaultSensitiveCommands = map[string]struct{}{
	"authenticate":    {},
	"saslstart":       {},
	"saslcontinue":    {},
	"getnonce":        {},
	"createuser":      {},
	"updateuser":      {},
	"copydbgetnonce":  {},
	"copydbsaslstart": {},
	"copydb":          {},
}

// Started is emitted before a command is sent.
type Started struct {
	OperationID  uint64
	RequestID    uint64
	SpanID       string
	Connection   description.Connection
	DatabaseName string
	CommandName  string
	Command      bsonutil.D
}

// Succeeded is emitted when a command's reply arrives without error.
type Succeeded struct {
	OperationID  uint64
	RequestID    uint64
	SpanID       string
	Connection   description.Connection
	DatabaseName string
	CommandName  string
	Reply        bsonutil.D
	Duration     time.Duration
}

// Failed is emitted when a command round-trip fails.
type Failed struct {
	OperationID  uint64
	RequestID    uint64
	SpanID       string
	Connection   description.Connection
	DatabaseName string
	CommandName  string
	Err          error
	Duration     time.Duration
}

// Listener receives command events. Every method must return quickly; the
// emitter does not protect listeners from each other.
type Listener interface {
	Started(Started)
	Succeeded(Succeeded)
	Failed(Failed)
}

// Emitter drives the started/succeeded-or-failed notification sequence for
// a single command round-trip, redacting security-sensitive payloads and
// logging a truncated debug summary.
type Emitter struct {
	listener  Listener
	logger    driverutil.SLogger
	sensitive map[string]struct{}

	mu      sync.Mutex
	spanIDs map[uint64]string
}

// NewEmitter returns an [*Emitter]. A nil listener is legal (events are
// simply dropped); a nil logger defaults to the no-op logger.
func NewEmitter(listener Listener, logger driverutil.SLogger, extraSensitive ...string) *Emitter {
	if logger == nil {
		logger = driverutil.DefaultSLogger()
	}
	sensitive := make(map[string]struct{}, len(defaultSensitiveCommands)+len(extraSensitive))
	for k := range defaultSensitiveCommands {
		sensitive[k] = struct{}{}
	}
	for _, k := range extraSensitive {
		sensitive[k] = struct{}{}
	}
	return &Emitter{listener: listener, logger: logger, sensitive: sensitive, spanIDs: make(map[uint64]string)}
}

// spanFor generates a fresh span id for requestID, used to correlate a
// command's started event with its eventual succeeded/failed event in log
// output (§4.8).
func (e *Emitter) spanFor(requestID uint64) string {
	span := spanid.New()
	e.mu.Lock()
	e.spanIDs[requestID] = span
	e.mu.Unlock()
	return span
}

// takeSpan returns and forgets the span id started for requestID. An empty
// string means EmitStarted was never called for this requestID (or the
// emitter was recreated mid-flight).
func (e *Emitter) takeSpan(requestID uint64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	span := e.spanIDs[requestID]
	delete(e.spanIDs, requestID)
	return span
}

func (e *Emitter) isSensitive(commandName string, cmd bsonutil.D) bool {
	if _, ok := e.sensitive[lower(commandName)]; ok {
		return true
	}
	if lower(commandName) == "hello" || lower(commandName) == "ismaster" {
		if _, ok := cmd.Lookup("speculativeAuthenticate"); ok {
			return true
		}
	}
	return false
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// EmitStarted fires the started event. The caller must not retain cmd
// after this call returns; transport buffers backing it may be released
// immediately afterward (§4.8 buffer lifecycle).
func (e *Emitter) EmitStarted(operationID, requestID uint64, conn description.Connection, db, commandName string, cmd bsonutil.D) {
	span := e.spanFor(requestID)
	redacted := cmd
	if e.isSensitive(commandName, cmd) {
		redacted = bsonutil.Empty()
	}
	if e.listener != nil {
		e.listener.Started(Started{
			OperationID: operationID, RequestID: requestID, SpanID: span, Connection: conn,
			DatabaseName: db, CommandName: commandName, Command: redacted,
		})
	}
}

// EmitSucceeded fires the succeeded event and logs a truncated debug
// summary.
func (e *Emitter) EmitSucceeded(operationID, requestID uint64, conn description.Connection, db, commandName string, reply bsonutil.D, d time.Duration) {
	span := e.takeSpan(requestID)
	redacted := reply
	if e.isSensitive(commandName, reply) {
		redacted = bsonutil.Empty()
	}
	if e.listener != nil {
		e.listener.Succeeded(Succeeded{
			OperationID: operationID, RequestID: requestID, SpanID: span, Connection: conn,
			DatabaseName: db, CommandName: commandName, Reply: redacted, Duration: d,
		})
	}
	e.logDebug(conn, commandName, d, requestID, span)
}

// EmitFailed fires the failed event and logs a truncated debug summary. If
// the command was sensitive, the error's response payload (if it carries
// one via [ResponseCarrier]) is replaced with an empty document before the
// event is delivered, per §4.8.
func (e *Emitter) EmitFailed(operationID, requestID uint64, conn description.Connection, db, commandName string, cmd bsonutil.D, err error, d time.Duration) {
	span := e.takeSpan(requestID)
	toDeliver := err
	if e.isSensitive(commandName, cmd) {
		if carrier, ok := err.(ResponseCarrier); ok {
			toDeliver = carrier.WithResponse(bsonutil.Empty())
		}
	}
	if e.listener != nil {
		e.listener.Failed(Failed{
			OperationID: operationID, RequestID: requestID, SpanID: span, Connection: conn,
			DatabaseName: db, CommandName: commandName, Err: toDeliver, Duration: d,
		})
	}
	e.logDebug(conn, commandName, d, requestID, span)
}

// ResponseCarrier is implemented by command errors that embed the server's
// raw response; EmitFailed uses it to redact sensitive responses without
// needing a concrete error type.
type ResponseCarrier interface {
	error
	WithResponse(bsonutil.D) error
}

func (e *Emitter) logDebug(conn description.Connection, commandName string, d time.Duration, requestID uint64, span string) {
	summary := struct {
		Command    string  `json:"command"`
		DurationMS float64 `json:"duration_ms"`
		DriverID   int64   `json:"driver_connection_id"`
		ServerID   int64   `json:"server_connection_id,omitempty"`
		Host       string  `json:"host"`
		Port       string  `json:"port"`
		RequestID  uint64  `json:"request_id"`
		SpanID     string  `json:"span_id,omitempty"`
	}{
		Command:    commandName,
		DurationMS: float64(d) / float64(time.Millisecond),
		DriverID:   conn.ConnectionID.LocalID,
		Host:       conn.PeerAddr.Host(),
		Port:       conn.PeerAddr.Port(),
		RequestID:  requestID,
		SpanID:     span,
	}
	if conn.ConnectionID.ServerValue >= 0 {
		summary.ServerID = conn.ConnectionID.ServerValue
	}

	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	e.logger.Debug("command round-trip", "summary", truncateJSON(string(raw)))
}

// truncateJSON caps s to [maxLoggedJSONChars] characters, appending an
// ellipsis when truncated (§4.8).
func truncateJSON(s string) string {
	if len(s) <= maxLoggedJSONChars {
		return s
	}
	return s[:maxLoggedJSONChars] + "..."
}
