// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.4.1 (SASL orchestration). The opaque SASL client
// interface mirrors the shape bassosimone-nop's compose.go gives to its
// composable pipeline stages (internal/transport's Func): a small interface the
// orchestrator drives without knowing the mechanism's internals.

// Package auth implements the SASL orchestrator and the credential cache
// shared by every authentication mechanism (§4.4).
package auth

import (
	"fmt"
	"time"

	"github.com/bassosimone/dbconncore/internal/bsonutil"
	"github.com/bassosimone/dbconncore/internal/driverutil"
)

// PerRoundBudget is the per-SASL-round maintenance deadline duration
// (§4.4.1: "every per-command send sets a newly-started maintenance
// deadline so that each round has its own budget").
const PerRoundBudget = 10 * time.Second

// nowFunc is overridable in tests that need deterministic round deadlines.
var nowFunc = time.Now

// SaslClient is the opaque per-mechanism conversation engine the
// orchestrator drives to completion (§4.4.1).
type SaslClient interface {
	// HasInitialResponse reports whether the client can produce a payload
	// before seeing any server challenge.
	HasInitialResponse() bool
	// Next feeds challenge (nil for the very first call when there is no
	// initial response) and returns the client's next payload.
	Next(challenge []byte) (payload []byte, err error)
	// Complete reports whether the client considers the conversation
	// finished.
	Complete() bool
	// Dispose releases any resources the client holds (subject binding,
	// key material). Called exactly once regardless of outcome.
	Dispose()
}

// SecurityError wraps a SASL-layer failure: unsupported mechanism,
// malformed server payload, or a conversation that never completed.
type SecurityError struct{ msg string }

func (e *SecurityError) Error() string { return "auth: " + e.msg }

// ProtocolError marks a server response that violates the SASL protocol
// (e.g. a null payload mid-conversation).
type ProtocolError struct{ msg string }

func (e *ProtocolError) Error() string { return "auth: protocol error: " + e.msg }

// saslStartOptionsProvider is implemented by mechanisms that add an
// "options" (or similar) field to their saslStart command, such as
// SCRAM-SHA-256's {options:{skipEmptyExchange:true}} (§4.4.2).
type saslStartOptionsProvider interface {
	SaslStartOptions() (key string, value any, ok bool)
}

// ClientFactory creates a [SaslClient] for the named mechanism, address,
// and credential. Returns an error if the mechanism is unsupported.
type ClientFactory func(mechanism string, addr string, cred Credential) (SaslClient, error)

// CommandRunner executes a single authentication command
// (saslStart/saslContinue) and returns the server's response.
type CommandRunner interface {
	RunCommand(ctx *driverutil.OperationContext, db string, cmd bsonutil.D) (bsonutil.D, error)
}

// ServerResponse is the minimal projection of a saslStart/saslContinue
// reply the orchestrator needs.
type ServerResponse struct {
	ConversationID int32
	Done           bool
	Payload        []byte
}

func parseServerResponse(reply bsonutil.D) (ServerResponse, error) {
	var sr ServerResponse
	if v, ok := reply.Lookup("conversationId"); ok {
		sr.ConversationID = toInt32(v)
	}
	if v, ok := reply.Lookup("done"); ok {
		if b, ok := v.(bool); ok {
			sr.Done = b
		}
	}
	v, ok := reply.Lookup("payload")
	if !ok {
		return sr, &ProtocolError{msg: "missing payload field"}
	}
	if v == nil {
		return sr, &ProtocolError{msg: "null payload mid-conversation"}
	}
	payload, ok := v.([]byte)
	if !ok {
		return sr, &ProtocolError{msg: "payload field is not binary"}
	}
	sr.Payload = payload
	return sr, nil
}

func toInt32(v any) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int64:
		return int32(n)
	case int:
		return int32(n)
	default:
		return 0
	}
}

// Orchestrator drives a SASL mechanism to completion against a connection,
// per §4.4.1.
type Orchestrator struct {
	Factory ClientFactory
	Runner  CommandRunner
}

// SpeculativeResponse is implemented by callers that may have a
// speculative-authenticate response ready to stand in for the first
// server challenge (§4.4.3).
type SpeculativeResponse interface {
	// TakeSpeculativeResponse returns the consumed speculative response
	// (and true), clearing it so it is never reused.
	TakeSpeculativeResponse() (bsonutil.D, bool)
}

// Authenticate runs the full SASL exchange for mechanism against db using
// cred, optionally consuming a speculative first response from spec.
func (o *Orchestrator) Authenticate(ctx *driverutil.OperationContext, addr, db, mechanism string, cred Credential, spec SpeculativeResponse) error {
	client, err := o.Factory(mechanism, addr, cred)
	if err != nil {
		return &SecurityError{msg: fmt.Sprintf("mechanism %q unsupported: %v", mechanism, err)}
	}
	defer client.Dispose()

	var resp ServerResponse
	var convID int32
	haveResponse := false

	if spec != nil {
		if specDoc, ok := spec.TakeSpeculativeResponse(); ok {
			resp, err = parseServerResponse(specDoc)
			if err != nil {
				return err
			}
			convID = resp.ConversationID
			haveResponse = true
		}
	}

	if !haveResponse {
		var initial []byte
		if client.HasInitialResponse() {
			initial, err = client.Next(nil)
			if err != nil {
				return err
			}
		}
		startCmd := bsonutil.D{
			{Key: "saslStart", Value: int32(1)},
			{Key: "mechanism", Value: mechanism},
			{Key: "payload", Value: initial},
		}
		if provider, ok := client.(saslStartOptionsProvider); ok {
			if key, value, has := provider.SaslStartOptions(); has {
				startCmd = startCmd.Append(key, value)
			}
		}
		round := ctx.StartMaintenanceDeadline(nowFunc(), PerRoundBudget)
		reply, err := o.Runner.RunCommand(round, db, startCmd)
		if err != nil {
			return err
		}
		resp, err = parseServerResponse(reply)
		if err != nil {
			return err
		}
		convID = resp.ConversationID
	}

	for !resp.Done {
		payload, err := client.Next(resp.Payload)
		if err != nil {
			return err
		}
		if payload == nil {
			return &ProtocolError{msg: "sasl client returned a null payload mid-conversation"}
		}
		round := ctx.StartMaintenanceDeadline(nowFunc(), PerRoundBudget)
		reply, err := o.Runner.RunCommand(round, db, bsonutil.D{
			{Key: "saslContinue", Value: int32(1)},
			{Key: "conversationId", Value: convID},
			{Key: "payload", Value: payload},
		})
		if err != nil {
			return err
		}
		resp, err = parseServerResponse(reply)
		if err != nil {
			return err
		}
	}

	if !client.Complete() {
		if _, err := client.Next(resp.Payload); err != nil {
			return err
		}
		if !client.Complete() {
			return &SecurityError{msg: "sasl conversation finished but client did not complete"}
		}
	}

	return nil
}
