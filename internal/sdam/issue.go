// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: §4.5 (SDAM issue classifier) and §7 (error
// taxonomy), cross-checked against the ProcessError/ProcessHandshakeError
// shape in other_examples' mongo-go-driver topology/server.go (reference
// only, not a teacher) for which error kinds gate pool-clear vs.
// description-unknown decisions. Error-string matching for TLS
// configuration issues is grounded on bassosimone-nop's tls.go certificate
// error handling (x509.HostnameError / x509.UnknownAuthorityError /
// x509.CertificateInvalidError) generalized to also classify by message
// substring for the SSL-handshake-exception case.

// Package sdam implements the server-discovery-and-monitoring issue
// classifier: it maps transport/command errors onto pool-invalidation and
// topology-change decisions (§4.5).
package sdam

import (
	"errors"
	"net"
	"strings"

	"github.com/bassosimone/dbconncore/internal/description"
)

// CommandErrorCode mirrors a subset of server error codes the classifier
// inspects (§4.5, §7).
type CommandErrorCode int32

// Shutdown error codes (§4.5: "command exception whose error code is in
// the shutdown code set").
var shutdownCodes = map[CommandErrorCode]struct{}{
	91:    {}, // ShutdownInProgress
	11600: {}, // InterruptedAtShutdown
}

// State-change error codes: the operation targeted a server that is no
// longer primary or is recovering.
var stateChangeCodes = map[CommandErrorCode]struct{}{
	10107: {}, // NotWritablePrimary / NotMaster
	13435: {}, // NotPrimaryNoSecondaryOk
	13436: {}, // NotPrimaryOrSecondary
	189:   {}, // PrimarySteppedDown
	91:    {}, // ShutdownInProgress
	11600: {}, // InterruptedAtShutdown
	11602: {}, // InterruptedDueToReplStateChange
	10058: {}, // LegacyNotPrimary
}

// authCodes are error codes meaning the command failed on authorization or
// authentication grounds.
var authCodes = map[CommandErrorCode]struct{}{
	18:  {}, // AuthenticationFailed
	13:  {}, // Unauthorized
}

// stalePrimaryCodes mark a cached primary that is stale.
var stalePrimaryCodes = map[CommandErrorCode]struct{}{
	10058: {},
	13435: {},
}

// CommandError carries the server error code/message an issue references.
type CommandError struct {
	Code            CommandErrorCode
	Message         string
	TopologyVersion description.TopologyVersion
}

func (e *CommandError) Error() string { return e.Message }

// WriteConcernError wraps a command that otherwise succeeded but whose
// write concern failed (§7: "a write-concern error that otherwise
// succeeded carries the server's response to the caller via a
// distinguished carrier error").
type WriteConcernError struct {
	Code            CommandErrorCode
	Message         string
	TopologyVersion description.TopologyVersion
	Response        any
}

func (e *WriteConcernError) Error() string { return e.Message }

// NetworkTimeoutError marks a socket read-timeout specifically, per §4.5's
// distinction between relatedToNetworkTimeout and relatedToNetworkNotTimeout.
type NetworkTimeoutError struct{ Err error }

func (e *NetworkTimeoutError) Unwrap() error { return e.Err }
func (e *NetworkTimeoutError) Error() string { return "network timeout: " + e.Err.Error() }

// TLSConfigurationError marks a handshake failure attributable to TLS
// configuration (bad certificate, hostname mismatch, protocol mismatch)
// rather than transient overload.
type TLSConfigurationError struct{ Err error }

func (e *TLSConfigurationError) Unwrap() error { return e.Err }
func (e *TLSConfigurationError) Error() string { return "tls configuration: " + e.Err.Error() }

// Issue is the classifier's verdict for a single observed error.
type Issue struct {
	Err error

	RelatedToStateChange       bool
	RelatedToShutdown          bool
	RelatedToNetworkTimeout    bool
	RelatedToNetworkNotTimeout bool
	RelatedToTLSConfiguration  bool
	RelatedToAuth              bool
	RelatedToWriteConcern      bool
	RelatedToStalePrimary      bool

	TopologyVersion    description.TopologyVersion
	HasTopologyVersion bool
	PoolGeneration     uint64 // the generation the connection belonged to
}

var tlsErrorTerms = []string{"certificate", "trust", "hostname", "protocol version", "cipher", "x509"}

// Classify inspects err (and, for command/write-concern errors, its
// structured fields) and returns the populated [Issue].
func Classify(err error) Issue {
	issue := Issue{Err: err}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		_, issue.RelatedToStateChange = stateChangeCodes[cmdErr.Code]
		_, issue.RelatedToShutdown = shutdownCodes[cmdErr.Code]
		_, issue.RelatedToAuth = authCodes[cmdErr.Code]
		_, issue.RelatedToStalePrimary = stalePrimaryCodes[cmdErr.Code]
		issue.TopologyVersion = cmdErr.TopologyVersion
		issue.HasTopologyVersion = cmdErr.TopologyVersion.Valid
		return issue
	}

	var wcErr *WriteConcernError
	if errors.As(err, &wcErr) {
		issue.RelatedToWriteConcern = true
		_, issue.RelatedToStateChange = stateChangeCodes[wcErr.Code]
		issue.TopologyVersion = wcErr.TopologyVersion
		issue.HasTopologyVersion = wcErr.TopologyVersion.Valid
		return issue
	}

	var timeoutErr *NetworkTimeoutError
	if errors.As(err, &timeoutErr) {
		issue.RelatedToNetworkTimeout = true
		return issue
	}

	var tlsErr *TLSConfigurationError
	if errors.As(err, &tlsErr) {
		issue.RelatedToTLSConfiguration = true
		return issue
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			issue.RelatedToNetworkTimeout = true
		} else {
			issue.RelatedToNetworkNotTimeout = true
			if looksLikeTLSConfigError(err) {
				issue.RelatedToTLSConfiguration = true
			}
		}
		return issue
	}

	return issue
}

// looksLikeTLSConfigError reports whether err's message references
// certificate/trust/hostname/protocol/cipher terms (§4.5: "an SSL
// handshake exception whose message matches certificate/trust/
// hostname/protocol/cipher terms").
func looksLikeTLSConfigError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, term := range tlsErrorTerms {
		if strings.Contains(msg, term) {
			return true
		}
	}
	return false
}

// IsStale reports whether issue should be ignored because it is stale
// relative to poolGeneration and currentTV (§4.5 Freshness): either the
// issue's pool generation predates the current one, or the issue carries
// a topology version that is newer-or-equal to the current server
// description's topology version under the non-strict order.
func (issue Issue) IsStale(currentPoolGeneration uint64, currentTV description.TopologyVersion) bool {
	if issue.PoolGeneration < currentPoolGeneration {
		return true
	}
	if issue.HasTopologyVersion && issue.TopologyVersion.NewerOrEqual(currentTV) {
		return true
	}
	return false
}
