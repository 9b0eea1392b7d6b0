// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: bassosimone-nop config.go (NewConfig pre-wiring defaults),
// extended per SPEC_FULL.md §2.A with driver-specific fields.

package driverutil

import (
	"context"
	"net"
	"time"

	"github.com/bassosimone/dbconncore/internal/errclass"
)

// Dialer abstracts [*net.Dialer]'s behavior, allowing unit tests and
// SOCKS5-backed dialing to stand in for the default.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ErrClassifier classifies errors into short labels for structured
// logging and for the first stage of SDAM disambiguation.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to [ErrClassifier].
type ErrClassifierFunc func(error) string

func (f ErrClassifierFunc) Classify(err error) string { return f(err) }

// DefaultErrClassifier classifies with [errclass.New].
var DefaultErrClassifier = ErrClassifierFunc(errclass.New)

// ServerAPIOptions marks commands with a requested server API version,
// mirroring the greeting's behavior of naming the modern "hello" command
// only when a server API is configured (§4.7).
type ServerAPIOptions struct {
	Version           string
	Strict            *bool
	DeprecationErrors *bool
}

// Config holds configuration shared by handshake, authentication, and
// transport components. All fields have sensible defaults set by
// [NewConfig] and may be overridden before first use.
type Config struct {
	Dialer        Dialer
	ErrClassifier ErrClassifier
	TimeNow       func() time.Time

	AppName     string
	Compressors []string
	ServerAPI   *ServerAPIOptions
}

// NewConfig returns a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: DefaultErrClassifier,
		TimeNow:       time.Now,
	}
}
