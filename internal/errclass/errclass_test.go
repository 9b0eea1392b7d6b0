// SPDX-License-Identifier: GPL-3.0-or-later

package errclass

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewReturnsEmptyForNilError(t *testing.T) {
	require.Equal(t, "", New(nil))
}

func TestNewClassifiesDeadlineExceeded(t *testing.T) {
	require.Equal(t, ETIMEDOUT, New(context.DeadlineExceeded))
}

func TestNewClassifiesCanceled(t *testing.T) {
	require.Equal(t, ECANCELED, New(context.Canceled))
}

func TestNewClassifiesClosedConn(t *testing.T) {
	require.Equal(t, ECONNABORTED, New(net.ErrClosed))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestNewClassifiesNetErrorTimeout(t *testing.T) {
	require.Equal(t, ETIMEDOUT, New(timeoutError{}))
}

func TestNewFallsBackToGenericForUnknownError(t *testing.T) {
	require.Equal(t, EGENERIC, New(errors.New("something unexpected")))
}

func TestNewClassifiesWrappedDeadlineExceeded(t *testing.T) {
	err := &net.OpError{Op: "read", Err: context.DeadlineExceeded}
	require.Equal(t, ETIMEDOUT, New(err))
}
