// SPDX-License-Identifier: GPL-3.0-or-later

package runtimex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssertDoesNotPanicWhenTrue(t *testing.T) {
	require.NotPanics(t, func() { Assert(true, "unreachable") })
}

func TestAssertPanicsWhenFalse(t *testing.T) {
	require.PanicsWithValue(t, "boom", func() { Assert(false, "boom") })
}

func TestAssertPanicsWithDefaultMessage(t *testing.T) {
	require.Panics(t, func() { Assert(false) })
}

func TestPanicOnErrorDoesNotPanicWhenNil(t *testing.T) {
	require.NotPanics(t, func() { PanicOnError(nil) })
}

func TestPanicOnErrorPanicsWhenNonNil(t *testing.T) {
	err := errors.New("boom")
	require.PanicsWithValue(t, err, func() { PanicOnError(err) })
}

func TestPanicOnError1ReturnsValueWhenNil(t *testing.T) {
	require.Equal(t, 42, PanicOnError1(42, nil))
}

func TestPanicOnError1PanicsWhenNonNil(t *testing.T) {
	require.Panics(t, func() { PanicOnError1(0, errors.New("boom")) })
}
