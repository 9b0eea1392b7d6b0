// SPDX-License-Identifier: GPL-3.0-or-later

package driverutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg.Dialer)
	require.NotNil(t, cfg.ErrClassifier)
	require.NotNil(t, cfg.TimeNow)
	require.Equal(t, "unknown_error", cfg.ErrClassifier.Classify(errors.New("boom")))
}

func TestErrClassifierFuncAdapts(t *testing.T) {
	var f ErrClassifier = ErrClassifierFunc(func(error) string { return "X" })
	require.Equal(t, "X", f.Classify(context.Canceled))
}
