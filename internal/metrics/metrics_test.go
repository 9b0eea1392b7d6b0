// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/bassosimone/dbconncore/internal/description"
	"github.com/bassosimone/dbconncore/internal/event"
)

func TestRecorderWorksWithoutARegistry(t *testing.T) {
	r := NewRecorder(nil)
	r.Succeeded(event.Succeeded{CommandName: "find", Duration: time.Millisecond})
	r.ObserveRTT("node-1", time.Millisecond, time.Millisecond, time.Millisecond)
}

func TestRecorderCountsSucceededAndFailedSeparately(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.Succeeded(event.Succeeded{CommandName: "find", Duration: 5 * time.Millisecond, Connection: description.Connection{}})
	r.Failed(event.Failed{CommandName: "find", Duration: 2 * time.Millisecond})

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var total *dto.MetricFamily
	for _, mf := range metricFamilies {
		if mf.GetName() == "dbconncore_command_total" {
			total = mf
		}
	}
	require.NotNil(t, total)
	require.Len(t, total.Metric, 2)
}

func TestRecorderObserveRTTUpdatesGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveRTT("node-1", 10*time.Millisecond, 12*time.Millisecond, 8*time.Millisecond)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var avg *dto.MetricFamily
	for _, mf := range metricFamilies {
		if mf.GetName() == "dbconncore_rtt_average_seconds" {
			avg = mf
		}
	}
	require.NotNil(t, avg)
	require.Len(t, avg.Metric, 1)
	require.InDelta(t, 0.012, avg.Metric[0].GetGauge().GetValue(), 1e-9)
}
