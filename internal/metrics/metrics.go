// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on: internal/event.Listener (started/succeeded/failed command
// event triple, §4.8) and internal/rtt.Sampler (§4.10), wired to
// github.com/prometheus/client_golang per SPEC_FULL.md §2.B. The histogram
// bucket layout follows client_golang's own prometheus.DefBuckets
// convention rather than a driver-specific one, since this core has no
// latency SLO of its own to calibrate against.

// Package metrics provides optional Prometheus instrumentation for command
// round-trips and round-trip-time samples. It is never required: every
// other package in this module functions without a *Recorder.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bassosimone/dbconncore/internal/event"
)

// Recorder implements [event.Listener] and exposes round-trip-time
// observations, publishing everything to a [*prometheus.Registry].
type Recorder struct {
	commandDuration *prometheus.HistogramVec
	commandTotal    *prometheus.CounterVec
	rttSeconds      *prometheus.HistogramVec
	rttAverage      *prometheus.GaugeVec
	rttMinimum      *prometheus.GaugeVec
}

var _ event.Listener = &Recorder{}

// NewRecorder creates a [*Recorder] and registers its collectors with reg.
// A nil reg is legal: metrics are computed but never exported, which is
// useful for tests.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dbconncore",
			Subsystem: "command",
			Name:      "duration_seconds",
			Help:      "Command round-trip duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command", "outcome"}),
		commandTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbconncore",
			Subsystem: "command",
			Name:      "total",
			Help:      "Total number of commands executed.",
		}, []string{"command", "outcome"}),
		rttSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dbconncore",
			Subsystem: "rtt",
			Name:      "sample_seconds",
			Help:      "Individual round-trip-time samples in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"server"}),
		rttAverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dbconncore",
			Subsystem: "rtt",
			Name:      "average_seconds",
			Help:      "Exponentially-weighted moving average round-trip time.",
		}, []string{"server"}),
		rttMinimum: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "dbconncore",
			Subsystem: "rtt",
			Name:      "minimum_seconds",
			Help:      "Minimum round-trip time over the most recent samples.",
		}, []string{"server"}),
	}
	if reg != nil {
		reg.MustRegister(r.commandDuration, r.commandTotal, r.rttSeconds, r.rttAverage, r.rttMinimum)
	}
	return r
}

// Started implements [event.Listener]. Command metrics are recorded on
// completion, so Started is a no-op.
func (r *Recorder) Started(event.Started) {}

// Succeeded implements [event.Listener].
func (r *Recorder) Succeeded(e event.Succeeded) {
	r.observeCommand(e.CommandName, "success", e.Duration)
}

// Failed implements [event.Listener].
func (r *Recorder) Failed(e event.Failed) {
	r.observeCommand(e.CommandName, "failure", e.Duration)
}

func (r *Recorder) observeCommand(commandName, outcome string, d time.Duration) {
	r.commandDuration.WithLabelValues(commandName, outcome).Observe(d.Seconds())
	r.commandTotal.WithLabelValues(commandName, outcome).Inc()
}

// ObserveRTT records a single round-trip-time sample for server, plus the
// given sampler's current average and minimum (see [rtt.Sampler]).
func (r *Recorder) ObserveRTT(server string, sample, average, minimum time.Duration) {
	r.rttSeconds.WithLabelValues(server).Observe(sample.Seconds())
	r.rttAverage.WithLabelValues(server).Set(average.Seconds())
	r.rttMinimum.WithLabelValues(server).Set(minimum.Seconds())
}
