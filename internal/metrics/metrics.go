// Package metrics is a thin Prometheus wrapper. The metric *schema* is
// explicitly out of scope for this spec (spec §1 Non-goals); this
// package exists only so the pipeline has somewhere to record latency
// and outcome counts, matching the "Prometheus counters ... treated as
// an external collaborator" framing of spec §1.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome is the coarse per-request classification recorded by the
// pipeline: five values refining the four mutually-exclusive response
// kinds of spec §8 invariant 2, with Rejected and Errored splitting the
// 4xx/5xx short-circuit kind. An upstream response with status >= 400
// is also recorded as Errored.
type Outcome string

const (
	OutcomeHealth    Outcome = "health"
	OutcomeHardcoded Outcome = "hardcoded"
	OutcomeForwarded Outcome = "forwarded"
	OutcomeRejected  Outcome = "rejected"
	OutcomeErrored   Outcome = "errored"
)

// Recorder records request latency and outcome. It is safe for
// concurrent use and is write-only from the pipeline's perspective.
type Recorder struct {
	latency  *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
}

// NewRecorder creates and registers the recorder's collectors against
// reg. Passing prometheus.NewRegistry() in tests avoids colliding with
// the default global registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rbxproxy",
			Name:      "request_duration_seconds",
			Help:      "Latency of proxied requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rbxproxy",
			Name:      "request_outcomes_total",
			Help:      "Count of requests by pipeline outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(r.latency, r.outcomes)
	}
	return r
}

// Observe records one request's outcome and elapsed duration.
func (r *Recorder) Observe(outcome Outcome, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
	r.outcomes.WithLabelValues(string(outcome)).Inc()
}
