package envelope

import (
	"net/http"
	"time"

	"github.com/mfdlabs/rbx-proxy/internal/httpnorm"
	"github.com/mfdlabs/rbx-proxy/internal/metrics"
)

// Finalize runs the response "end" hook described in spec §4.1: it
// lowercases all outgoing header names, ensures connection: close is
// set if absent, stamps date, and records a latency sample. Clearing
// the context bag is the pipeline's responsibility, since envelope
// does not own the request-scoped state (spec §3 "Request Context...
// destroyed after response").
func Finalize(header http.Header, start time.Time, outcome metrics.Outcome, recorder *metrics.Recorder) {
	httpnorm.Lowercase(header)
	if header.Get("connection") == "" {
		header.Set("connection", "close")
	}
	header.Set("date", time.Now().UTC().Format(http.TimeFormat))

	if recorder != nil {
		recorder.Observe(outcome, time.Since(start))
	}
}
