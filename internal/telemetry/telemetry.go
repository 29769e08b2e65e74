// Package telemetry implements the narrow fire-and-forget analytics
// capability described in spec §9: "Abstract behind a narrow
// Telemetry capability with methods fire(category, action, label)...
// Never allow telemetry latency or failure to affect request outcome."
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Sink is implemented by every telemetry backend. Fire must return in
// O(1) from the caller's perspective: it must never block on network
// I/O and must never surface an error to the pipeline.
type Sink interface {
	Fire(category, action, label string)
}

// Noop is the default Sink, and the one tests should use.
type Noop struct{}

// Fire does nothing.
func (Noop) Fire(string, string, string) {}

type event struct {
	Category string
	Action   string
	Label    string
}

// Async is the production Sink. It buffers events on a bounded channel
// drained by a single background goroutine that posts to a GA4
// Measurement Protocol endpoint. When the channel is full, the event
// is dropped (and counted) rather than blocking the caller.
type Async struct {
	measurementID string
	apiSecret     string
	client        *http.Client
	events        chan event
	dropped       chan struct{}
	droppedCount  atomic.Uint64
	log           *zap.Logger
}

// NewAsync constructs an Async sink and starts its drain goroutine.
// ctx cancellation stops the drain loop.
func NewAsync(ctx context.Context, measurementID, apiSecret string, log *zap.Logger) *Async {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Async{
		measurementID: measurementID,
		apiSecret:     apiSecret,
		client:        &http.Client{Timeout: 5 * time.Second},
		events:        make(chan event, 256),
		dropped:       make(chan struct{}, 1),
		log:           log,
	}
	go a.drain(ctx)
	return a
}

// Fire enqueues category/action/label without blocking; it drops the
// event on a full queue.
func (a *Async) Fire(category, action, label string) {
	select {
	case a.events <- event{Category: category, Action: action, Label: label}:
	default:
		a.droppedCount.Add(1)
		select {
		case a.dropped <- struct{}{}:
			a.log.Warn("telemetry: event queue full, dropping event",
				zap.String("category", category), zap.String("action", action))
		default:
		}
	}
}

func (a *Async) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-a.events:
			a.post(ctx, e)
		}
	}
}

func (a *Async) post(ctx context.Context, e event) {
	if a.measurementID == "" {
		return
	}
	body, err := json.Marshal(map[string]any{
		"client_id": "rbx-proxy",
		"events": []map[string]any{
			{
				"name": e.Action,
				"params": map[string]any{
					"category": e.Category,
					"label":    e.Label,
				},
			},
		},
	})
	if err != nil {
		return
	}
	url := "https://www.google-analytics.com/mp/collect?measurement_id=" + a.measurementID + "&api_secret=" + a.apiSecret
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("content-type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Debug("telemetry: fire-and-forget post failed", zap.Error(err))
		return
	}
	_ = resp.Body.Close()
}
