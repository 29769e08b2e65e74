// Package pipeline wires the Request Envelope, Source Guard, Health &
// Info Responder, Hostname Resolver, Safety Filter, Rule Engine, and
// Forwarder (spec §2) into one per-request flow, and owns the
// per-request RequestState (spec §3 "Request Context").
package pipeline

import (
	"context"
	"net/netip"
	"time"
)

// ctxKey is an unexported type so RequestState can only be retrieved
// through FromContext, mirroring the teacher's caddy.CtxKey pattern
// (SPEC_FULL §3).
type ctxKey struct{}

// RequestState is the per-request context bag (spec §3 "Request
// Context"), exclusively owned by the pipeline and destroyed when the
// request's context.Context is done.
type RequestState struct {
	ClientIP netip.Addr

	OriginalHost  string
	RewrittenHost string
	ResolvedAddrs []netip.Addr

	Scheme string
	Port   int

	Start time.Time

	Bag map[string]any
}

// NewRequestState constructs a fresh RequestState stamped with the
// current time as its monotonic start marker.
func NewRequestState() *RequestState {
	return &RequestState{
		Start: time.Now(),
		Bag:   make(map[string]any),
	}
}

// WithState attaches state to ctx.
func WithState(ctx context.Context, state *RequestState) context.Context {
	return context.WithValue(ctx, ctxKey{}, state)
}

// FromContext retrieves the RequestState stored by WithState, or nil
// if none is present.
func FromContext(ctx context.Context) *RequestState {
	state, _ := ctx.Value(ctxKey{}).(*RequestState)
	return state
}

// Clear empties the context bag, per spec §4.1's response "end" hook
// step (d): "clears the context bag."
func (s *RequestState) Clear() {
	for k := range s.Bag {
		delete(s.Bag, k)
	}
}
