package forward

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/mfdlabs/rbx-proxy/internal/cors"
	"github.com/mfdlabs/rbx-proxy/internal/httperror"
)

// Invoke sends req via client, measures elapsed time, and classifies
// the result per spec §4.7's upstream call policy: "Response status
// treated as success for all codes in [0, 400); [400, ∞) is routed to
// the error branch" is the caller's job once a *http.Response is
// returned — Invoke itself only distinguishes "got a response" from
// "timed out / connection failed".
func Invoke(client *http.Client, req *http.Request, upstreamLabel string) (*http.Response, time.Duration, error) {
	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if isTimeout(err) {
			return nil, elapsed, httperror.New(httperror.KindGatewayTimeout, http.StatusGatewayTimeout,
				fmt.Errorf("%s timed out after %dms", upstreamLabel, elapsed.Milliseconds()))
		}
		return nil, elapsed, httperror.New(httperror.KindUpstreamError, http.StatusBadGateway, err)
	}
	return resp, elapsed, nil
}

// isTimeout reports whether err stems from a client-side timeout or an
// aborted connection, the conditions spec §4.7 groups with "ECONNABORTED
// and analogous conditions".
func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout()
	}
	return false
}

// ReadAndTransform reads resp's body (bounded by maxBodyBytes), runs
// the response transformation pipeline, and returns the final body
// bytes ready to be written downstream.
func ReadAndTransform(resp *http.Response, maxBodyBytes int64, originalHost, rewrittenHost string, elapsed time.Duration) ([]byte, error) {
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if maxBodyBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBodyBytes)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("forward: reading upstream body: %w", err)
	}

	return TransformResponse(resp.Header, raw, originalHost, rewrittenHost, elapsed), nil
}

// ApplyCORS runs the CORS response rewriting step (spec §4.7 step 2)
// against resp's header, using the rule looked up for routeWithQuery.
func ApplyCORS(header http.Header, set *cors.Set, routeWithQuery, origin string) {
	rule := set.Lookup(routeWithQuery)
	if rule == nil {
		return
	}
	rule.ApplyToResponse(header, origin)
}

// IsSuccessStatus implements spec §4.7 "Response status treated as
// success for all codes in [0, 400); [400, ∞) is routed to the error
// branch."
func IsSuccessStatus(statusCode int) bool {
	return statusCode < http.StatusBadRequest
}
