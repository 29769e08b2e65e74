package guard

import (
	"net/http"

	"github.com/mfdlabs/rbx-proxy/internal/httperror"
)

// Apply enacts v against the response, either writing a 403 HTML body
// or, for RejectByAbortingConnection, hijacking and closing the
// underlying connection without writing a response (spec §4.2).
// Hijack failure (e.g. HTTP/2, or a ResponseWriter that doesn't
// support it) falls back to the 403 form, since an unresponsive socket
// is strictly worse than an identifiable rejection.
func Apply(w http.ResponseWriter, v Verdict) {
	if v.Mode == RejectByAbortingConnection {
		if hj, ok := w.(http.Hijacker); ok {
			if conn, _, err := hj.Hijack(); err == nil {
				_ = conn.Close()
				return
			}
		}
	}
	httperror.WriteHTML(w, http.StatusForbidden, "Forbidden", "Your request was rejected by the source guard.")
}
