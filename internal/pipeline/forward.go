package pipeline

import (
	"context"
	"errors"
	"html"
	"net/http"
	"net/url"

	"github.com/mfdlabs/rbx-proxy/internal/envelope"
	"github.com/mfdlabs/rbx-proxy/internal/forward"
	"github.com/mfdlabs/rbx-proxy/internal/httperror"
	"github.com/mfdlabs/rbx-proxy/internal/metrics"
)

// forward builds and issues the upstream request (component G), then
// relays the transformed response downstream, per spec §4.7.
func (p *Pipeline) forward(
	ctx context.Context,
	w http.ResponseWriter,
	r *http.Request,
	env envelope.Result,
	state *RequestState,
	routeWithQuery string,
	outcome *metrics.Outcome,
) {
	if rewriteSet := p.Rewrite.Current(); rewriteSet != nil {
		rewrittenPath := rewriteSet.Apply(r.URL.Path)
		if rewrittenPath != r.URL.Path {
			if newURL, err := url.Parse(rewrittenPath); err == nil {
				r.URL.Path = newURL.Path
				if newURL.RawQuery != "" {
					r.URL.RawQuery = newURL.RawQuery
				}
			}
		}
	}

	out, err := forward.BuildUpstreamRequest(ctx, r, p.Forward, env.Scheme, state.RewrittenHost, env.Port,
		env.ClientIP, env.Host, env.Scheme)
	if err != nil {
		httperror.WriteHTML(w, http.StatusInternalServerError, "Internal Server Error", "Failed to build upstream request.")
		*outcome = metrics.OutcomeErrored
		return
	}

	resp, elapsed, err := forward.Invoke(p.Client, out, state.RewrittenHost)
	if err != nil {
		p.writeForwardError(w, err)
		*outcome = metrics.OutcomeErrored
		return
	}

	body, err := forward.ReadAndTransform(resp, p.Forward.MaxBodyBytes, env.Host, state.RewrittenHost, elapsed)
	if err != nil {
		httperror.WriteHTML(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read upstream response.")
		*outcome = metrics.OutcomeErrored
		return
	}

	forward.ApplyCORS(resp.Header, p.CORS.Current(), routeWithQuery, r.Header.Get("origin"))

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)

	if forward.IsSuccessStatus(resp.StatusCode) {
		*outcome = metrics.OutcomeForwarded
	} else {
		*outcome = metrics.OutcomeErrored
	}

	if p.Telemetry != nil {
		p.Telemetry.Fire("forward", "upstream_call", state.RewrittenHost)
	}
}

func (p *Pipeline) writeForwardError(w http.ResponseWriter, err error) {
	var herr *httperror.Error
	if errors.As(err, &herr) {
		httperror.WriteHTML(w, herr.StatusCode, http.StatusText(herr.StatusCode), html.EscapeString(err.Error()))
		return
	}
	httperror.WriteHTML(w, http.StatusInternalServerError, "Internal Server Error", "upstream call failed")
}
