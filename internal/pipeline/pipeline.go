package pipeline

import (
	"errors"
	"html"
	"net"
	"net/http"
	"net/netip"

	"go.uber.org/zap"

	"github.com/mfdlabs/rbx-proxy/internal/cors"
	"github.com/mfdlabs/rbx-proxy/internal/envelope"
	"github.com/mfdlabs/rbx-proxy/internal/forward"
	"github.com/mfdlabs/rbx-proxy/internal/guard"
	"github.com/mfdlabs/rbx-proxy/internal/health"
	"github.com/mfdlabs/rbx-proxy/internal/httperror"
	"github.com/mfdlabs/rbx-proxy/internal/metrics"
	"github.com/mfdlabs/rbx-proxy/internal/resolve"
	"github.com/mfdlabs/rbx-proxy/internal/rules"
	"github.com/mfdlabs/rbx-proxy/internal/safety"
	"github.com/mfdlabs/rbx-proxy/internal/telemetry"
)

// Pipeline wires components A-G into one http.Handler, per spec §2's
// "Data flows top-to-bottom; each stage may short-circuit the
// response."
type Pipeline struct {
	Envelope envelope.Config
	Guard    guard.Config
	Health   health.Config
	Resolver resolve.Resolver
	Safety   *safety.Filter

	Rules   *rules.Loader
	Rewrite *rules.RewriteLoader
	CORS    *cors.Loader

	Forward       forward.Config
	Client        *http.Client
	DefaultScheme string
	DefaultPort   int

	Metrics   *metrics.Recorder
	Telemetry telemetry.Sink
	Log       *zap.Logger
}

// ServeHTTP implements http.Handler. A panic anywhere in the pipeline
// is recovered and surfaced as a generic 500, mirroring the teacher's
// last-resort recovery middleware (SPEC_FULL §7).
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	state := NewRequestState()
	ctx := WithState(r.Context(), state)
	r = r.WithContext(ctx)

	outcome := metrics.OutcomeErrored
	defer func() {
		if rec := recover(); rec != nil {
			p.Log.Error("pipeline: recovered panic", zap.Any("panic", rec))
			httperror.WriteHTML(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred.")
			outcome = metrics.OutcomeErrored
		}
		envelope.Finalize(w.Header(), state.Start, outcome, p.Metrics)
		state.Clear()
	}()

	peerAddr := peerAddrFrom(r.RemoteAddr)
	env := envelope.Normalize(r, p.Envelope, peerAddr, r.Host, p.DefaultScheme, p.DefaultPort)
	state.ClientIP, _ = netip.ParseAddr(env.ClientIP)
	state.Scheme = env.Scheme
	state.Port = env.Port

	if v := guard.Check(p.Guard, state.ClientIP, r.UserAgent()); v.Rejected {
		guard.Apply(w, v)
		outcome = metrics.OutcomeRejected
		return
	}

	if p.Health.Matches(r.URL.Path) {
		health.Respond(w, p.Health)
		outcome = metrics.OutcomeHealth
		return
	}

	result, err := p.Resolver.Resolve(ctx, env.Host)
	if err != nil {
		p.writeResolveError(w, env.Host, err)
		outcome = metrics.OutcomeErrored
		return
	}
	state.OriginalHost = result.OriginalHost
	state.RewrittenHost = result.RewrittenHost
	state.ResolvedAddrs = result.Addresses

	var hostLiteral netip.Addr
	if addr, err := netip.ParseAddr(result.OriginalHost); err == nil {
		hostLiteral = addr
	}
	if v := p.Safety.Check(hostLiteral, result.Addresses); v.Unsafe {
		httperror.WriteHTML(w, http.StatusForbidden, "Forbidden",
			"Request from "+html.EscapeString(state.ClientIP.String())+" to "+html.EscapeString(result.RewrittenHost)+" was rejected by the safety filter.")
		outcome = metrics.OutcomeRejected
		return
	}

	routeWithQuery := r.URL.RequestURI()
	if ruleSet := p.Rules.Current(); ruleSet != nil {
		if rule := ruleSet.Lookup(routeWithQuery, result.OriginalHost, r.Method, env.Scheme); rule != nil {
			resp, merr := rule.Materialize()
			if merr != nil {
				httperror.WriteHTML(w, http.StatusInternalServerError, "Internal Server Error", "Failed to materialize hardcoded response.")
				outcome = metrics.OutcomeErrored
				return
			}
			writeHardcoded(w, resp)
			outcome = metrics.OutcomeHardcoded
			return
		}
	}

	p.forward(ctx, w, r, env, state, routeWithQuery, &outcome)
}

func (p *Pipeline) writeResolveError(w http.ResponseWriter, host string, err error) {
	if errors.Is(err, resolve.ErrMissingHost) {
		httperror.WriteHTML(w, http.StatusBadRequest, "Bad Request", "host header is missing")
		return
	}
	httperror.WriteHTML(w, http.StatusServiceUnavailable, "Service Unavailable",
		"hostname could not be resolved: "+html.EscapeString(host))
}

func writeHardcoded(w http.ResponseWriter, resp rules.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func peerAddrFrom(remoteAddr string) netip.Addr {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}
	}
	return addr
}
