package main

import (
	"context"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mfdlabs/rbx-proxy/internal/cors"
	"github.com/mfdlabs/rbx-proxy/internal/envelope"
	"github.com/mfdlabs/rbx-proxy/internal/forward"
	"github.com/mfdlabs/rbx-proxy/internal/guard"
	"github.com/mfdlabs/rbx-proxy/internal/health"
	"github.com/mfdlabs/rbx-proxy/internal/logging"
	"github.com/mfdlabs/rbx-proxy/internal/metrics"
	"github.com/mfdlabs/rbx-proxy/internal/netutil"
	"github.com/mfdlabs/rbx-proxy/internal/pipeline"
	"github.com/mfdlabs/rbx-proxy/internal/replicator"
	"github.com/mfdlabs/rbx-proxy/internal/resolve"
	"github.com/mfdlabs/rbx-proxy/internal/rules"
	"github.com/mfdlabs/rbx-proxy/internal/safety"
	"github.com/mfdlabs/rbx-proxy/internal/server"
	"github.com/mfdlabs/rbx-proxy/internal/settings"
	"github.com/mfdlabs/rbx-proxy/internal/telemetry"
)

var envFile string

func init() {
	runCmd.Flags().StringVar(&envFile, "env-file", ".env", "Path to an optional dotenv file, loaded into the process environment before settings are read")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs rbxproxy in the foreground until interrupted",
	Long: `Run loads configuration from the environment (optionally
seeded by --env-file), wires the request pipeline, starts the
multicast config replicator, and blocks serving HTTP (and, if
enabled, HTTPS) until it receives SIGINT/SIGTERM.`,
	RunE: runRbxProxy,
}

func runRbxProxy(cmd *cobra.Command, args []string) error {
	// godotenv.Load is a no-op (returns an error we ignore) when the
	// file is absent, mirroring the teacher's "config is optional"
	// posture for local/dev bootstrapping.
	_ = godotenv.Load(envFile)

	reg := settings.NewFromEnviron(zap.NewNop())
	settings.RegisterDefaults(reg)

	log, err := logging.New(reg.Bool("DEVELOPMENT_LOGGING"))
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	var telemetrySink telemetry.Sink = telemetry.Noop{}
	if measurementID := reg.String("GA4_MEASUREMENT_ID"); measurementID != "" {
		telemetrySink = telemetry.NewAsync(ctx, measurementID, reg.String("GA4_API_SECRET"), log)
	}

	repl, err := replicator.New(reg.String("REPLICATOR_GROUP_ADDRESS"), reg.Int("REPLICATOR_PORT"), reg, log)
	if err != nil {
		return err
	}
	if err := repl.Start(); err != nil {
		return err
	}
	defer repl.Stop() //nolint:errcheck

	rulesPath := filepath.Join(reg.String("RULES_BASE_DIRECTORY"), reg.String("RULES_FILE_NAME"))
	rewritePath := filepath.Join(reg.String("RULES_BASE_DIRECTORY"), reg.String("REWRITE_RULES_FILE_NAME"))
	corsPath := filepath.Join(reg.String("RULES_BASE_DIRECTORY"), reg.String("CORS_RULES_FILE_NAME"))
	reloadOnRequest := reg.Bool("RULES_RELOAD_ON_REQUEST")

	rewrite, err := resolve.NewRewrite(reg.String("HOSTNAME_REWRITE_REGEX"), reg.String("PRODUCTION_APEX"))
	if err != nil {
		return err
	}

	hostname, _ := os.Hostname()
	localV4, localV6, err := netutil.LocalAddrs()
	if err != nil {
		log.Warn("rbxproxy: could not detect local interface addresses", zap.Error(err))
	}

	p := &pipeline.Pipeline{
		Envelope: envelope.Config{
			TrustedProxies:       netutil.Merge(reg.CIDRList("TRUSTED_PROXY_CIDR_V4"), reg.CIDRList("TRUSTED_PROXY_CIDR_V6")),
			RewriteClientIP:      true,
			RewriteHost:          true,
			RewriteScheme:        true,
			RewritePort:          true,
			ForwardedForHeader:   reg.String("FORWARDED_FOR_HEADER"),
			ForwardedHostHeader:  reg.String("FORWARDED_HOST_HEADER"),
			ForwardedProtoHeader: reg.String("FORWARDED_PROTO_HEADER"),
			ForwardedPortHeader:  reg.String("FORWARDED_PORT_HEADER"),
			CloudflareAware:      reg.Bool("CLOUDFLARE_AWARE"),
			CloudflareHeader:     reg.String("CLOUDFLARE_IP_HEADER"),
		},
		Guard: guard.Config{
			CIDRCheckEnabled:     reg.Bool("CIDR_CHECK_ENABLED"),
			AllowedCIDRs:         netutil.Merge(reg.CIDRList("CIDR_CHECK_ALLOWED_V4"), reg.CIDRList("CIDR_CHECK_ALLOWED_V6")),
			CIDRRejectionMode:    rejectionMode(reg.Bool("CIDR_CHECK_ABORT_CONNECTION")),
			CrawlerCheckEnabled:  reg.Bool("CRAWLER_CHECK_ENABLED"),
			CrawlerRejectionMode: rejectionMode(reg.Bool("CRAWLER_CHECK_ABORT_CONNECTION")),
		},
		Health: health.Config{
			Paths:        []string{reg.String("HEALTH_PATH"), reg.String("HEALTH_PATH_ALT")},
			Hostname:     hostname,
			LocalAddress: localAddressString(localV4, localV6),
			ServerName:   "rbx-proxy",
			PoweredBy:    "rbx-proxy",
			ServiceName:  "rbx-proxy",

			ARCDeployMode: reg.Bool("ARC_DEPLOY_MODE"),
		},
		Resolver: resolve.Resolver{
			StripPort: reg.Bool("STRIP_PORT_FROM_HOST"),
			Rewrite:   rewrite,
		},
		Safety: safety.NewFilter(localV4, localV6, reg.Bool("LAN_ACCESS_DENIED"), newPublicIPFetcher(reg.String("PUBLIC_IP_DISCOVERY_URL"))),

		Rules:   rules.NewLoader(rulesPath, reloadOnRequest, log),
		Rewrite: rules.NewRewriteLoader(rewritePath, reloadOnRequest, log),
		CORS:    cors.NewLoader(corsPath, reloadOnRequest, log),

		Forward: forward.Config{
			Timeout:      time.Duration(reg.Int("UPSTREAM_TIMEOUT_MS")) * time.Millisecond,
			MaxBodyBytes: int64(reg.Int("UPSTREAM_MAX_BODY_BYTES")),
		},

		DefaultScheme: "http",
		DefaultPort:   80,

		Metrics:   recorder,
		Telemetry: telemetrySink,
		Log:       log,
	}
	p.Client = forward.NewClient(p.Forward)

	mux := http.NewServeMux()
	mux.Handle("/", p)

	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	listeners := []func() error{
		func() error { return server.Serve(ctx, ":9090", adminMux, 5*time.Second) },
		func() error { return server.Serve(ctx, reg.String("HTTP_LISTEN_ADDRESS"), mux, 5*time.Second) },
	}
	if reg.Bool("TLS_ENABLED") {
		tlsCfg, err := resolveTLSConfig(reg)
		if err != nil {
			return err
		}
		listeners = append(listeners, func() error {
			return server.ServeTLS(ctx, reg.String("HTTPS_LISTEN_ADDRESS"), mux, tlsCfg, 5*time.Second)
		})
	}

	log.Info("rbxproxy: listening",
		zap.String("http", reg.String("HTTP_LISTEN_ADDRESS")),
		zap.Bool("tls_enabled", reg.Bool("TLS_ENABLED")))

	return waitAll(listeners)
}

// waitAll runs each listener concurrently and returns the first
// non-nil error, mirroring the teacher's pattern of running the HTTP
// and HTTPS listeners side by side (caddyhttp/httpserver/server.go).
func waitAll(fns []func() error) error {
	errCh := make(chan error, len(fns))
	for _, fn := range fns {
		fn := fn
		go func() { errCh <- fn() }()
	}
	var firstErr error
	for range fns {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// localAddressString picks the address the Health Responder's
// x-lb-service header should report (spec §4.3), preferring IPv4.
func localAddressString(v4, v6 netip.Addr) string {
	if v4.IsValid() {
		return v4.String()
	}
	if v6.IsValid() {
		return v6.String()
	}
	return ""
}

func rejectionMode(abort bool) guard.RejectionMode {
	if abort {
		return guard.RejectByAbortingConnection
	}
	return guard.RejectWithHTTP403
}

// resolveTLSConfig resolves the cert/key settings of spec §6 ("Inputs
// are either PEM contents or filenames relative to a TLS base
// directory, detected by PEM header prefix") down to the two file
// paths server.ServeTLS expects. Inline PEM content is spilled to a
// temp file, since tls.LoadX509KeyPair only reads from disk.
func resolveTLSConfig(reg *settings.Registry) (server.TLSConfig, error) {
	certFile, err := materializePEM(reg.String("TLS_CERT_FILE"), reg.String("TLS_BASE_DIRECTORY"), "rbxproxy-cert-*.pem")
	if err != nil {
		return server.TLSConfig{}, err
	}
	keyFile, err := materializePEM(reg.String("TLS_KEY_FILE"), reg.String("TLS_BASE_DIRECTORY"), "rbxproxy-key-*.pem")
	if err != nil {
		return server.TLSConfig{}, err
	}
	return server.TLSConfig{CertFile: certFile, KeyFile: keyFile}, nil
}

func looksLikePEM(s string) bool {
	return len(s) > 10 && s[:10] == "-----BEGIN"
}

func materializePEM(value, baseDir, pattern string) (string, error) {
	if !looksLikePEM(value) {
		return filepath.Join(baseDir, value), nil
	}
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(value); err != nil {
		return "", err
	}
	return f.Name(), nil
}
