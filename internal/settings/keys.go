package settings

// Environment names. Each key below is owned by exactly one of these,
// per spec §4.8's single-owner invariant.
const (
	EnvGuard      = "guard"
	EnvProxy      = "proxy"
	EnvResolver   = "resolver"
	EnvSafety     = "safety"
	EnvRules      = "rules"
	EnvForwarder  = "forwarder"
	EnvReplicator = "replicator"
	EnvHealth     = "health"
	EnvTelemetry  = "telemetry"
	EnvServer     = "server"
)

// Representative environment variables from spec §6. RegisterDefaults
// wires every one of them into r with its environment, type and
// default, so that every other package obtains its configuration
// exclusively through the typed accessors on *Registry.
func RegisterDefaults(r *Registry) {
	// Source Guard (§4.2)
	r.Register("CIDR_CHECK_ENABLED", EnvGuard, KindBool, "false")
	r.Register("CIDR_CHECK_ALLOWED_V4", EnvGuard, KindCIDRList, "")
	r.Register("CIDR_CHECK_ALLOWED_V6", EnvGuard, KindCIDRList, "")
	r.Register("CIDR_CHECK_ABORT_CONNECTION", EnvGuard, KindBool, "false")
	r.Register("CRAWLER_CHECK_ENABLED", EnvGuard, KindBool, "false")
	r.Register("CRAWLER_CHECK_ABORT_CONNECTION", EnvGuard, KindBool, "false")

	// Request Envelope / trusted reverse proxy (§4.1)
	r.Register("TRUSTED_PROXY_CIDR_V4", EnvProxy, KindCIDRList, "")
	r.Register("TRUSTED_PROXY_CIDR_V6", EnvProxy, KindCIDRList, "")
	r.Register("CLOUDFLARE_AWARE", EnvProxy, KindBool, "false")
	r.Register("FORWARDED_FOR_HEADER", EnvProxy, KindString, "x-forwarded-for")
	r.Register("FORWARDED_HOST_HEADER", EnvProxy, KindString, "x-forwarded-host")
	r.Register("FORWARDED_PROTO_HEADER", EnvProxy, KindString, "x-forwarded-proto")
	r.Register("FORWARDED_PORT_HEADER", EnvProxy, KindString, "x-forwarded-port")
	r.Register("CLOUDFLARE_IP_HEADER", EnvProxy, KindString, "cf-connecting-ip")

	// Hostname Resolver (§4.4)
	r.Register("STRIP_PORT_FROM_HOST", EnvResolver, KindBool, "true")
	r.Register("HOSTNAME_REWRITE_REGEX", EnvResolver, KindString, `^([a-z0-9-]+)\.gametest\d*\.example\.com$`)
	r.Register("PRODUCTION_APEX", EnvResolver, KindString, "example.com")

	// Safety Filter (§4.5)
	r.Register("LAN_ACCESS_DENIED", EnvSafety, KindBool, "true")
	r.Register("PUBLIC_IP_DISCOVERY_URL", EnvSafety, KindString, "https://api.ipify.org")

	// Rule Engine (§4.6)
	r.Register("RULES_FILE_NAME", EnvRules, KindString, "hardcoded_responses.yaml")
	r.Register("RULES_BASE_DIRECTORY", EnvRules, KindString, "./config")
	r.Register("RULES_RELOAD_ON_REQUEST", EnvRules, KindBool, "false")
	r.Register("CORS_RULES_FILE_NAME", EnvRules, KindString, "cors_rules.yaml")
	r.Register("REWRITE_RULES_FILE_NAME", EnvRules, KindString, "rewrite_rules.yaml")

	// Forwarder (§4.7)
	r.Register("UPSTREAM_TIMEOUT_MS", EnvForwarder, KindInt, "35000")
	r.Register("UPSTREAM_MAX_BODY_BYTES", EnvForwarder, KindInt, "5368709120") // 5 GiB

	// Config Replicator (§4.8)
	r.Register("REPLICATOR_GROUP_ADDRESS", EnvReplicator, KindString, "224.0.0.3")
	r.Register("REPLICATOR_PORT", EnvReplicator, KindInt, "5000")

	// Health & Info Responder (§4.3)
	r.Register("HEALTH_PATH", EnvHealth, KindString, "/_lb/_/health")
	r.Register("HEALTH_PATH_ALT", EnvHealth, KindString, "/_lb/_/checkhealth")
	r.Register("ARC_DEPLOY_MODE", EnvHealth, KindBool, "false")

	// Telemetry (§4.9, ambient)
	r.Register("GA4_MEASUREMENT_ID", EnvTelemetry, KindString, "")
	r.Register("GA4_API_SECRET", EnvTelemetry, KindString, "")

	// Listen sockets / TLS (§6 "External Interfaces")
	r.Register("HTTP_LISTEN_ADDRESS", EnvServer, KindString, "0.0.0.0:80")
	r.Register("HTTPS_LISTEN_ADDRESS", EnvServer, KindString, "0.0.0.0:443")
	r.Register("TLS_ENABLED", EnvServer, KindBool, "false")
	r.Register("TLS_BASE_DIRECTORY", EnvServer, KindString, "./tls")
	r.Register("TLS_CERT_FILE", EnvServer, KindString, "")
	r.Register("TLS_KEY_FILE", EnvServer, KindString, "")
	r.Register("DEVELOPMENT_LOGGING", EnvServer, KindBool, "false")
}
