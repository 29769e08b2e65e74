// Package cors implements the per-route CORS rule lookup and response
// rewriting applied by the Forwarder (spec §3 "CORS Rule", §4.7 step
// 2). Header name constants and the allow/forbid vocabulary are
// grounded on github.com/jub0bs/cors's internal/headers package.
package cors

import (
	"fmt"
	"regexp"
)

// Canonical header names, matching net/http's header canonicalization
// (http.CanonicalHeaderKey), mirroring jub0bs/cors's internal/headers
// constant block.
const (
	HeaderOrigin = "Origin"
	HeaderACAO   = "Access-Control-Allow-Origin"
	HeaderACAC   = "Access-Control-Allow-Credentials"
	HeaderACAM   = "Access-Control-Allow-Methods"
	HeaderACAH   = "Access-Control-Allow-Headers"
	HeaderACEH   = "Access-Control-Expose-Headers"
	HeaderACMA   = "Access-Control-Max-Age"
	HeaderVary   = "Vary"
)

// Rule is a per-route CORS policy (spec §3 "CORS Rule").
type Rule struct {
	RouteTemplate                 string   `yaml:"route_template" json:"route_template"`
	AllowedOrigins                []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods                []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders                []string `yaml:"allowed_headers" json:"allowed_headers"`
	ExposedHeaders                []string `yaml:"exposed_headers" json:"exposed_headers"`
	MaxAge                        int      `yaml:"max_age" json:"max_age"`
	AllowCredentials              bool     `yaml:"allow_credentials" json:"allow_credentials"`
	AllowRequestOriginIfNoAllowed bool     `yaml:"allow_request_origin_if_no_allowed_origins" json:"allow_request_origin_if_no_allowed_origins"`
	AllowResponseHeadersOverwrite bool     `yaml:"allow_response_headers_overwrite" json:"allow_response_headers_overwrite"`

	routePattern   *regexp.Regexp
	originPatterns []*regexp.Regexp
}

func (r *Rule) compile() error {
	pattern, err := regexp.Compile(r.RouteTemplate)
	if err != nil {
		return fmt.Errorf("cors: invalid route_template %q: %w", r.RouteTemplate, err)
	}
	r.routePattern = pattern

	r.originPatterns = make([]*regexp.Regexp, 0, len(r.AllowedOrigins))
	for _, o := range r.AllowedOrigins {
		if o == "*" {
			r.originPatterns = append(r.originPatterns, nil) // nil sentinel == wildcard
			continue
		}
		re, err := regexp.Compile(o)
		if err != nil {
			return fmt.Errorf("cors: invalid allowed_origins entry %q: %w", o, err)
		}
		r.originPatterns = append(r.originPatterns, re)
	}
	return nil
}

// MatchesRoute reports whether the rule applies to the given request
// path (+query).
func (r *Rule) MatchesRoute(routeWithQuery string) bool {
	return r.routePattern.MatchString(routeWithQuery)
}

// AllowsOrigin reports whether origin is permitted by the rule's
// allow-list, per spec §4.7 step 2: "If the origin is in the rule's
// allow set (or the 'apply regardless' flag is set)".
func (r *Rule) AllowsOrigin(origin string) bool {
	if r.AllowRequestOriginIfNoAllowed && len(r.originPatterns) == 0 {
		return true
	}
	for _, p := range r.originPatterns {
		if p == nil { // wildcard entry
			return true
		}
		if p.MatchString(origin) {
			return true
		}
	}
	return false
}
