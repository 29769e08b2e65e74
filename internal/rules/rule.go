package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleMeta is the internal bookkeeping attached to every loaded rule
// (spec §3 "internal _meta").
type RuleMeta struct {
	SourceFile string
	ID         string
	CreatedAt  time.Time
}

// HardcodedRule is a fully-compiled hardcoded-response rule, per spec
// §3.
type HardcodedRule struct {
	RouteTemplate      string            `yaml:"route_template" json:"route_template"`
	Hostname           string            `yaml:"hostname" json:"hostname"`
	Method             string            `yaml:"method" json:"method"`
	Scheme             string            `yaml:"scheme" json:"scheme"`
	Weight             int               `yaml:"weight" json:"weight"`
	StatusCode         int               `yaml:"status_code" json:"status_code"`
	Headers           map[string]string `yaml:"headers" json:"headers"`
	Body              any               `yaml:"body" json:"body"`
	FormatBody        bool              `yaml:"format_body" json:"format_body"`
	TemplateVariables map[string]string `yaml:"template_variables" json:"template_variables"`

	Meta RuleMeta `yaml:"-" json:"-"`

	routeMatcher  Matcher
	hostMatcher   Matcher
	methodMatcher Matcher
}

// compile fills in defaults and compiles the three regex fields into
// Matchers, assigns a fresh _meta.id/created_at, and stamps
// sourceFile. It is called exactly once per rule, at load time.
func (r *HardcodedRule) compile(sourceFile string) error {
	if r.StatusCode == 0 {
		r.StatusCode = 200
	}
	if r.Scheme == "" {
		r.Scheme = "*"
	}

	var err error
	if r.routeMatcher, err = compileMatcher(r.RouteTemplate); err != nil {
		return fmt.Errorf("rules: invalid route_template %q: %w", r.RouteTemplate, err)
	}
	if r.hostMatcher, err = compileMatcher(r.Hostname); err != nil {
		return fmt.Errorf("rules: invalid hostname %q: %w", r.Hostname, err)
	}
	if r.methodMatcher, err = compileMatcher(r.Method); err != nil {
		return fmt.Errorf("rules: invalid method %q: %w", r.Method, err)
	}

	r.Meta = RuleMeta{
		SourceFile: sourceFile,
		ID:         uuid.NewString(),
		CreatedAt:  time.Now(),
	}
	return nil
}

// dedupeKey is the tuple identifying duplicate rules per spec §3:
// "Duplicate rules (same tuple of route/host/method/scheme) collapse
// to a single entry".
func (r *HardcodedRule) dedupeKey() string {
	return r.RouteTemplate + "\x00" + r.Hostname + "\x00" + r.Method + "\x00" + r.Scheme
}

// specificity is the count of '/' characters across the three regex
// source strings (spec §3 GLOSSARY "Specificity").
func (r *HardcodedRule) specificity() int {
	return strings.Count(r.RouteTemplate, "/") +
		strings.Count(r.Hostname, "/") +
		strings.Count(r.Method, "/")
}

// Matches reports whether the rule applies to the given request
// components, per spec §4.6's four-predicate conjunction.
func (r *HardcodedRule) Matches(routeWithQuery, host, method, scheme string) bool {
	if r.Scheme != "*" && r.Scheme != scheme {
		return false
	}
	return r.routeMatcher.Match(routeWithQuery) &&
		r.hostMatcher.Match(host) &&
		r.methodMatcher.Match(method)
}

// Response is the materialized hardcoded response (spec §4.6).
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Materialize builds the Response for this rule, applying
// template-variable interpolation to the body when FormatBody is set.
func (r *HardcodedRule) Materialize() (Response, error) {
	bodyStr, isJSON, err := r.renderBody()
	if err != nil {
		return Response{}, err
	}

	headers := make(map[string]string, len(r.Headers)+2)
	for k, v := range r.Headers {
		headers[strings.ToLower(k)] = v
	}
	headers["x-hardcoded-response-template"] = r.RouteTemplate
	if _, ok := headers["content-type"]; !ok {
		if isJSON {
			headers["content-type"] = "application/json"
		} else {
			headers["content-type"] = "text/html"
		}
	}
	headers["content-length"] = strconv.Itoa(len(bodyStr))

	return Response{
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       []byte(bodyStr),
	}, nil
}

func (r *HardcodedRule) renderBody() (body string, isJSON bool, err error) {
	switch v := r.Body.(type) {
	case nil:
		body = ""
	case string:
		body = v
	default:
		encoded, merr := json.Marshal(v)
		if merr != nil {
			return "", false, fmt.Errorf("rules: encoding structured body: %w", merr)
		}
		body = string(encoded)
		isJSON = true
	}
	if r.FormatBody {
		for k, v := range r.TemplateVariables {
			body = strings.ReplaceAll(body, "{{"+k+"}}", v)
		}
	}
	return body, isJSON, nil
}
