package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleYAML = `
- route_template: "^/status$"
  hostname: "api.example.com"
  method: "GET"
  status_code: 200
  body: "ok"
- route_template: "^/status$"
  hostname: "api.example.com"
  method: "GET"
  status_code: 418
  body: "duplicate, should be dropped"
- route_template: ""
  hostname: ""
  method: ""
  weight: 1
  status_code: 404
  body: "fallback"
`

func TestSetDeterministicMatchAndDedupe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	loader := NewLoader(path, false, nil)
	set := loader.Current()

	// Duplicate (route, host, method, scheme) tuple collapses to the
	// first occurrence, so status_code 200 wins over 418.
	require.Equal(t, 2, set.Len())

	match := set.Lookup("/status", "api.example.com", "GET", "https")
	require.NotNil(t, match)
	resp, err := match.Materialize()
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "ok", string(resp.Body))

	fallback := set.Lookup("/anything-else", "other.example.com", "POST", "https")
	require.NotNil(t, fallback)
	fbResp, err := fallback.Materialize()
	require.NoError(t, err)
	require.Equal(t, 404, fbResp.StatusCode)
}

func TestSetSortOrderStableAcrossReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	loader := NewLoader(path, true, nil)
	first := loader.Current()
	second := loader.Current()

	require.Equal(t, first.Len(), second.Len())
	for i := range first.rules {
		require.Equal(t, first.rules[i].Meta.ID != "", true)
		require.Equal(t, first.rules[i].RouteTemplate, second.rules[i].RouteTemplate)
	}
}

func TestLoaderRetainsPreviousSetOnMalformedReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	loader := NewLoader(path, true, nil)
	good := loader.Current()
	require.Equal(t, 2, good.Len())

	require.NoError(t, os.WriteFile(path, []byte("not: [valid, yaml"), 0o644))
	afterBadWrite := loader.Current()
	require.Same(t, good, afterBadWrite)
}

func TestLoaderNotReloadedWithoutReloadOnRequest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	loader := NewLoader(path, false, nil)
	first := loader.Current()

	require.NoError(t, os.WriteFile(path, []byte("not: [valid, yaml"), 0o644))
	second := loader.Current()
	require.Same(t, first, second)
}

const sampleRewriteYAML = `
- path_pattern: "^/games/(\\d+)$"
  target_template: "/v2/games/$1/details"
  weight: 10
- path_pattern: "^/games/(\\d+)$"
  target_template: "/v1/games/$1"
  weight: 1
`

func TestRewriteSetAppliesHighestWeightFirst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rewrite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRewriteYAML), 0o644))

	loader := NewRewriteLoader(path, false, nil)
	set := loader.Current()
	require.Equal(t, 2, set.Len())

	out := set.Apply("/games/123")
	require.Equal(t, "/v2/games/123/details", out)

	unmatched := set.Apply("/unrelated")
	require.Equal(t, "/unrelated", unmatched)
}

func TestMatcherKinds(t *testing.T) {
	any, err := compileMatcher("")
	require.NoError(t, err)
	require.Equal(t, MatchAny, any.Kind)
	require.True(t, any.Match("literally-anything"))

	lit, err := compileMatcher("exact-value")
	require.NoError(t, err)
	require.Equal(t, MatchLiteral, lit.Kind)
	require.True(t, lit.Match("exact-value"))
	require.False(t, lit.Match("exact-values"))

	re, err := compileMatcher("^a.*z$")
	require.NoError(t, err)
	require.Equal(t, MatchRegex, re.Kind)
	require.True(t, re.Match("abcz"))
	require.False(t, re.Match("abc"))
}
