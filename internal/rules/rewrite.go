package rules

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RewriteRule maps an incoming path onto an alternate upstream path
// template, independent of the hardcoded-response engine (spec §4.6.1
// "Rewrite sub-engine"). Unlike HardcodedRule, a RewriteRule never
// short-circuits the pipeline by itself: when matched, it only changes
// the path+query the Forwarder builds its upstream request from.
type RewriteRule struct {
	PathPattern    string `yaml:"path_pattern" json:"path_pattern"`
	TargetTemplate string `yaml:"target_template" json:"target_template"`
	Weight         int    `yaml:"weight" json:"weight"`

	Meta RuleMeta `yaml:"-" json:"-"`

	pattern *regexp.Regexp
}

func (r *RewriteRule) compile(sourceFile string) error {
	pattern, err := regexp.Compile(r.PathPattern)
	if err != nil {
		return fmt.Errorf("rules: invalid path_pattern %q: %w", r.PathPattern, err)
	}
	r.pattern = pattern
	r.Meta = RuleMeta{SourceFile: sourceFile, ID: uuid.NewString(), CreatedAt: time.Now()}
	return nil
}

// dedupeKey collapses rewrite rules with identical pattern+target, per
// the same duplicate-collapsing invariant the hardcoded engine applies
// (spec §3).
func (r *RewriteRule) dedupeKey() string {
	return r.PathPattern + "\x00" + r.TargetTemplate
}

// Rewrite applies the rule's capture groups from path to its target
// template, substituting $1, $2, ... style references the same way
// regexp.ReplaceAll does, and reports whether the pattern matched.
func (r *RewriteRule) Rewrite(path string) (rewritten string, matched bool) {
	loc := r.pattern.FindStringSubmatchIndex(path)
	if loc == nil {
		return "", false
	}
	expanded := r.pattern.ExpandString(nil, r.TargetTemplate, path, loc)
	return string(expanded), true
}

// RewriteSet is an immutable, weight-ordered collection of
// RewriteRules, mirroring Set's lifecycle. It is applied in the
// forwarding stage, to the outgoing path just before the upstream
// request is built; the hardcoded-response engine runs earlier and
// matches the inbound path+query, which no rewrite has touched.
type RewriteSet struct {
	rules []*RewriteRule
}

func newRewriteSet(rules []*RewriteRule) *RewriteSet {
	seen := make(map[string]bool, len(rules))
	deduped := make([]*RewriteRule, 0, len(rules))
	for _, r := range rules {
		key := r.dedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, r)
	}
	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Weight > deduped[j].Weight
	})
	return &RewriteSet{rules: deduped}
}

// Apply runs path through the rule set in weight order, returning the
// result of the first rule whose pattern matches, or path unchanged if
// none do.
func (s *RewriteSet) Apply(path string) string {
	if s == nil {
		return path
	}
	for _, r := range s.rules {
		if out, ok := r.Rewrite(path); ok {
			return out
		}
	}
	return path
}

// Len reports the number of rules in the set, after deduplication.
func (s *RewriteSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
