// Package rules implements the hardcoded-response rule engine and its
// companion rewrite sub-engine (spec §4.6).
package rules

import "regexp"

// MatcherKind tags a compiled Matcher's variant, replacing the source
// ecosystem's string-or-precompiled-regex duck typing per spec §9:
// "Re-architect as a tagged variant {Literal | Regex | Any} computed
// once at load; the matcher consumes the variant directly, avoiding
// per-request type tests."
type MatcherKind int

const (
	MatchAny MatcherKind = iota
	MatchLiteral
	MatchRegex
)

// Matcher is a compiled match predicate for one of a rule's three
// regex fields (route_template, hostname, method). Source retains the
// original text the matcher was compiled from; the specificity
// calculation and the x-hardcoded-response-template header read the
// rule's own raw fields, which hold the same text.
type Matcher struct {
	Kind    MatcherKind
	Literal string
	Regex   *regexp.Regexp
	Source  string
}

// literalPattern matches strings made only of letters, digits, '_',
// '-' and '.', letting the matcher take the fast Literal path (an
// exact, whole-string comparison) instead of invoking the regex engine.
// A '.' in such a field is therefore taken literally, not as a regex
// wildcard.
var literalPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]*$`)

// compileMatcher compiles raw into a Matcher. An empty string means
// match-all, per spec §3's invariant "a missing field defaults to
// match-all".
func compileMatcher(raw string) (Matcher, error) {
	if raw == "" {
		return Matcher{Kind: MatchAny, Source: raw}, nil
	}
	if literalPattern.MatchString(raw) {
		return Matcher{Kind: MatchLiteral, Literal: raw, Source: raw}, nil
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return Matcher{}, err
	}
	return Matcher{Kind: MatchRegex, Regex: re, Source: raw}, nil
}

// Match reports whether s satisfies the matcher.
func (m Matcher) Match(s string) bool {
	switch m.Kind {
	case MatchAny:
		return true
	case MatchLiteral:
		return m.Literal == s
	case MatchRegex:
		return m.Regex.MatchString(s)
	default:
		return false
	}
}
