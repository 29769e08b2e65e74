package rules

import "sort"

// Set is an immutable, deterministically-ordered collection of
// HardcodedRules, as produced by a single Load call. A Set is safe to
// share across goroutines because nothing about it ever mutates after
// construction; reload is implemented as an atomic pointer swap to a
// brand new Set (spec §5 "Shared resources").
type Set struct {
	rules []*HardcodedRule
}

// newSet dedupes and sorts rules, per spec §3's invariants: first
// occurrence wins on duplicate (route, host, method, scheme) tuples,
// then the survivors are ordered by (specificity desc, weight desc).
func newSet(rules []*HardcodedRule) *Set {
	seen := make(map[string]bool, len(rules))
	deduped := make([]*HardcodedRule, 0, len(rules))
	for _, r := range rules {
		key := r.dedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, r)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		si, sj := deduped[i].specificity(), deduped[j].specificity()
		if si != sj {
			return si > sj
		}
		return deduped[i].Weight > deduped[j].Weight
	})

	return &Set{rules: deduped}
}

// Lookup returns the first rule (in the deterministic sort order) that
// matches the given request components, or nil if none does (spec
// §4.6: "returns the first rule from the deterministically sorted
// list").
func (s *Set) Lookup(routeWithQuery, host, method, scheme string) *HardcodedRule {
	if s == nil {
		return nil
	}
	for _, r := range s.rules {
		if r.Matches(routeWithQuery, host, method, scheme) {
			return r
		}
	}
	return nil
}

// Len reports the number of rules in the set, after deduplication.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}
