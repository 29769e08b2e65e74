package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader owns one rule file on disk and the Set currently parsed from
// it, implementing the reload discipline of spec §4.6: "File on disk
// is the source of truth. When reload_on_request is true, each
// rule-engine invocation re-reads and recompiles; otherwise the
// ruleset is loaded once on first use. Reloading is a full-replace."
type Loader struct {
	path            string
	reloadOnRequest bool
	log             *zap.Logger

	current atomic.Pointer[Set]
}

// NewLoader constructs a Loader for the rule file at path.
func NewLoader(path string, reloadOnRequest bool, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{path: path, reloadOnRequest: reloadOnRequest, log: log}
}

// Current returns the active Set, loading it from disk on first call,
// and on every call if reloadOnRequest is set (spec §4.6). On a
// malformed file, the previous Set is retained and the load error is
// logged, per spec §3 "Rule Set Lifecycle": "On malformed file, the
// load fails and the previous rule set is retained."
func (l *Loader) Current() *Set {
	existing := l.current.Load()
	if existing != nil && !l.reloadOnRequest {
		return existing
	}
	set, err := l.load()
	if err != nil {
		if existing != nil {
			l.log.Warn("rules: reload failed, retaining previous rule set",
				zap.String("path", l.path), zap.Error(err))
			return existing
		}
		l.log.Error("rules: initial load failed, serving empty rule set",
			zap.String("path", l.path), zap.Error(err))
		empty := newSet(nil)
		l.current.Store(empty)
		return empty
	}
	l.current.Store(set)
	return set
}

func (l *Loader) load() (*Set, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("rules: reading %s: %w", l.path, err)
	}

	var raw []*HardcodedRule
	switch ext := strings.ToLower(filepath.Ext(l.path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("rules: parsing YAML %s: %w", l.path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("rules: parsing JSON %s: %w", l.path, err)
		}
	default:
		return nil, fmt.Errorf("rules: unrecognized extension %q for %s", ext, l.path)
	}

	for _, r := range raw {
		if err := r.compile(l.path); err != nil {
			return nil, fmt.Errorf("rules: %s: %w", l.path, err)
		}
	}

	return newSet(raw), nil
}

// RewriteLoader is the RewriteSet counterpart of Loader, applying the
// identical reload discipline to the rewrite sub-engine's file (spec
// §4.6.1).
type RewriteLoader struct {
	path            string
	reloadOnRequest bool
	log             *zap.Logger

	current atomic.Pointer[RewriteSet]
}

// NewRewriteLoader constructs a RewriteLoader for the rewrite rule
// file at path.
func NewRewriteLoader(path string, reloadOnRequest bool, log *zap.Logger) *RewriteLoader {
	if log == nil {
		log = zap.NewNop()
	}
	return &RewriteLoader{path: path, reloadOnRequest: reloadOnRequest, log: log}
}

// Current returns the active RewriteSet, per the same load-once /
// reload-on-request / retain-previous-on-malformed-file discipline as
// Loader.Current.
func (l *RewriteLoader) Current() *RewriteSet {
	existing := l.current.Load()
	if existing != nil && !l.reloadOnRequest {
		return existing
	}
	set, err := l.load()
	if err != nil {
		if existing != nil {
			l.log.Warn("rules: rewrite reload failed, retaining previous rule set",
				zap.String("path", l.path), zap.Error(err))
			return existing
		}
		l.log.Error("rules: initial rewrite load failed, serving empty rule set",
			zap.String("path", l.path), zap.Error(err))
		empty := newRewriteSet(nil)
		l.current.Store(empty)
		return empty
	}
	l.current.Store(set)
	return set
}

func (l *RewriteLoader) load() (*RewriteSet, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("rules: reading %s: %w", l.path, err)
	}

	var raw []*RewriteRule
	switch ext := strings.ToLower(filepath.Ext(l.path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("rules: parsing YAML %s: %w", l.path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("rules: parsing JSON %s: %w", l.path, err)
		}
	default:
		return nil, fmt.Errorf("rules: unrecognized extension %q for %s", ext, l.path)
	}

	for _, r := range raw {
		if err := r.compile(l.path); err != nil {
			return nil, fmt.Errorf("rules: %s: %w", l.path, err)
		}
	}

	return newRewriteSet(raw), nil
}
