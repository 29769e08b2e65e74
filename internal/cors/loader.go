package cors

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

// Loader owns the CORS rule file on disk and the Set currently parsed
// from it, with the same load-once / reload-on-request / retain-
// previous-on-malformed-file discipline as the hardcoded-response rule
// loader (spec §6).
type Loader struct {
	path            string
	reloadOnRequest bool
	log             *zap.Logger

	current atomic.Pointer[Set]
}

// NewLoader constructs a Loader for the CORS rule file at path.
func NewLoader(path string, reloadOnRequest bool, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{path: path, reloadOnRequest: reloadOnRequest, log: log}
}

// Current returns the active Set.
func (l *Loader) Current() *Set {
	existing := l.current.Load()
	if existing != nil && !l.reloadOnRequest {
		return existing
	}
	set, err := l.load()
	if err != nil {
		if existing != nil {
			l.log.Warn("cors: reload failed, retaining previous rule set",
				zap.String("path", l.path), zap.Error(err))
			return existing
		}
		l.log.Error("cors: initial load failed, serving empty rule set",
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
		return nil, fmt.Errorf("cors: reading %s: %w", l.path, err)
	}

	var raw []*Rule
	switch ext := strings.ToLower(filepath.Ext(l.path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("cors: parsing YAML %s: %w", l.path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("cors: parsing JSON %s: %w", l.path, err)
		}
	default:
		return nil, fmt.Errorf("cors: unrecognized extension %q for %s", ext, l.path)
	}

	for _, r := range raw {
		if err := r.compile(); err != nil {
			return nil, fmt.Errorf("cors: %s: %w", l.path, err)
		}
	}

	return newSet(raw), nil
}
