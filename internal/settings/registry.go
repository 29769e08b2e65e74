// Package settings implements the typed, process-wide configuration
// registry described in spec §9 ("Singletons for environments"): one
// map of key -> (type, default, parser), with per-feature callers using
// thin typed accessors instead of a constellation of singleton classes.
//
// Each key is owned by exactly one "environment" (spec §4.8 invariant).
// The Replicator (package replicator) writes into the same overlay this
// package exposes, so that a multicast-delivered override is visible to
// the very next Bool/String/Int/Duration/CIDRList call for that key.
package settings

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mfdlabs/rbx-proxy/internal/netutil"
)

// Kind identifies the declared type of a registered key, used only to
// catch programmer error (registering a key twice with different
// kinds, or reading it with the wrong accessor).
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindDuration
	KindCIDRList
)

type keyDef struct {
	kind        Kind
	environment string
	def         string
}

// Registry is the single process-wide settings store. The zero value
// is not usable; construct one with New.
type Registry struct {
	mu        sync.RWMutex
	defs      map[string]keyDef
	base      map[string]string // dotenv-style process key/value map
	overrides map[string]string // runtime overlay, written by Replicator or explicit Override calls
	log       *zap.Logger
}

// New creates an empty Registry. base is the process-wide dotenv-style
// key/value map consulted on overlay cache miss (spec §3 "Environment
// Variable").
func New(base map[string]string, log *zap.Logger) *Registry {
	if base == nil {
		base = map[string]string{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		defs:      make(map[string]keyDef),
		base:      base,
		overrides: make(map[string]string),
		log:       log,
	}
}

// NewFromEnviron builds the base map from os.Environ(), which is the
// typical production wiring (after a dotenv file has been loaded into
// the process environment by cmd/rbxproxy).
func NewFromEnviron(log *zap.Logger) *Registry {
	base := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				base[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return New(base, log)
}

// Register declares a key's type, owning environment and default
// value. Registering the same key under a different environment is a
// programmer error and panics at startup, mirroring the "already
// registered in environment X" invariant of spec §4.8 (a runtime
// override violating ownership fails softly; a startup registration
// conflict fails loudly, since it can only be a code defect).
func (r *Registry) Register(key, environment string, kind Kind, def string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.defs[key]; ok && existing.environment != environment {
		panic(fmt.Sprintf("settings: key %q already registered in environment %q", key, existing.environment))
	}
	r.defs[key] = keyDef{kind: kind, environment: environment, def: def}
}

// Override sets a runtime override for key, as performed by the
// Replicator on message receipt or by an operator via the admin
// surface. It enforces the "single owner environment" invariant.
func (r *Registry) Override(environment, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.defs[key]; ok && existing.environment != environment {
		return fmt.Errorf("settings: key %q already registered in environment %q", key, existing.environment)
	}
	r.overrides[key] = value
	return nil
}

// Reset removes the runtime override for key, falling back to the
// base/default value on the next read. This implements the Replicator
// "value is undefined/absent" removal case (spec §4.8).
func (r *Registry) Reset(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.overrides, key)
}

func (r *Registry) raw(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.overrides[key]; ok {
		return v, true
	}
	if v, ok := r.base[key]; ok {
		return v, true
	}
	if d, ok := r.defs[key]; ok {
		return d.def, d.def != ""
	}
	return "", false
}

// String returns the string value of key, or its registered default.
func (r *Registry) String(key string) string {
	v, _ := r.raw(key)
	return v
}

// Bool parses key as a boolean ("true"/"false"/"1"/"0"/...).
// Unparseable or absent values yield false.
func (r *Registry) Bool(key string) bool {
	v, ok := r.raw(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.log.Warn("settings: invalid bool value, defaulting to false",
			zap.String("key", key), zap.String("value", v))
		return false
	}
	return b
}

// Int parses key as an integer. Unparseable or absent values yield 0.
func (r *Registry) Int(key string) int {
	v, ok := r.raw(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.log.Warn("settings: invalid int value, defaulting to 0",
			zap.String("key", key), zap.String("value", v))
		return 0
	}
	return n
}

// Duration parses key with time.ParseDuration, e.g. "35s", "250ms".
func (r *Registry) Duration(key string) time.Duration {
	v, ok := r.raw(key)
	if !ok {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.log.Warn("settings: invalid duration value, defaulting to 0",
			zap.String("key", key), zap.String("value", v))
		return 0
	}
	return d
}

// CIDRList parses key as a netutil.CIDRSet.
func (r *Registry) CIDRList(key string) netutil.CIDRSet {
	v, ok := r.raw(key)
	if !ok {
		return netutil.CIDRSet{}
	}
	set, err := netutil.ParseCIDRList(v)
	if err != nil {
		r.log.Warn("settings: invalid CIDR list, defaulting to empty",
			zap.String("key", key), zap.Error(err))
		return netutil.CIDRSet{}
	}
	return set
}
