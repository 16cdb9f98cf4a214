// Package casconfig opens CAS backends from a config file instead of flags.
// JSON files may contain // and /* */ comments and trailing commas; files
// ending in .yaml or .yml are read as YAML.
package casconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"xdao.co/oplog/storage"
	"xdao.co/oplog/storage/casregistry"
)

// Config lists the casregistry backends to open and how writes are spread
// across them. Every backend named must be linked into the binary.
//
// WritePolicy is WriteFirst (the default: writes go to the first backend,
// reads fall back in order) or WriteAll (writes go everywhere and every
// backend must return the same CID).
//
//	# cas.yaml
//	write_policy: all
//	backends:
//	  - name: localfs
//	    config: {localfs-dir: /var/lib/oplog/cas}
//	  - name: grpc
//	    id: mirror
//	    config: {grpc-target: "cas.internal:7777"}
//
// Config keys are backend-specific and mirror the backend's flag names.
type Config struct {
	WritePolicy string          `json:"write_policy,omitempty" yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends" yaml:"backends"`
}

// BackendConfig configures one backend.
type BackendConfig struct {
	// Name is the casregistry backend name.
	Name string `json:"name" yaml:"name"`
	// ID distinguishes two instances of the same backend and keys the
	// per-backend CID map of ReplicatingCAS.
	ID     string            `json:"id,omitempty" yaml:"id,omitempty"`
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// LoadFile reads and validates a config file.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("casconfig: parsing %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(b), &cfg); err != nil {
			return cfg, fmt.Errorf("casconfig: parsing %s: %w", path, err)
		}
	}
	return cfg, cfg.Validate()
}

// Write policies.
const (
	WriteFirst = "first"
	WriteAll   = "all"
)

// Key is the name the backend is known by: ID when set, else Name.
func (b BackendConfig) Key() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if seen[b.Key()] {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.Key())
		}
		seen[b.Key()] = true
	}
	switch c.WritePolicy {
	case "", WriteFirst, WriteAll:
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// ordered returns the backends with the one named (by Name or ID) by
// preferred moved to the front.
func (c Config) ordered(preferred string) ([]BackendConfig, error) {
	out := make([]BackendConfig, 0, len(c.Backends))
	if preferred == "" {
		return append(out, c.Backends...), nil
	}
	found := false
	for _, b := range c.Backends {
		if !found && (b.Name == preferred || b.ID == preferred) {
			out = append([]BackendConfig{b}, out...)
			found = true
			continue
		}
		out = append(out, b)
	}
	if !found {
		return nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
	}
	return out, nil
}

// Open opens every configured backend and combines them per WritePolicy:
// a MultiCAS for "first" and a ReplicatingCAS for "all". A single backend
// is returned as is. The returned close function closes backends in
// reverse open order.
func (c Config) Open(usage casregistry.Usage, preferredBackend string) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	backends, err := c.ordered(preferredBackend)
	if err != nil {
		return nil, nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	named := make([]storage.NamedCAS, 0, len(backends))
	for _, b := range backends {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("casconfig: opening %s: %w", b.Key(), err)
		}
		if closeFn != nil {
			closers = append(closers, closeFn)
		}
		named = append(named, storage.NamedCAS{Name: b.Key(), CAS: cas})
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if c.WritePolicy == WriteAll {
		return storage.ReplicatingCAS{Backends: named}, closeAll, nil
	}
	adapters := make([]storage.CAS, len(named))
	for i, n := range named {
		adapters[i] = n.CAS
	}
	return storage.MultiCAS{Adapters: adapters}, closeAll, nil
}
