// Package config loads the engine's YAML configuration file using the
// struct-tagged-YAML-via-os.ReadFile idiom: a single top-level engine
// config rather than a Kind-dispatched resource list.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/kv/boltkv"
	"github.com/cuemby/polydb/pkg/kv/memkv"
	"github.com/cuemby/polydb/pkg/log"
)

// StorageKind selects which kv.Transactor backend the engine opens.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageBolt   StorageKind = "bolt"
)

// StorageConfig selects and configures the kv backend.
type StorageConfig struct {
	Kind StorageKind `yaml:"kind"`
	Path string      `yaml:"path,omitempty"` // required when Kind == StorageBolt
}

// LogConfig mirrors pkg/log.Config so it round-trips through YAML.
type LogConfig struct {
	Level      log.Level `yaml:"level"`
	JSONOutput bool      `yaml:"json_output"`
}

// IndexDefaults holds the tunables a bare IndexDef leaves at zero,
// filled in by ApplyDefaults so every index binding sees a concrete
// value instead of re-deriving its own fallback.
type IndexDefaults struct {
	MTreeCapacity int     `yaml:"mtree_capacity"`
	BM25K1        float64 `yaml:"bm25_k1"`
	BM25B         float64 `yaml:"bm25_b"`
}

// ExecDefaults tunes the streaming operators (component K).
type ExecDefaults struct {
	OrderedBatchSize int `yaml:"ordered_batch_size"`
}

// EngineConfig is the engine's whole on-disk configuration.
type EngineConfig struct {
	Namespace string        `yaml:"namespace"`
	Database  string        `yaml:"database"`
	Storage   StorageConfig `yaml:"storage"`
	Log       LogConfig     `yaml:"log"`
	Indexes   IndexDefaults `yaml:"indexes"`
	Exec      ExecDefaults  `yaml:"exec"`
}

// Default returns the configuration an engine starts with if no file
// is supplied: an in-memory backend, info-level console logging, and
// the same BM25/batch-size defaults pkg/fulltext and pkg/exec already
// fall back to on their own.
func Default() *EngineConfig {
	return &EngineConfig{
		Namespace: "default",
		Database:  "default",
		Storage:   StorageConfig{Kind: StorageMemory},
		Log:       LogConfig{Level: log.InfoLevel, JSONOutput: false},
		Indexes: IndexDefaults{
			MTreeCapacity: 32,
			BM25K1:        1.2,
			BM25B:         0.75,
		},
		Exec: ExecDefaults{OrderedBatchSize: 1024},
	}
}

// Load reads and parses path, then fills any zero-valued field left
// unset with Default()'s value, a tolerant partial-manifest posture
// where a caller only names what it wants to override.
func Load(path string) (*EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would fail later with a less
// useful error (a bolt backend with no path, an unknown storage kind).
func (c *EngineConfig) Validate() error {
	switch c.Storage.Kind {
	case StorageMemory:
	case StorageBolt:
		if c.Storage.Path == "" {
			return fmt.Errorf("config: storage.path is required for storage.kind %q", StorageBolt)
		}
	default:
		return fmt.Errorf("config: unknown storage.kind %q", c.Storage.Kind)
	}
	if c.Namespace == "" {
		return fmt.Errorf("config: namespace must not be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("config: database must not be empty")
	}
	return nil
}

// OpenStorage opens the kv.Transactor c.Storage names. Callers that
// open a bolt-backed store own closing it (Transactor.Close).
func (c *EngineConfig) OpenStorage() (kv.Transactor, error) {
	switch c.Storage.Kind {
	case StorageBolt:
		return boltkv.Open(c.Storage.Path)
	case StorageMemory, "":
		return memkv.New(), nil
	default:
		return nil, fmt.Errorf("config: unknown storage.kind %q", c.Storage.Kind)
	}
}
