// Package config loads and validates the engine configuration from
// defaults, an optional YAML file, and AGRAMA_-prefixed environment
// variables, in increasing precedence.
package config

import (
	"fmt"
)

// Config is the process-wide configuration carried on the engine object.
type Config struct {
	Logging  LoggingConfig  `koanf:"logging"`
	Content  ContentConfig  `koanf:"content"`
	HNSW     HNSWConfig     `koanf:"hnsw"`
	BM25     BM25Config     `koanf:"bm25"`
	Pools    PoolsConfig    `koanf:"pools"`
	Caches   CachesConfig   `koanf:"caches"`
	Log      LogConfig      `koanf:"log"`
	Embedder EmbedderConfig `koanf:"embedder"`
	Qdrant   QdrantConfig   `koanf:"qdrant"`
	Server   ServerConfig   `koanf:"server"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json or console
}

// ContentConfig controls the content store.
type ContentConfig struct {
	Root       string `koanf:"root"`
	MaxHistory int    `koanf:"max_history"` // versions retained per path; 0 = unbounded
}

// HNSWConfig controls the semantic index.
type HNSWConfig struct {
	M              int   `koanf:"m"`
	EfConstruction int   `koanf:"ef_construction"`
	EfSearch       int   `koanf:"ef_search"`
	Dimension      int   `koanf:"dimension"`
	MatryoshkaDims []int `koanf:"matryoshka_dims"`
}

// BM25Config carries the lexical index's free parameters.
type BM25Config struct {
	K1 float64 `koanf:"k1"`
	B  float64 `koanf:"b"`
}

// PoolsConfig carries pool budgets. Arenas sizes the primitive engine's
// arena pool at startup. VectorBuffers is not read by the engine: the vector
// pool grows on demand with no budget.
type PoolsConfig struct {
	Arenas        int `koanf:"arenas"`
	VectorBuffers int `koanf:"vector_buffers"`
}

// CachesConfig sizes the operation caches (entry counts).
type CachesConfig struct {
	Embeddings int `koanf:"embeddings"`
	Transforms int `koanf:"transforms"`
	Searches   int `koanf:"searches"`
}

// LogConfig bounds the in-memory operation and activity logs.
type LogConfig struct {
	Operations int `koanf:"operations"`
	Activity   int `koanf:"activity"`
}

// EmbedderConfig selects the embedding provider.
type EmbedderConfig struct {
	// Provider is "fallback" (deterministic, model-free) or "fastembed".
	Provider  string `koanf:"provider"`
	Model     string `koanf:"model"`
	CacheDir  string `koanf:"cache_dir"`
	Dimension int    `koanf:"dimension"` // fallback provider only
}

// QdrantConfig configures the optional write-behind semantic mirror.
type QdrantConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Host       string `koanf:"host"`
	Port       int    `koanf:"port"`
	Collection string `koanf:"collection"`
	UseTLS     bool   `koanf:"use_tls"`
}

// ServerConfig carries the transport-facing limits.
type ServerConfig struct {
	// MaxInFlight is the in-flight invocation count at which the
	// transport rejects new requests with a Conflict-kind error; there is
	// no separate resource-exhausted kind.
	MaxInFlight int `koanf:"max_in_flight"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Content: ContentConfig{Root: "", MaxHistory: 0},
		HNSW: HNSWConfig{
			M:              16,
			EfConstruction: 200,
			EfSearch:       64,
			Dimension:      384,
			MatryoshkaDims: []int{64, 256, 384},
		},
		BM25:     BM25Config{K1: 1.2, B: 0.75},
		Pools:    PoolsConfig{Arenas: 64, VectorBuffers: 1024},
		Caches:   CachesConfig{Embeddings: 1024, Transforms: 256, Searches: 256},
		Log:      LogConfig{Operations: 10000, Activity: 10000},
		Embedder: EmbedderConfig{Provider: "fallback", Dimension: 384},
		Qdrant:   QdrantConfig{Port: 6334},
		Server:   ServerConfig{MaxInFlight: 128},
	}
}

// Validate rejects configurations the engine cannot start with.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: unknown logging format %q", c.Logging.Format)
	}
	if c.HNSW.M < 2 {
		return fmt.Errorf("config: hnsw.m must be at least 2")
	}
	if c.HNSW.EfConstruction < c.HNSW.M {
		return fmt.Errorf("config: hnsw.ef_construction must be at least hnsw.m")
	}
	if c.HNSW.Dimension <= 0 {
		return fmt.Errorf("config: hnsw.dimension must be positive")
	}
	for i, d := range c.HNSW.MatryoshkaDims {
		if d <= 0 || d > c.HNSW.Dimension {
			return fmt.Errorf("config: matryoshka dim %d out of range", d)
		}
		if i > 0 && d <= c.HNSW.MatryoshkaDims[i-1] {
			return fmt.Errorf("config: matryoshka dims must be ascending")
		}
	}
	if c.BM25.K1 <= 0 || c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("config: bm25 parameters out of range")
	}
	switch c.Embedder.Provider {
	case "fallback", "fastembed":
	default:
		return fmt.Errorf("config: unknown embedder provider %q", c.Embedder.Provider)
	}
	if c.Qdrant.Enabled && c.Qdrant.Host == "" {
		return fmt.Errorf("config: qdrant.host required when the mirror is enabled")
	}
	if c.Server.MaxInFlight <= 0 {
		return fmt.Errorf("config: server.max_in_flight must be positive")
	}
	return nil
}
