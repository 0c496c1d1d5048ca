// Package qdrantmirror mirrors HNSW insertions onto a remote Qdrant
// collection on a best-effort, write-behind basis. It is never a read path:
// the in-process HNSW index in internal/semantic remains authoritative for
// all queries, and a mirror outage never blocks or fails a store/retrieve
// operation.
package qdrantmirror

import (
	"fmt"
	"regexp"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// Config configures the mirror's Qdrant gRPC connection and collection.
type Config struct {
	// Host is the Qdrant server hostname.
	Host string
	// Port is the Qdrant gRPC port (6334 by default, not the 6333 REST port).
	Port int
	// CollectionName identifies the mirrored collection.
	CollectionName string
	// VectorSize must match the HNSW index's configured dimension.
	VectorSize uint64
	// Distance is the similarity metric Qdrant uses server-side.
	Distance qdrant.Distance
	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
	// MaxRetries bounds transient-failure retries per write.
	MaxRetries int
	// RetryBackoff is the initial backoff, doubled on each retry.
	RetryBackoff time.Duration
	// CircuitBreakerThreshold is the consecutive-failure count that opens
	// the circuit, after which writes are dropped without attempting the
	// network call until the breaker resets.
	CircuitBreakerThreshold int
}

// ApplyDefaults fills zero-valued fields with their production defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// Validate checks that the fields required to dial and write are present.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("qdrantmirror: host required")
	}
	if c.CollectionName == "" {
		return fmt.Errorf("qdrantmirror: collection name required")
	}
	if !collectionNamePattern.MatchString(c.CollectionName) {
		return fmt.Errorf("qdrantmirror: invalid collection name %q", c.CollectionName)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("qdrantmirror: vector size required")
	}
	return nil
}
