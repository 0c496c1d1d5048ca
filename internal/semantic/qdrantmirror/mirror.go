package qdrantmirror

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/nibzard/agrama/internal/graph"
)

// Mirror writes HNSW insertions to a remote Qdrant collection in the
// background, with retry and a circuit breaker so a slow or unavailable
// Qdrant never backs up the foreground insertion path.
type Mirror struct {
	client *qdrant.Client
	cfg    Config

	mu             sync.Mutex
	failures       int
	circuitOpenAt  time.Time
	collectionMade bool

	queue chan mirrorPoint
	wg    sync.WaitGroup

	dropped atomic.Int64
}

type mirrorPoint struct {
	id  graph.NodeID
	vec []float32
}

// New dials Qdrant and starts the background writer. The returned Mirror
// must be stopped with Close when the owning index is torn down.
func New(cfg Config) (*Mirror, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantmirror: connecting: %w", err)
	}

	m := &Mirror{
		client: client,
		cfg:    cfg,
		queue:  make(chan mirrorPoint, 1024),
	}
	m.wg.Add(1)
	go m.run()
	return m, nil
}

// Insert enqueues id/vec for background mirroring. It never blocks on the
// network: if the internal queue is full, the point is dropped and counted
// rather than applying backpressure to the caller.
func (m *Mirror) Insert(id graph.NodeID, vec []float32) {
	select {
	case m.queue <- mirrorPoint{id: id, vec: vec}:
	default:
		m.dropped.Add(1)
	}
}

// Dropped returns the number of points dropped because the mirror queue was
// full, the circuit was open, or the collection setup or upsert (after its
// retries) failed.
func (m *Mirror) Dropped() int64 { return m.dropped.Load() }

// Close stops the background writer and releases the gRPC connection.
func (m *Mirror) Close() error {
	close(m.queue)
	m.wg.Wait()
	return m.client.Close()
}

func (m *Mirror) run() {
	defer m.wg.Done()
	ctx := context.Background()
	for p := range m.queue {
		if m.isCircuitOpen() {
			m.dropped.Add(1)
			continue
		}
		if err := m.ensureCollection(ctx); err != nil {
			m.recordFailure()
			m.dropped.Add(1)
			continue
		}
		if err := m.upsertWithRetry(ctx, p); err != nil {
			m.recordFailure()
			m.dropped.Add(1)
			continue
		}
		m.resetCircuit()
	}
}

func (m *Mirror) ensureCollection(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collectionMade {
		return nil
	}
	exists, err := m.client.CollectionExists(ctx, m.cfg.CollectionName)
	if err != nil {
		return err
	}
	if !exists {
		if err := m.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: m.cfg.CollectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     m.cfg.VectorSize,
				Distance: m.cfg.Distance,
			}),
		}); err != nil {
			return err
		}
	}
	m.collectionMade = true
	return nil
}

func (m *Mirror) upsertWithRetry(ctx context.Context, p mirrorPoint) error {
	backoff := m.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		_, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: m.cfg.CollectionName,
			Points: []*qdrant.PointStruct{{
				Id:      qdrant.NewIDUUID(nodeUUID(p.id)),
				Vectors: qdrant.NewVectors(p.vec...),
			}},
		})
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (m *Mirror) recordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
	if m.failures >= m.cfg.CircuitBreakerThreshold {
		m.circuitOpenAt = time.Now()
	}
}

func (m *Mirror) resetCircuit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = 0
	m.circuitOpenAt = time.Time{}
}

func (m *Mirror) isCircuitOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.circuitOpenAt.IsZero() {
		return false
	}
	if time.Since(m.circuitOpenAt) > 30*time.Second {
		m.failures = 0
		m.circuitOpenAt = time.Time{}
		return false
	}
	return true
}

// nodeUUID derives a stable UUID from a NodeID so mirrored points can be
// addressed deterministically without a side-table.
func nodeUUID(id graph.NodeID) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte{
		byte(id >> 56), byte(id >> 48), byte(id >> 40), byte(id >> 32),
		byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id),
	}).String()
}
