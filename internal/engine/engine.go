// Package engine assembles the process-lifetime Agrama instance: the
// stores, indices, pools, registries, document model, and primitive engine,
// all owned here and borrowed by every primitive invocation. There is no
// global mutable state beyond an Engine value.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nibzard/agrama/internal/config"
	"github.com/nibzard/agrama/internal/content"
	"github.com/nibzard/agrama/internal/crdt"
	"github.com/nibzard/agrama/internal/embedder"
	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/lexical"
	"github.com/nibzard/agrama/internal/opcache"
	"github.com/nibzard/agrama/internal/pool"
	"github.com/nibzard/agrama/internal/primitives"
	"github.com/nibzard/agrama/internal/ranker"
	"github.com/nibzard/agrama/internal/semantic"
	"github.com/nibzard/agrama/internal/semantic/qdrantmirror"
	"github.com/nibzard/agrama/internal/session"
	"github.com/nibzard/agrama/internal/transform"
	"github.com/nibzard/agrama/internal/traversal"
)

// Engine is the assembled storage-and-query engine.
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	Content    *content.Store
	Graph      *graph.Store
	Semantic   *semantic.Index
	Lexical    *lexical.Index
	Traversal  *traversal.Engine
	Ranker     *ranker.Ranker
	Docs       *crdt.Model
	Sessions   *session.Registry
	Caches     *opcache.Caches
	Transforms *transform.Registry
	Primitives *primitives.Engine

	VectorPool *pool.VectorPool

	embedder embedder.Embedder
	mirror   *qdrantmirror.Mirror
}

// New builds an engine from cfg. The embedding provider, the optional
// Qdrant mirror, and the arena pool size are fixed here for the process
// lifetime.
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	vp := pool.NewVectorPool()
	contentStore := content.New(cfg.Content.Root, cfg.Content.MaxHistory)
	graphStore := graph.New()
	sem := semantic.New(semantic.Config{
		M:              cfg.HNSW.M,
		EfConstruction: cfg.HNSW.EfConstruction,
		Dimension:      emb.Dimension(),
	}, vp)
	lex := lexical.New(lexical.Config{K1: cfg.BM25.K1, B: cfg.BM25.B})
	trav := traversal.New(graphStore)

	caches, err := opcache.NewCaches(cfg.Caches.Embeddings, cfg.Caches.Transforms, cfg.Caches.Searches)
	if err != nil {
		return nil, fmt.Errorf("engine: building caches: %w", err)
	}

	registry := transform.NewRegistry()
	transform.RegisterBuiltins(registry)

	sessions := session.NewRegistry(cfg.Log.Activity)

	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		Content:    contentStore,
		Graph:      graphStore,
		Semantic:   sem,
		Lexical:    lex,
		Traversal:  trav,
		Ranker:     ranker.New(lex, sem, trav),
		Docs:       crdt.NewModel(),
		Sessions:   sessions,
		Caches:     caches,
		Transforms: registry,
		VectorPool: vp,
		embedder:   emb,
	}

	if cfg.Qdrant.Enabled {
		mirror, err := qdrantmirror.New(qdrantmirror.Config{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			CollectionName: cfg.Qdrant.Collection,
			VectorSize:     uint64(emb.Dimension()),
			UseTLS:         cfg.Qdrant.UseTLS,
		})
		if err != nil {
			// The mirror is best-effort by contract: a dial failure
			// degrades to mirrorless operation rather than refusing to
			// start.
			logger.Warn("qdrant mirror unavailable", zap.Error(err))
		} else {
			e.mirror = mirror
			sem.SetMirror(mirror)
		}
	}

	e.Primitives = primitives.New(primitives.Deps{
		Content:    contentStore,
		Graph:      graphStore,
		Semantic:   sem,
		Lexical:    lex,
		Traversal:  trav,
		Ranker:     e.Ranker,
		Embedder:   emb,
		Transforms: registry,
		Caches:     caches,
		Sessions:   sessions,
		Tokenizer:  lexical.SimpleTokenizer{},
		Logger:     logger,
	}, cfg.Log.Operations, cfg.Pools.Arenas)

	return e, nil
}

func buildEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.Embedder.Provider {
	case "fastembed":
		return embedder.NewFastEmbed(embedder.FastEmbedConfig{
			Model:    cfg.Embedder.Model,
			CacheDir: cfg.Embedder.CacheDir,
		})
	default:
		return embedder.NewFallback(cfg.Embedder.Dimension), nil
	}
}

// Invoke dispatches one primitive invocation.
func (e *Engine) Invoke(ctx context.Context, name string, args map[string]any, agentID string) (any, error) {
	return e.Primitives.Invoke(ctx, name, args, agentID)
}

// Embedder returns the configured embedding provider.
func (e *Engine) Embedder() embedder.Embedder { return e.embedder }

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Close tears down the background collaborators (mirror, model runtimes).
func (e *Engine) Close() error {
	var firstErr error
	if e.mirror != nil {
		if err := e.mirror.Close(); err != nil {
			firstErr = err
		}
	}
	if closer, ok := e.embedder.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
