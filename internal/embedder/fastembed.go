package embedder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/nibzard/agrama/internal/agramaerr"
)

// FastEmbedConfig configures a local ONNX embedding model.
type FastEmbedConfig struct {
	// Model names the embedding model. Accepts either a friendly name
	// (e.g. "BAAI/bge-small-en-v1.5") or a fastembed model name directly
	// (e.g. "fast-bge-small-en-v1.5"). Defaults to BAAI/bge-small-en-v1.5.
	Model string

	// CacheDir is where model weights are cached. Defaults to
	// ~/.cache/agrama/models.
	CacheDir string

	// MaxLength bounds the input token sequence length. Defaults to 512.
	MaxLength int
}

var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"fast-bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"fast-bge-small-en":                      fastembed.BGESmallEN,
	"fast-bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"fast-bge-base-en":                       fastembed.BGEBaseEN,
	"fast-bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"fast-all-MiniLM-L6-v2":                  fastembed.AllMiniLML6V2,
}

var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.BGESmallZH:    512,
	fastembed.AllMiniLML6V2: 384,
}

// FastEmbed wraps a local fastembed-go model so it satisfies Embedder.
// Content is embedded with the "passage: " prefix convention the BGE model
// family recommends; query-side prefixing is left to callers that know they
// are embedding a query rather than stored content (see EmbedQuery).
type FastEmbed struct {
	model     *fastembed.FlagEmbedding
	dimension int
	mu        sync.RWMutex
}

// NewFastEmbed initializes a local FastEmbed model per cfg. This downloads
// and loads ONNX model weights and may take several seconds the first time
// a given model is used.
func NewFastEmbed(cfg FastEmbedConfig) (*FastEmbed, error) {
	const op = "embedder.NewFastEmbed"

	modelName := cfg.Model
	if modelName == "" {
		modelName = "BAAI/bge-small-en-v1.5"
	}

	model, ok := modelMapping[modelName]
	if !ok {
		// Accept the fastembed name directly if it already matches a
		// known dimension entry.
		model = fastembed.EmbeddingModel(modelName)
	}
	dimension, ok := modelDimensions[model]
	if !ok {
		return nil, agramaerr.New(agramaerr.Validation, op, fmt.Sprintf("unknown embedding model %q", cfg.Model))
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, agramaerr.Wrap(agramaerr.Internal, op, "resolving default cache dir", err)
		}
		cacheDir = filepath.Join(home, ".cache", "agrama", "models")
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 512
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, agramaerr.Wrap(agramaerr.Internal, op, "initializing fastembed", err)
	}

	return &FastEmbed{model: flagEmbed, dimension: dimension}, nil
}

// Dimension implements Embedder.
func (f *FastEmbed) Dimension() int { return f.dimension }

// Embed implements Embedder, passage-embedding a single piece of content.
func (f *FastEmbed) Embed(ctx context.Context, text []byte) ([]float32, error) {
	const op = "embedder.FastEmbed.Embed"
	select {
	case <-ctx.Done():
		return nil, agramaerr.Wrap(agramaerr.Cancelled, op, "context done", ctx.Err())
	default:
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	embeddings, err := f.model.PassageEmbed([]string{string(text)}, 256)
	if err != nil {
		return nil, agramaerr.Wrap(agramaerr.Internal, op, "fastembed passage embed", err)
	}
	if len(embeddings) == 0 {
		return nil, agramaerr.New(agramaerr.Internal, op, "fastembed returned no embeddings")
	}
	return embeddings[0], nil
}

// EmbedQuery embeds text using the model's query-side prefix convention,
// which some BGE models weight differently than passage embedding.
func (f *FastEmbed) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	const op = "embedder.FastEmbed.EmbedQuery"
	select {
	case <-ctx.Done():
		return nil, agramaerr.Wrap(agramaerr.Cancelled, op, "context done", ctx.Err())
	default:
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	embedding, err := f.model.QueryEmbed(text)
	if err != nil {
		return nil, agramaerr.Wrap(agramaerr.Internal, op, "fastembed query embed", err)
	}
	return embedding, nil
}

// Close releases the underlying ONNX runtime resources.
func (f *FastEmbed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.model != nil {
		return f.model.Destroy()
	}
	return nil
}
