package primitives

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/nibzard/agrama/internal/agramaerr"
	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/opcache"
)

// StoreResult is the store primitive's result.
type StoreResult struct {
	Success bool `json:"success"`
	Indexed bool `json:"indexed"`
}

func (e *Engine) handleStore(ctx context.Context, pc *Context, args map[string]any) (any, error) {
	const op = "primitives.store"
	key, err := requireString(args, "key", op)
	if err != nil {
		return nil, err
	}
	value, err := requireString(args, "value", op)
	if err != nil {
		return nil, err
	}
	metadata := stringifyMap(optMap(args, "metadata"))

	if err := checkpoint(ctx, op); err != nil {
		return nil, err
	}
	if _, err := e.deps.Content.Put(key, pc.Timestamp, []byte(value), pc.Agent.ID, metadata); err != nil {
		return nil, err
	}
	e.deps.Caches.InvalidateContent(key)

	indexed := false
	if len(value) > IndexThreshold && utf8.ValidString(value) {
		if err := checkpoint(ctx, op); err != nil {
			return nil, err
		}
		if err := e.indexValue(ctx, key, value); err != nil {
			return nil, err
		}
		indexed = true
	}
	return StoreResult{Success: true, Indexed: indexed}, nil
}

// indexValue embeds value and feeds the semantic, lexical, and graph
// indices so the stored key becomes searchable.
func (e *Engine) indexValue(ctx context.Context, key, value string) error {
	id := graph.NodeIDFromName(key)

	vec, err := e.embedCached(ctx, key, value)
	if err != nil {
		return err
	}
	if err := e.deps.Semantic.Insert(id, vec); err != nil {
		return err
	}
	e.deps.Lexical.IndexDoc(id, e.deps.Tokenizer.Tokenize([]byte(value)))
	e.deps.Graph.UpsertNode(graph.Node{ID: id, Kind: graph.KindFile, Name: key})
	return nil
}

// embedCached returns the embedding for value, consulting the embedding
// cache first. Entries depend on the content key so a later store of the
// same key drops them.
func (e *Engine) embedCached(ctx context.Context, key, value string) ([]float32, error) {
	cacheKey := opcache.KeyFor("embed", value)
	if v, ok := e.deps.Caches.Embeddings.Get(cacheKey); ok {
		return v.([]float32), nil
	}
	vec, err := e.deps.Embedder.Embed(ctx, []byte(value))
	if err != nil {
		return nil, err
	}
	e.deps.Caches.Embeddings.Put(cacheKey, vec, key)
	return vec, nil
}

// VersionInfo is one history entry in a retrieve result.
type VersionInfo struct {
	Value     string            `json:"value"`
	Author    string            `json:"author"`
	Timestamp int64             `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// RetrieveResult is the retrieve primitive's result.
type RetrieveResult struct {
	Value    string            `json:"value"`
	Metadata map[string]string `json:"metadata,omitempty"`
	History  []VersionInfo     `json:"history,omitempty"`
}

// historyLimit caps the history slice a retrieve returns.
const historyLimit = 10

func (e *Engine) handleRetrieve(ctx context.Context, _ *Context, args map[string]any) (any, error) {
	const op = "primitives.retrieve"
	key, err := requireString(args, "key", op)
	if err != nil {
		return nil, err
	}
	if err := checkpoint(ctx, op); err != nil {
		return nil, err
	}

	version, err := e.deps.Content.GetVersion(key)
	if err != nil {
		return nil, err
	}
	result := RetrieveResult{Value: string(version.Bytes), Metadata: version.Metadata}

	if optBool(args, "include_history") {
		history, err := e.deps.Content.History(key, historyLimit)
		if err != nil {
			return nil, err
		}
		for _, v := range history {
			result.History = append(result.History, VersionInfo{
				Value:     string(v.Bytes),
				Author:    v.Author,
				Timestamp: v.Timestamp,
				Metadata:  v.Metadata,
			})
		}
	}
	return result, nil
}

// LinkResult is the link primitive's result.
type LinkResult struct {
	Created bool `json:"created"` // false means an existing edge was updated
}

func (e *Engine) handleLink(ctx context.Context, _ *Context, args map[string]any) (any, error) {
	const op = "primitives.link"
	from, err := requireString(args, "from", op)
	if err != nil {
		return nil, err
	}
	to, err := requireString(args, "to", op)
	if err != nil {
		return nil, err
	}
	relation, err := requireString(args, "relation", op)
	if err != nil {
		return nil, err
	}
	metadata := optMap(args, "metadata")
	weight := optFloat(metadata, "weight", 1)
	if weight < 0 {
		return nil, agramaerr.New(agramaerr.Validation, op, "weight must be nonnegative")
	}

	if err := checkpoint(ctx, op); err != nil {
		return nil, err
	}

	srcID := e.upsertEndpoint(from)
	dstID := e.upsertEndpoint(to)

	rel := graph.Relation(relation)
	created := true
	for _, edge := range e.deps.Graph.Neighbors(srcID, graph.Out, &rel) {
		if edge.Dst == dstID {
			created = false
			break
		}
	}
	if err := e.deps.Graph.AddEdge(srcID, dstID, rel, weight, stringifyMap(metadata)); err != nil {
		return nil, err
	}
	e.deps.Caches.Searches.Purge()
	return LinkResult{Created: created}, nil
}

// upsertEndpoint registers key as a graph node if missing: a file node when
// the key names stored content, a concept node otherwise.
func (e *Engine) upsertEndpoint(key string) graph.NodeID {
	id := graph.NodeIDFromName(key)
	if _, ok := e.deps.Graph.GetNode(id); ok {
		return id
	}
	kind := graph.KindConcept
	if e.deps.Content.Exists(key) {
		kind = graph.KindFile
	}
	e.deps.Graph.UpsertNode(graph.Node{ID: id, Kind: kind, Name: key})
	return id
}

// TransformResult is the transform primitive's result.
type TransformResult struct {
	Output    any   `json:"output"`
	ElapsedUS int64 `json:"elapsed_us"`
}

func (e *Engine) handleTransform(ctx context.Context, _ *Context, args map[string]any) (any, error) {
	const op = "primitives.transform"
	name, err := requireString(args, "op", op)
	if err != nil {
		return nil, err
	}
	data, err := requireString(args, "data", op)
	if err != nil {
		return nil, err
	}
	options := optMap(args, "options")

	cacheKey := opcache.KeyFor("transform", map[string]any{"op": name, "data": data, "options": options})
	if v, ok := e.deps.Caches.Transforms.Get(cacheKey); ok {
		return TransformResult{Output: v, ElapsedUS: 0}, nil
	}

	if err := checkpoint(ctx, op); err != nil {
		return nil, err
	}
	start := time.Now()
	output, err := e.deps.Transforms.Apply(ctx, name, []byte(data), options)
	if err != nil {
		return nil, err
	}
	e.deps.Caches.Transforms.Put(cacheKey, output)
	return TransformResult{Output: output, ElapsedUS: time.Since(start).Microseconds()}, nil
}
