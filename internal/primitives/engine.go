// Package primitives implements the primitive-execution engine: the five
// composable operations (store, retrieve, search, link, transform) behind a
// uniform dispatch interface with per-agent sessions, provenance, arena
// discipline, and an append-only operation log.
package primitives

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/nibzard/agrama/internal/agramaerr"
	"github.com/nibzard/agrama/internal/content"
	"github.com/nibzard/agrama/internal/embedder"
	"github.com/nibzard/agrama/internal/graph"
	"github.com/nibzard/agrama/internal/lexical"
	"github.com/nibzard/agrama/internal/opcache"
	"github.com/nibzard/agrama/internal/pool"
	"github.com/nibzard/agrama/internal/ranker"
	"github.com/nibzard/agrama/internal/semantic"
	"github.com/nibzard/agrama/internal/session"
	"github.com/nibzard/agrama/internal/transform"
	"github.com/nibzard/agrama/internal/traversal"
)

// IndexThreshold is the value length above which a stored text is also
// embedded and indexed for search.
const IndexThreshold = 50

// Deps are the borrowed collaborators the engine dispatches into. The
// engine does not own them; the process-lifetime owner (internal/engine)
// does.
type Deps struct {
	Content    *content.Store
	Graph      *graph.Store
	Semantic   *semantic.Index
	Lexical    *lexical.Index
	Traversal  *traversal.Engine
	Ranker     *ranker.Ranker
	Embedder   embedder.Embedder
	Transforms *transform.Registry
	Caches     *opcache.Caches
	Sessions   *session.Registry
	Tokenizer  lexical.Tokenizer
	Logger     *zap.Logger
}

type handlerFunc func(ctx context.Context, pc *Context, args map[string]any) (any, error)

// Engine dispatches primitive invocations. Safe for concurrent use; every
// invocation runs in its own arena and emits exactly one operation-log
// entry, successful or not.
type Engine struct {
	deps  Deps
	oplog *OperationLog

	arenas   *pool.FixedPool[pool.Arena]
	handlers map[string]handlerFunc

	pending atomic.Int64
	lastTS  atomic.Int64
}

// New builds an engine over deps. oplogCap bounds the retained operation
// log (0 = unbounded); arenaCap sizes the arena pool.
func New(deps Deps, oplogCap, arenaCap int) *Engine {
	if deps.Tokenizer == nil {
		deps.Tokenizer = lexical.SimpleTokenizer{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	e := &Engine{
		deps:   deps,
		oplog:  NewOperationLog(oplogCap),
		arenas: pool.NewFixedPool[pool.Arena](arenaCap, nil, func(a *pool.Arena) { a.Reset() }),
	}
	e.handlers = map[string]handlerFunc{
		"store":     e.handleStore,
		"retrieve":  e.handleRetrieve,
		"search":    e.handleSearch,
		"link":      e.handleLink,
		"transform": e.handleTransform,
	}
	return e
}

// Log returns the operation log.
func (e *Engine) Log() *OperationLog { return e.oplog }

// Pending returns the number of invocations currently in flight, the
// backpressure signal surfaced to the transport.
func (e *Engine) Pending() int64 { return e.pending.Load() }

// ArenaMetrics returns the arena pool's counters, used to verify that
// every invocation released its arena.
func (e *Engine) ArenaMetrics() pool.Snapshot { return e.arenas.Metrics.Snapshot() }

// now returns a strictly increasing microsecond timestamp, so content
// versions written back-to-back within one microsecond still order.
func (e *Engine) now() int64 {
	for {
		now := time.Now().UnixMicro()
		last := e.lastTS.Load()
		if now <= last {
			now = last + 1
		}
		if e.lastTS.CompareAndSwap(last, now) {
			return now
		}
	}
}

// Invoke validates, dispatches, and accounts for one primitive invocation
// on behalf of agentID. Deadlines arrive on ctx; a deadline that passes
// mid-execution surfaces as a Cancelled error from the next checkpoint.
func (e *Engine) Invoke(ctx context.Context, name string, args map[string]any, agentID string) (any, error) {
	const op = "primitives.Invoke"

	e.pending.Add(1)
	queueDepth.Inc()
	defer func() {
		e.pending.Add(-1)
		queueDepth.Dec()
	}()

	startTS := e.now()
	agent := e.deps.Sessions.Ensure(agentID, "", nil, startTS)

	handler, ok := e.handlers[name]
	var result any
	var err error
	start := time.Now()
	if !ok {
		err = agramaerr.New(agramaerr.Validation, op, "unknown primitive: "+name)
	} else {
		arena := e.arenas.Acquire()
		pc := &Context{Engine: e, Arena: arena, Agent: agent, Timestamp: startTS}
		func() {
			defer func() {
				arena.Reset()
				e.arenas.Release(arena)
			}()
			result, err = handler(ctx, pc, args)
		}()
	}
	elapsed := time.Since(start)

	agent.RecordOperation(startTS)
	e.deps.Sessions.Append(agentID, name, startTS, err == nil)
	e.oplog.Append(OperationLogEntry{
		Primitive:  name,
		AgentID:    agentID,
		StartedAt:  startTS,
		ElapsedNS:  elapsed.Nanoseconds(),
		Success:    err == nil,
		ResultSize: resultSize(result),
	})

	outcome := "ok"
	if err != nil {
		outcome = string(agramaerr.KindOf(err))
		e.deps.Logger.Debug("primitive failed",
			zap.String("primitive", name),
			zap.String("agent", agentID),
			zap.String("kind", outcome),
			zap.Error(err))
	}
	invocationsTotal.WithLabelValues(name, outcome).Inc()
	invocationDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	return result, err
}

func resultSize(result any) int {
	if result == nil {
		return 0
	}
	blob, err := json.Marshal(result)
	if err != nil {
		return 0
	}
	return len(blob)
}

// checkpoint is the cancellation point between sub-operations.
func checkpoint(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return agramaerr.Wrap(agramaerr.Cancelled, op, "deadline reached", err)
	}
	return nil
}
