package primitives

import (
	"github.com/nibzard/agrama/internal/pool"
	"github.com/nibzard/agrama/internal/session"
)

// Context is the per-invocation bundle every primitive handler receives:
// borrowed references to the stores and indices (via the owning Engine), an
// operation-scoped arena, the invoking agent's session, and the invocation
// timestamp. It lives for exactly one primitive execution.
type Context struct {
	Engine    *Engine
	Arena     *pool.Arena
	Agent     *session.Agent
	Timestamp int64 // microseconds
}
