// Package mcpserver is the stdio JSON-RPC transport that drives the
// primitive engine: newline-delimited JSON-RPC 2.0 over stdin/stdout,
// speaking the MCP protocol (initialize, tools/list, tools/call). The
// transport is outside the core's guarantees; it only translates tool calls
// into Engine.Invoke and enforces the configured in-flight limit.
package mcpserver

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/nibzard/agrama/internal/agramaerr"
	"github.com/nibzard/agrama/internal/engine"
)

// Server wraps the MCP SDK server around an engine.
type Server struct {
	mcpServer *mcpsdk.Server
	engine    *engine.Engine
	logger    *zap.Logger

	maxInFlight int64
}

// New creates a stdio MCP server over eng.
func New(eng *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "agrama",
		Version: "1.0.0",
	}, nil)

	s := &Server{
		mcpServer:   mcpServer,
		engine:      eng,
		logger:      logger,
		maxInFlight: int64(eng.Config().Server.MaxInFlight),
	}
	s.registerTools()
	return s
}

// Run serves the stdio transport until ctx is cancelled or the stream
// closes.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// invoke funnels every tool call into the primitive engine with the
// transport-level policies applied: agent identity defaulting, in-flight
// backpressure, and the optional per-call deadline.
func (s *Server) invoke(ctx context.Context, primitive string, args map[string]any, agentID string, timeoutMS int) (any, error) {
	const op = "mcpserver.invoke"
	if agentID == "" {
		agentID = "anonymous"
	}
	if s.engine.Primitives.Pending() >= s.maxInFlight {
		return nil, agramaerr.New(agramaerr.Conflict, op, "too many in-flight invocations")
	}
	if timeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
		defer cancel()
	}
	return s.engine.Invoke(ctx, primitive, args, agentID)
}
