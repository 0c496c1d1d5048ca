package mcpserver

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// CommonParams are the fields every tool accepts on top of its own.
type CommonParams struct {
	AgentID   string `json:"agent_id,omitempty" jsonschema:"Identity of the invoking agent (registered lazily on first use)"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"Per-call deadline in milliseconds (0 = none)"`
}

// StoreParams defines parameters for the store tool.
type StoreParams struct {
	CommonParams
	Key      string         `json:"key" jsonschema:"Content key (relative path, validated)"`
	Value    string         `json:"value" jsonschema:"Content to store"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"Optional metadata map"`
}

// RetrieveParams defines parameters for the retrieve tool.
type RetrieveParams struct {
	CommonParams
	Key            string `json:"key" jsonschema:"Content key"`
	IncludeHistory bool   `json:"include_history,omitempty" jsonschema:"Also return up to 10 most recent versions"`
}

// SearchParams defines parameters for the search tool.
type SearchParams struct {
	CommonParams
	Query      string  `json:"query,omitempty" jsonschema:"Search query text"`
	Mode       string  `json:"mode,omitempty" jsonschema:"semantic, lexical, graph, temporal, or hybrid (default)"`
	K          int     `json:"k,omitempty" jsonschema:"Maximum results (default 10)"`
	Ef         int     `json:"ef,omitempty" jsonschema:"Semantic/hybrid: candidate list width"`
	Resolution int     `json:"resolution,omitempty" jsonschema:"Semantic mode: Matryoshka prefix dimension (0 = full)"`
	Root       string  `json:"root,omitempty" jsonschema:"Graph mode: traversal root key"`
	Direction  string  `json:"direction,omitempty" jsonschema:"Graph mode: forward, reverse, or both"`
	MaxDepth   int     `json:"max_depth,omitempty" jsonschema:"Graph mode: hop limit (default 3)"`
	Since      float64 `json:"since,omitempty" jsonschema:"Temporal mode: range start, microseconds"`
	Until      float64 `json:"until,omitempty" jsonschema:"Temporal mode: range end, microseconds"`
	Alpha      float64 `json:"alpha,omitempty" jsonschema:"Hybrid mode: lexical weight (default 0.4)"`
	Beta       float64 `json:"beta,omitempty" jsonschema:"Hybrid mode: semantic weight (default 0.4)"`
	Gamma      float64 `json:"gamma,omitempty" jsonschema:"Hybrid mode: graph weight (default 0.2)"`
	Context    string  `json:"context,omitempty" jsonschema:"Hybrid mode: context node key for graph proximity"`
}

// LinkParams defines parameters for the link tool.
type LinkParams struct {
	CommonParams
	From     string         `json:"from" jsonschema:"Source key"`
	To       string         `json:"to" jsonschema:"Target key"`
	Relation string         `json:"relation" jsonschema:"Edge relation (contains, depends_on, calls, evolved_into, similar_to, references, or custom)"`
	Metadata map[string]any `json:"metadata,omitempty" jsonschema:"Optional edge metadata; a numeric weight entry sets the edge weight"`
}

// TransformParams defines parameters for the transform tool.
type TransformParams struct {
	CommonParams
	Op      string         `json:"op" jsonschema:"Transform name: parse_functions, extract_imports, generate_summary, compress_text"`
	Data    string         `json:"data" jsonschema:"Input data"`
	Options map[string]any `json:"options,omitempty" jsonschema:"Transform-specific options"`
}

// StatusParams defines parameters for the status tool.
type StatusParams struct{}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "store",
		Description: "Store content under a key with versioned history. Text over 50 bytes is also embedded and indexed for search.",
	}, s.handleStore)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "retrieve",
		Description: "Retrieve the current content for a key, optionally with up to 10 most recent versions.",
	}, s.handleRetrieve)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "search",
		Description: "Search stored content: semantic (vector), lexical (BM25), graph (traversal from a root), temporal (time range), or hybrid fusion.",
	}, s.handleSearch)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "link",
		Description: "Create or update a typed, weighted edge between two keys, registering either endpoint as a node if missing.",
	}, s.handleLink)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "transform",
		Description: "Run a registered transform over data: parse_functions, extract_imports, generate_summary, or compress_text.",
	}, s.handleTransform)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "status",
		Description: "Report engine status: node/edge counts, indexed vectors, pending invocations, and session count.",
	}, s.handleStatus)
}

func (s *Server) handleStore(ctx context.Context, _ *mcpsdk.CallToolRequest, params *StoreParams) (*mcpsdk.CallToolResult, any, error) {
	args := map[string]any{"key": params.Key, "value": params.Value}
	if params.Metadata != nil {
		args["metadata"] = params.Metadata
	}
	result, err := s.invoke(ctx, "store", args, params.AgentID, params.TimeoutMS)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func (s *Server) handleRetrieve(ctx context.Context, _ *mcpsdk.CallToolRequest, params *RetrieveParams) (*mcpsdk.CallToolResult, any, error) {
	args := map[string]any{"key": params.Key, "include_history": params.IncludeHistory}
	result, err := s.invoke(ctx, "retrieve", args, params.AgentID, params.TimeoutMS)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func (s *Server) handleSearch(ctx context.Context, _ *mcpsdk.CallToolRequest, params *SearchParams) (*mcpsdk.CallToolResult, any, error) {
	args := map[string]any{}
	if params.Query != "" {
		args["query"] = params.Query
	}
	if params.Mode != "" {
		args["mode"] = params.Mode
	}
	if params.K != 0 {
		args["k"] = params.K
	}
	if params.Ef != 0 {
		args["ef"] = params.Ef
	}
	if params.Resolution != 0 {
		args["resolution"] = params.Resolution
	}
	if params.Root != "" {
		args["root"] = params.Root
	}
	if params.Direction != "" {
		args["direction"] = params.Direction
	}
	if params.MaxDepth != 0 {
		args["max_depth"] = params.MaxDepth
	}
	if params.Since != 0 {
		args["since"] = params.Since
	}
	if params.Until != 0 {
		args["until"] = params.Until
	}
	if params.Alpha != 0 {
		args["alpha"] = params.Alpha
	}
	if params.Beta != 0 {
		args["beta"] = params.Beta
	}
	if params.Gamma != 0 {
		args["gamma"] = params.Gamma
	}
	if params.Context != "" {
		args["context"] = params.Context
	}
	result, err := s.invoke(ctx, "search", args, params.AgentID, params.TimeoutMS)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func (s *Server) handleLink(ctx context.Context, _ *mcpsdk.CallToolRequest, params *LinkParams) (*mcpsdk.CallToolResult, any, error) {
	args := map[string]any{"from": params.From, "to": params.To, "relation": params.Relation}
	if params.Metadata != nil {
		args["metadata"] = params.Metadata
	}
	result, err := s.invoke(ctx, "link", args, params.AgentID, params.TimeoutMS)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

func (s *Server) handleTransform(ctx context.Context, _ *mcpsdk.CallToolRequest, params *TransformParams) (*mcpsdk.CallToolResult, any, error) {
	args := map[string]any{"op": params.Op, "data": params.Data}
	if params.Options != nil {
		args["options"] = params.Options
	}
	result, err := s.invoke(ctx, "transform", args, params.AgentID, params.TimeoutMS)
	if err != nil {
		return nil, nil, err
	}
	return nil, result, nil
}

// StatusResult is the status tool's payload.
type StatusResult struct {
	Nodes      int64 `json:"nodes"`
	Edges      int64 `json:"edges"`
	Vectors    int   `json:"vectors"`
	Pending    int64 `json:"pending"`
	Agents     int   `json:"agents"`
	Operations int   `json:"operations"`
}

func (s *Server) handleStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ *StatusParams) (*mcpsdk.CallToolResult, any, error) {
	nodes, edges := s.engine.Graph.Stats()
	return nil, StatusResult{
		Nodes:      nodes,
		Edges:      edges,
		Vectors:    s.engine.Semantic.Len(),
		Pending:    s.engine.Primitives.Pending(),
		Agents:     len(s.engine.Sessions.Agents()),
		Operations: s.engine.Primitives.Log().Len(),
	}, nil
}
