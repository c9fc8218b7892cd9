package sinktrace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/sinktrace/kit"
	"github.com/hazyhaar/sinktrace/sinkstore"
)

// RegisterMCP registers the sinktrace tools on an MCP server.
func (t *Tracer) RegisterMCP(srv *mcp.Server) {
	t.registerTraceTool(srv)
	t.registerQueryTool(srv)
	t.registerIngestTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- trace ---

type traceReq struct {
	Canary   string `json:"canary"`
	MaxSinks int    `json:"max_sinks"`
	// ExtractCallstacks defaults to true; false runs discovery only.
	ExtractCallstacks *bool `json:"extract_callstacks"`
}

func (t *Tracer) registerTraceTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sinktrace_trace",
		Description: "Re-trigger every sink record matching a canary in isolated browser contexts and extract call stacks at the pause point.",
		InputSchema: inputSchema(map[string]any{
			"canary":             map[string]any{"type": "string", "description": "Canary value correlating the sink records"},
			"max_sinks":          map[string]any{"type": "integer", "description": "Cap on records to process (0 = configured default)"},
			"extract_callstacks": map[string]any{"type": "boolean", "description": "Pause and extract call stacks (default true); false lists matches only"},
		}, []string{"canary"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*traceReq)
		extract := r.ExtractCallstacks == nil || *r.ExtractCallstacks
		return t.ProcessSinks(ctx, r.Canary, r.MaxSinks, extract)
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r traceReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- query ---

type queryReq struct {
	Canary string `json:"canary"`
	Max    int    `json:"max"`
}

func (t *Tracer) registerQueryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sinktrace_query",
		Description: "List captured sink records matching a canary, in discovery order, without opening any browser session.",
		InputSchema: inputSchema(map[string]any{
			"canary": map[string]any{"type": "string", "description": "Canary value to match"},
			"max":    map[string]any{"type": "integer", "description": "Cap on returned records (0 = unlimited)"},
		}, []string{"canary"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*queryReq)
		recs, err := t.store.QueryCanary(ctx, r.Canary, r.Max)
		if err != nil {
			return nil, err
		}
		total, err := t.store.CountCanary(ctx, r.Canary)
		if err != nil {
			return nil, err
		}
		return map[string]any{"total_found": total, "records": recs}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r queryReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- ingest ---

type ingestReq struct {
	Records []sinkstore.Record `json:"records"`
}

func (t *Tracer) registerIngestTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "sinktrace_ingest",
		Description: "Ingest captured sink records into the store, upserting by dedup key.",
		InputSchema: inputSchema(map[string]any{
			"records": map[string]any{
				"type":        "array",
				"description": "Sink records as captured by the page instrumentation",
				"items":       map[string]any{"type": "object"},
			},
		}, []string{"records"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*ingestReq)
		for i, rec := range r.Records {
			if rec.DedupKey == "" {
				return nil, fmt.Errorf("record %d: dedup_key is required", i)
			}
			if rec.Timestamp.IsZero() {
				rec.Timestamp = time.Now().UTC()
			}
			if err := t.store.Put(ctx, rec); err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
		}
		return map[string]any{"ingested": len(r.Records)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r ingestReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
