package sinktrace

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/sinktrace/sinkstore"
)

var testMCPImpl = &mcp.Implementation{Name: "sinktrace-test", Version: "0.1.0"}

func mcpSession(t *testing.T, tr *Tracer) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testMCPImpl, nil)
	tr.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testMCPImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func mcpCallTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, error) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent", name)
	}
	// Tool failures arrive as IsError plus the message in the content; the
	// client does not rebuild an error value from the wire.
	if result.IsError {
		return "", errors.New(tc.Text)
	}
	return tc.Text, nil
}

func TestMCP_Trace(t *testing.T) {
	drv := newFakeDriver()
	tr := newTestTracer(t, testConfig(), seedStore(t, 2, "XSS_CANARY_42"), drv, &fakeBridge{drv: drv, pausedAt: 9})
	session := mcpSession(t, tr)

	text, err := mcpCallTool(t, session, "sinktrace_trace", map[string]any{"canary": "XSS_CANARY_42"})
	if err != nil {
		t.Fatalf("tool error: %v", err)
	}

	var rep Report
	if err := json.Unmarshal([]byte(text), &rep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rep.TotalFound != 2 || rep.WithCallstack != 2 {
		t.Errorf("total_found = %d with_callstack = %d, want 2/2", rep.TotalFound, rep.WithCallstack)
	}
}

func TestMCP_TraceNoSinks(t *testing.T) {
	drv := newFakeDriver()
	tr := newTestTracer(t, testConfig(), sinkstore.NewMemStore(), drv, &fakeBridge{drv: drv})
	session := mcpSession(t, tr)

	_, err := mcpCallTool(t, session, "sinktrace_trace", map[string]any{"canary": "MISSING"})
	if err == nil {
		t.Fatal("expected a tool error for an unmatched canary")
	}
	if want := "no sinks found for canary: MISSING"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want it to contain %q", err, want)
	}
}

func TestMCP_IngestThenQuery(t *testing.T) {
	drv := newFakeDriver()
	tr := newTestTracer(t, testConfig(), sinkstore.NewMemStore(), drv, &fakeBridge{drv: drv})
	session := mcpSession(t, tr)

	text, err := mcpCallTool(t, session, "sinktrace_ingest", map[string]any{
		"records": []map[string]any{
			{"dedup_key": "dk-1", "sink_name": "eval", "url": "https://victim.example/a", "canary": "C1"},
			{"dedup_key": "dk-2", "sink_name": "Element.innerHTML", "url": "https://victim.example/b", "canary": "C1"},
		},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var ing struct {
		Ingested int `json:"ingested"`
	}
	json.Unmarshal([]byte(text), &ing)
	if ing.Ingested != 2 {
		t.Errorf("ingested = %d, want 2", ing.Ingested)
	}

	text, err = mcpCallTool(t, session, "sinktrace_query", map[string]any{"canary": "C1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	var q struct {
		TotalFound int                `json:"total_found"`
		Records    []sinkstore.Record `json:"records"`
	}
	if err := json.Unmarshal([]byte(text), &q); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if q.TotalFound != 2 || len(q.Records) != 2 {
		t.Fatalf("query = %d/%d records, want 2/2", q.TotalFound, len(q.Records))
	}
	if q.Records[0].DedupKey != "dk-1" {
		t.Errorf("records out of discovery order: %q first", q.Records[0].DedupKey)
	}
}

func TestMCP_IngestRejectsMissingDedupKey(t *testing.T) {
	drv := newFakeDriver()
	tr := newTestTracer(t, testConfig(), sinkstore.NewMemStore(), drv, &fakeBridge{drv: drv})
	session := mcpSession(t, tr)

	_, err := mcpCallTool(t, session, "sinktrace_ingest", map[string]any{
		"records": []map[string]any{{"sink_name": "eval", "url": "https://victim.example/a"}},
	})
	if err == nil {
		t.Fatal("expected a tool error for a record without dedup_key")
	}
	if !strings.Contains(err.Error(), "dedup_key is required") {
		t.Errorf("error = %q, want the dedup_key message", err)
	}
}
