package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/helixml/ticketsql/application/service"
	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/domain/ticket"
)

// fakePipeline records calls and returns canned results.
type fakePipeline struct {
	generated   string
	generateErr error
	revisedWith ticket.History
	maxRetries  int
	previewSQL  string
}

func (f *fakePipeline) Generate(_ context.Context, text string) (service.Result, error) {
	f.generated = text
	if f.generateErr != nil {
		return service.Result{}, f.generateErr
	}
	return service.Result{SQL: "SELECT symbol FROM trades", Draft: "select symbol from trades", Notes: "uppercased"}, nil
}

func (f *fakePipeline) Revise(_ context.Context, currentSQL, _ string, history ticket.History, maxRetries int) (service.Revision, error) {
	f.revisedWith = history
	f.maxRetries = maxRetries
	return service.Revision{Reviewed: query.NewReviewed(currentSQL+" LIMIT 10", "limited"), Attempts: 1, Applied: true}, nil
}

func (f *fakePipeline) Validate(sql string) error {
	return query.Check(sql)
}

func (f *fakePipeline) Preview(_ context.Context, sql string, limit int) (query.ResultSet, error) {
	if err := query.Check(sql); err != nil {
		return query.ResultSet{}, service.NewStageError(service.StageValidation, err)
	}
	f.previewSQL = sql
	return query.ResultSet{Columns: []string{"symbol"}, Rows: [][]string{{"BTC"}}, Truncated: limit == 1}, nil
}

func (f *fakePipeline) Assess(_ context.Context, _ string) (service.Assessment, error) {
	return service.Assessment{Feasible: true, Confidence: 0.8, Complexity: service.ComplexitySimple, RequiredTables: []string{"trades"}}, nil
}

// fakeCatalog serves the trades table.
type fakeCatalog struct{}

func (fakeCatalog) SearchValues(_ context.Context, text string, k int) ([]retrieval.Hit, error) {
	if text == "boom" {
		return nil, errors.New("index unavailable")
	}
	hits := []retrieval.Hit{
		retrieval.NewHit(retrieval.NewValueRecord("trades", "symbol", "BTC"), 0.01),
		retrieval.NewHit(retrieval.NewValueRecord("trades", "symbol", "ETH"), 0.4),
	}
	return hits[:min(k, len(hits))], nil
}

func (fakeCatalog) Columns(_ context.Context) []schema.Column {
	return []schema.Column{
		schema.NewColumn("trades", "symbol", "text"),
		schema.NewColumn("trades", "qty", "numeric"),
	}
}

func (c fakeCatalog) DescribeSchema(ctx context.Context, tables ...string) string {
	if len(tables) == 0 {
		return schema.FullSummary(c.Columns(ctx))
	}
	return schema.CompactSummary(c.Columns(ctx), tables)
}

// sendMessage marshals a JSON-RPC request, sends it through HandleMessage,
// and returns the JSONRPCResponse. It fatals on marshal failure or unexpected
// response type.
func sendMessage(t *testing.T, srv *Server, method string, id int, params map[string]any) mcp.JSONRPCResponse {
	t.Helper()

	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	result := srv.MCPServer().HandleMessage(context.Background(), raw)

	resp, ok := result.(mcp.JSONRPCResponse)
	if !ok {
		t.Fatalf("expected JSONRPCResponse, got %T: %+v", result, result)
	}
	return resp
}

// resultJSON re-marshals the Result field through JSON into dst.
func resultJSON(t *testing.T, resp mcp.JSONRPCResponse, dst any) {
	t.Helper()
	b, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if err := json.Unmarshal(b, dst); err != nil {
		t.Fatalf("unmarshal result into %T: %v", dst, err)
	}
}

// callTool invokes a tool and returns its first text content and error flag.
func callTool(t *testing.T, srv *Server, name string, args map[string]any) (string, bool) {
	t.Helper()
	resp := sendMessage(t, srv, "tools/call", 3, map[string]any{
		"name":      name,
		"arguments": args,
	})
	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	resultJSON(t, resp, &result)
	if len(result.Content) == 0 {
		return "", result.IsError
	}
	return result.Content[0].Text, result.IsError
}

func testServer() (*Server, *fakePipeline) {
	p := &fakePipeline{}
	return NewServer(p, fakeCatalog{}, "0.1.0-test", nil), p
}

func initializeParams() map[string]any {
	return map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "0.0.1",
		},
	}
}

func TestServer_Initialize(t *testing.T) {
	srv, _ := testServer()
	resp := sendMessage(t, srv, "initialize", 1, initializeParams())

	var result mcp.InitializeResult
	resultJSON(t, resp, &result)

	if result.ServerInfo.Name != "ticketsql" {
		t.Errorf("expected server name ticketsql, got %s", result.ServerInfo.Name)
	}
	if result.ServerInfo.Version != "0.1.0-test" {
		t.Errorf("expected version 0.1.0-test, got %s", result.ServerInfo.Version)
	}
	if result.Capabilities.Tools == nil {
		t.Error("expected tools capability to be present")
	}
}

func TestServer_ListTools(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "tools/list", 2, nil)

	var result mcp.ListToolsResult
	resultJSON(t, resp, &result)

	expected := []string{
		"generate_sql",
		"revise_sql",
		"validate_sql",
		"preview_sql",
		"assess_ticket",
		"search_values",
		"describe_schema",
		"get_version",
	}
	if len(result.Tools) != len(expected) {
		t.Fatalf("expected %d tools, got %d", len(expected), len(result.Tools))
	}

	tools := map[string]mcp.Tool{}
	for _, tool := range result.Tools {
		tools[tool.Name] = tool
	}
	for _, name := range expected {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing tool: %s", name)
		}
	}

	revise := tools["revise_sql"]
	for _, param := range []string{"sql", "ticket", "feedback", "max_retries"} {
		if _, ok := revise.InputSchema.Properties[param]; !ok {
			t.Errorf("revise_sql missing %s parameter", param)
		}
	}
	if !contains(revise.InputSchema.Required, "sql") || !contains(revise.InputSchema.Required, "ticket") {
		t.Errorf("revise_sql required = %v", revise.InputSchema.Required)
	}
}

func TestServer_GenerateSQL(t *testing.T) {
	srv, p := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	text, isError := callTool(t, srv, "generate_sql", map[string]any{
		"ticket":      "BTC trades in 2024",
		"key":         "OPS-9",
		"description": "count them",
	})
	if isError {
		t.Fatalf("generate_sql returned error: %s", text)
	}

	var result service.Result
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.SQL != "SELECT symbol FROM trades" {
		t.Errorf("unexpected sql: %s", result.SQL)
	}
	if !strings.HasPrefix(p.generated, "OPS-9: BTC trades in 2024") {
		t.Errorf("ticket text not built from key and summary: %q", p.generated)
	}
	if !strings.Contains(p.generated, "count them") {
		t.Errorf("ticket text missing description: %q", p.generated)
	}
}

func TestServer_GenerateSQLFailure(t *testing.T) {
	srv, p := testServer()
	p.generateErr = service.NewStageError(service.StageGeneration, fmt.Errorf("%w: model down", service.ErrGenerationFailed))
	sendMessage(t, srv, "initialize", 1, initializeParams())

	text, isError := callTool(t, srv, "generate_sql", map[string]any{"ticket": "anything"})
	if !isError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(text, "generation stage") {
		t.Errorf("error should name the stage: %s", text)
	}
}

func TestServer_ReviseSQL(t *testing.T) {
	srv, p := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	text, isError := callTool(t, srv, "revise_sql", map[string]any{
		"sql":      "SELECT * FROM trades",
		"ticket":   "list trades",
		"feedback": []string{"too many rows", "limit to ten"},
	})
	if isError {
		t.Fatalf("revise_sql returned error: %s", text)
	}

	var revision service.Revision
	if err := json.Unmarshal([]byte(text), &revision); err != nil {
		t.Fatalf("decode revision: %v", err)
	}
	if revision.SQL != "SELECT * FROM trades LIMIT 10" || !revision.Applied {
		t.Errorf("unexpected revision: %+v", revision)
	}
	if len(p.revisedWith) != 2 || p.revisedWith[1].Body != "limit to ten" {
		t.Errorf("feedback not passed as history: %+v", p.revisedWith)
	}
	if p.maxRetries != -1 {
		t.Errorf("expected default retries marker -1, got %d", p.maxRetries)
	}
}

func TestServer_ValidateSQL(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	tests := []struct {
		sql   string
		valid bool
	}{
		{"SELECT * FROM trades", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"DELETE FROM trades", false},
		{"SELECT * FROM trades; DROP TABLE trades", false},
	}
	for _, tt := range tests {
		text, isError := callTool(t, srv, "validate_sql", map[string]any{"sql": tt.sql})
		if isError {
			t.Fatalf("validate_sql returned error: %s", text)
		}
		var v validation
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			t.Fatalf("decode validation: %v", err)
		}
		if v.Valid != tt.valid {
			t.Errorf("%q: valid = %v, want %v", tt.sql, v.Valid, tt.valid)
		}
		if !tt.valid && v.Reason == "" {
			t.Errorf("%q: expected a reason", tt.sql)
		}
	}
}

func TestServer_PreviewSQL(t *testing.T) {
	srv, p := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	text, isError := callTool(t, srv, "preview_sql", map[string]any{"sql": "SELECT symbol FROM trades", "limit": 1})
	if isError {
		t.Fatalf("preview_sql returned error: %s", text)
	}
	var rows query.ResultSet
	if err := json.Unmarshal([]byte(text), &rows); err != nil {
		t.Fatalf("decode rows: %v", err)
	}
	if !rows.Truncated || len(rows.Rows) != 1 || p.previewSQL != "SELECT symbol FROM trades" {
		t.Errorf("unexpected preview: %+v", rows)
	}

	text, isError = callTool(t, srv, "preview_sql", map[string]any{"sql": "DROP TABLE trades"})
	if !isError {
		t.Fatal("expected unsafe statement to be refused")
	}
	if !strings.Contains(text, "validation stage") {
		t.Errorf("unexpected error text: %s", text)
	}
}

func TestServer_AssessTicket(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	text, isError := callTool(t, srv, "assess_ticket", map[string]any{"ticket": "BTC trades"})
	if isError {
		t.Fatalf("assess_ticket returned error: %s", text)
	}
	if !strings.Contains(text, `"required_tables":["trades"]`) {
		t.Errorf("unexpected assessment: %s", text)
	}
}

func TestServer_SearchValues(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	text, isError := callTool(t, srv, "search_values", map[string]any{"text": "bitcoin", "k": 1})
	if isError {
		t.Fatalf("search_values returned error: %s", text)
	}
	var hits []retrieval.Hit
	if err := json.Unmarshal([]byte(text), &hits); err != nil {
		t.Fatalf("decode hits: %v", err)
	}
	if len(hits) != 1 || hits[0].Value != "BTC" || hits[0].Table != "trades" {
		t.Errorf("unexpected hits: %+v", hits)
	}

	_, isError = callTool(t, srv, "search_values", map[string]any{"text": "boom"})
	if !isError {
		t.Error("expected search failure to surface as tool error")
	}
}

func TestServer_DescribeSchema(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	text, isError := callTool(t, srv, "describe_schema", map[string]any{"tables": []string{"trades"}})
	if isError {
		t.Fatalf("describe_schema returned error: %s", text)
	}
	if text != "- trades: symbol (text), qty (numeric)" {
		t.Errorf("unexpected summary: %q", text)
	}

	_, isError = callTool(t, srv, "describe_schema", map[string]any{"tables": []string{"ghosts"}})
	if !isError {
		t.Error("expected unknown table to surface as tool error")
	}
}

func TestServer_MissingArguments(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	for _, name := range []string{"generate_sql", "revise_sql", "validate_sql", "preview_sql", "assess_ticket", "search_values"} {
		_, isError := callTool(t, srv, name, map[string]any{})
		if !isError {
			t.Errorf("%s: expected error for missing arguments", name)
		}
	}
}

func TestServer_GetVersion(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	text, isError := callTool(t, srv, "get_version", map[string]any{})
	if isError || text != "0.1.0-test" {
		t.Errorf("get_version = %q (error %v)", text, isError)
	}
}

func TestServer_ReadTableResource(t *testing.T) {
	srv, _ := testServer()
	sendMessage(t, srv, "initialize", 1, initializeParams())

	resp := sendMessage(t, srv, "resources/read", 4, map[string]any{
		"uri": NewTableURI("public", "trades").String(),
	})
	var result struct {
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
	}
	resultJSON(t, resp, &result)
	if len(result.Contents) != 1 {
		t.Fatalf("expected one content block, got %d", len(result.Contents))
	}
	if result.Contents[0].URI != "schema://public/trades" {
		t.Errorf("unexpected uri: %s", result.Contents[0].URI)
	}
	if !strings.Contains(result.Contents[0].Text, "symbol (text)") {
		t.Errorf("unexpected text: %s", result.Contents[0].Text)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
