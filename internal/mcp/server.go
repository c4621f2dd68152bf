// Package mcp provides Model Context Protocol server functionality.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/helixml/ticketsql/application/service"
	"github.com/helixml/ticketsql/domain/query"
	"github.com/helixml/ticketsql/domain/retrieval"
	"github.com/helixml/ticketsql/domain/schema"
	"github.com/helixml/ticketsql/domain/ticket"
	"github.com/helixml/ticketsql/internal/log"
)

// Pipeline generates, revises and checks statements for MCP tools.
type Pipeline interface {
	Generate(ctx context.Context, ticketText string) (service.Result, error)
	Revise(ctx context.Context, currentSQL, ticketText string, history ticket.History, maxRetries int) (service.Revision, error)
	Validate(sql string) error
	Preview(ctx context.Context, sql string, limit int) (query.ResultSet, error)
	Assess(ctx context.Context, ticketText string) (service.Assessment, error)
}

// Catalog answers schema and value questions for MCP tools and resources.
type Catalog interface {
	SearchValues(ctx context.Context, text string, k int) ([]retrieval.Hit, error)
	Columns(ctx context.Context) []schema.Column
	DescribeSchema(ctx context.Context, tables ...string) string
}

// Server wraps the MCP server with ticketsql tools.
type Server struct {
	mcpServer *server.MCPServer
	pipeline  Pipeline
	catalog   Catalog
	version   string
	logger    *slog.Logger
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(pipeline Pipeline, catalog Catalog, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		pipeline: pipeline,
		catalog:  catalog,
		version:  version,
		logger:   logger,
	}

	mcpServer := server.NewMCPServer(
		"ticketsql",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, false),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.mcpServer = mcpServer
	return s
}

// registerTools registers all ticketsql tools with the MCP server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("generate_sql",
		mcp.WithDescription("Generate a reviewed, read-only SQL statement answering a support ticket"),
		mcp.WithString("ticket",
			mcp.Required(),
			mcp.Description("The ticket summary or full ticket text"),
		),
		mcp.WithString("key",
			mcp.Description("Optional ticket key, e.g. OPS-42"),
		),
		mcp.WithString("description",
			mcp.Description("Optional ticket description"),
		),
	), s.handleGenerate)

	mcpServer.AddTool(mcp.NewTool("revise_sql",
		mcp.WithDescription("Revise a statement using reviewer feedback and the ticket discussion"),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The statement to revise"),
		),
		mcp.WithString("ticket",
			mcp.Required(),
			mcp.Description("The ticket text the statement answers"),
		),
		mcp.WithArray("feedback",
			mcp.Description("Feedback messages, oldest first"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("max_retries",
			mcp.Description("Retries after the first attempt, capped at the server setting (default: server setting)"),
		),
	), s.handleRevise)

	mcpServer.AddTool(mcp.NewTool("validate_sql",
		mcp.WithDescription("Check a statement against the read-only safety gate"),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The statement to check"),
		),
	), s.handleValidate)

	mcpServer.AddTool(mcp.NewTool("preview_sql",
		mcp.WithDescription("Run a validated statement read-only and return the first rows"),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The statement to run"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum rows to return (default: server setting)"),
		),
	), s.handlePreview)

	mcpServer.AddTool(mcp.NewTool("assess_ticket",
		mcp.WithDescription("Judge whether a ticket can be answered from the database"),
		mcp.WithString("ticket",
			mcp.Required(),
			mcp.Description("The ticket text"),
		),
	), s.handleAssess)

	mcpServer.AddTool(mcp.NewTool("search_values",
		mcp.WithDescription("Find catalog values similar to the given text"),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free text to match against sampled column values"),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of values to return (default: 10)"),
		),
	), s.handleSearchValues)

	mcpServer.AddTool(mcp.NewTool("describe_schema",
		mcp.WithDescription("Describe catalog tables and their columns"),
		mcp.WithArray("tables",
			mcp.Description("Tables to describe; all tables when omitted"),
			mcp.WithStringItems(),
		),
	), s.handleDescribeSchema)

	mcpServer.AddTool(mcp.NewTool("get_version",
		mcp.WithDescription("Return the server version"),
	), s.handleVersion)
}

// registerResources exposes each catalog table as schema://namespace/table.
func (s *Server) registerResources(mcpServer *server.MCPServer) {
	template := mcp.NewResourceTemplate(TableURITemplate, "table",
		mcp.WithTemplateDescription("Columns and types of one catalog table"),
		mcp.WithTemplateMIMEType("text/plain"),
	)
	mcpServer.AddResourceTemplate(template, s.handleTableResource)
}

func (s *Server) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, _ = log.EnsureCorrelationID(ctx)
	summary, err := request.RequireString("ticket")
	if err != nil {
		return mcp.NewToolResultError("ticket is required"), nil
	}
	text := summary
	key := request.GetString("key", "")
	description := request.GetString("description", "")
	if key != "" || description != "" {
		text = ticket.New(key, summary, description).Text()
	}

	result, err := s.pipeline.Generate(ctx, text)
	if err != nil {
		s.logger.ErrorContext(ctx, "generate_sql failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("generate failed: %v", err)), nil
	}
	return jsonResult(result)
}

func (s *Server) handleRevise(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, _ = log.EnsureCorrelationID(ctx)
	sql, err := request.RequireString("sql")
	if err != nil {
		return mcp.NewToolResultError("sql is required"), nil
	}
	text, err := request.RequireString("ticket")
	if err != nil {
		return mcp.NewToolResultError("ticket is required"), nil
	}
	history := ticket.NewHistory(request.GetStringSlice("feedback", nil)...)
	maxRetries := request.GetInt("max_retries", -1)

	revision, err := s.pipeline.Revise(ctx, sql, text, history, maxRetries)
	if err != nil {
		s.logger.ErrorContext(ctx, "revise_sql failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("revise failed: %v", err)), nil
	}
	return jsonResult(revision)
}

type validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleValidate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sql, err := request.RequireString("sql")
	if err != nil {
		return mcp.NewToolResultError("sql is required"), nil
	}
	if err := s.pipeline.Validate(sql); err != nil {
		return jsonResult(validation{Valid: false, Reason: err.Error()})
	}
	return jsonResult(validation{Valid: true})
}

func (s *Server) handlePreview(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, _ = log.EnsureCorrelationID(ctx)
	sql, err := request.RequireString("sql")
	if err != nil {
		return mcp.NewToolResultError("sql is required"), nil
	}
	rows, err := s.pipeline.Preview(ctx, sql, request.GetInt("limit", 0))
	if err != nil {
		if !errors.Is(err, query.ErrUnsafeSQL) {
			s.logger.ErrorContext(ctx, "preview_sql failed", slog.Any("error", err))
		}
		return mcp.NewToolResultError(fmt.Sprintf("preview failed: %v", err)), nil
	}
	return jsonResult(rows)
}

func (s *Server) handleAssess(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, _ = log.EnsureCorrelationID(ctx)
	text, err := request.RequireString("ticket")
	if err != nil {
		return mcp.NewToolResultError("ticket is required"), nil
	}
	assessment, err := s.pipeline.Assess(ctx, text)
	if err != nil {
		s.logger.ErrorContext(ctx, "assess_ticket failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("assess failed: %v", err)), nil
	}
	return jsonResult(assessment)
}

func (s *Server) handleSearchValues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	hits, err := s.catalog.SearchValues(ctx, text, request.GetInt("k", 10))
	if err != nil {
		s.logger.ErrorContext(ctx, "search_values failed", slog.Any("error", err))
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(hits)
}

func (s *Server) handleDescribeSchema(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tables := request.GetStringSlice("tables", nil)
	summary := s.catalog.DescribeSchema(ctx, tables...)
	if strings.TrimSpace(summary) == "" {
		return mcp.NewToolResultError("no matching tables in the schema"), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (s *Server) handleVersion(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.version), nil
}

func (s *Server) handleTableResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri, err := ParseTableURI(request.Params.URI)
	if err != nil {
		return nil, err
	}
	if !hasTable(s.catalog.Columns(ctx), uri.Table()) {
		return nil, fmt.Errorf("table %q is not in the schema", uri.Table())
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri.String(),
			MIMEType: "text/plain",
			Text:     s.catalog.DescribeSchema(ctx, uri.Table()),
		},
	}, nil
}

func hasTable(columns []schema.Column, table string) bool {
	for _, c := range columns {
		if c.Table == table {
			return true
		}
	}
	return false
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MCPServer returns the underlying MCP server for stdio serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
