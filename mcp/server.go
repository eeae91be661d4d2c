package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/suinrdeveloper-dev/vault"
)

const defaultListLimit = 20

// Server wraps the MCP server with vault tools.
type Server struct {
	client    *vault.Client
	mcpServer *server.MCPServer
}

// ToolResult represents the result of a tool call.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolInfo represents a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{Name: "vault_search", Description: "Search archived records by source app, header or message text (case-insensitive substring)"},
	{Name: "vault_list", Description: "List the most recently archived records"},
	{Name: "vault_get", Description: "Get one archived record by its remote id"},
	{Name: "vault_sync", Description: "Drain the remote queue into the local archive now"},
	{Name: "vault_stats", Description: "Show archive statistics and the last sync time"},
}

// NewServer creates a new MCP server with vault tools registered.
func NewServer(client *vault.Client, version string) *Server {
	if version == "" {
		version = "dev"
	}
	s := &Server{client: client}
	s.mcpServer = server.NewMCPServer(
		"vault",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Run serves MCP over stdin/stdout until stdin closes.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// HandleMessage processes a raw JSON-RPC message and returns a response.
func (s *Server) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	return s.mcpServer.HandleMessage(ctx, message)
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	return append([]ToolInfo(nil), tools...)
}

// CallTool executes a tool by name with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	switch name {
	case "vault_search":
		return s.handleSearch(ctx, args)
	case "vault_list":
		return s.handleList(ctx, args)
	case "vault_get":
		return s.handleGet(ctx, args)
	case "vault_sync":
		return s.handleSync(ctx, args)
	case "vault_stats":
		return s.handleStats(ctx, args)
	default:
		return &ToolResult{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}, nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("vault_search",
		mcp.WithDescription(tools[0].Description+". Results are ordered most recent first."),
		mcp.WithString("query",
			mcp.Description("Text to look for"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of results (default: %d)", defaultListLimit)),
		),
	), s.adapt(s.handleSearch))

	s.mcpServer.AddTool(mcp.NewTool("vault_list",
		mcp.WithDescription(tools[1].Description),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of results (default: %d)", defaultListLimit)),
		),
	), s.adapt(s.handleList))

	s.mcpServer.AddTool(mcp.NewTool("vault_get",
		mcp.WithDescription(tools[2].Description),
		mcp.WithString("remote_id",
			mcp.Description("The id the record had in the remote queue"),
			mcp.Required(),
		),
	), s.adapt(s.handleGet))

	s.mcpServer.AddTool(mcp.NewTool("vault_sync",
		mcp.WithDescription(tools[3].Description),
	), s.adapt(s.handleSync))

	s.mcpServer.AddTool(mcp.NewTool("vault_stats",
		mcp.WithDescription(tools[4].Description),
	), s.adapt(s.handleStats))
}

type handlerFunc func(ctx context.Context, args map[string]any) (*ToolResult, error)

func (s *Server) adapt(h handlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := h(ctx, req.GetArguments())
		if err != nil {
			return nil, err
		}
		return toMCPResult(result), nil
	}
}

func toMCPResult(r *ToolResult) *mcp.CallToolResult {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: r.Content,
			},
		},
	}
	if r.IsError {
		result.IsError = true
	}
	return result
}

func (s *Server) handleSearch(ctx context.Context, args map[string]any) (*ToolResult, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return &ToolResult{Content: "query is required", IsError: true}, nil
	}

	records, err := s.client.Search(ctx, query)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("search failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatRecords(records, limitArg(args))}, nil
}

func (s *Server) handleList(ctx context.Context, args map[string]any) (*ToolResult, error) {
	records, err := s.client.Records(ctx)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("list failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatRecords(records, limitArg(args))}, nil
}

func (s *Server) handleGet(ctx context.Context, args map[string]any) (*ToolResult, error) {
	id, ok := args["remote_id"].(string)
	if !ok || id == "" {
		return &ToolResult{Content: "remote_id is required", IsError: true}, nil
	}

	rec, err := s.client.Get(ctx, id)
	if errors.Is(err, vault.ErrNotFound) {
		return &ToolResult{Content: fmt.Sprintf("no record with remote id %s", id), IsError: true}, nil
	}
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("get failed: %v", err), IsError: true}, nil
	}
	return &ToolResult{Content: formatRecord(rec)}, nil
}

func (s *Server) handleSync(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	result, err := s.client.Sync(ctx)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("sync failed: %v", err), IsError: true}, nil
	}
	if result.Fetched == 0 {
		return &ToolResult{Content: "Nothing pending in the remote queue."}, nil
	}
	return &ToolResult{Content: fmt.Sprintf("Sync complete (%d fetched): %s", result.Fetched, result.Summary())}, nil
}

func (s *Server) handleStats(ctx context.Context, _ map[string]any) (*ToolResult, error) {
	stats, err := s.client.Stats(ctx)
	if err != nil {
		return &ToolResult{Content: fmt.Sprintf("stats failed: %v", err), IsError: true}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Records: %d\n", stats.RecordCount)
	if stats.LastSync.IsZero() {
		sb.WriteString("Last sync: never\n")
	} else {
		fmt.Fprintf(&sb, "Last sync: %s\n", stats.LastSync.Format("2006-01-02 15:04:05 MST"))
	}
	if stats.LastCycleID != "" {
		fmt.Fprintf(&sb, "Last cycle: %s\n", stats.LastCycleID)
	}
	fmt.Fprintf(&sb, "Schema version: %s", stats.SchemaVersion)
	return &ToolResult{Content: sb.String()}, nil
}

func limitArg(args map[string]any) int {
	if v, ok := args["limit"].(float64); ok && v > 0 {
		return int(v)
	}
	return defaultListLimit
}

func formatRecords(records []vault.SyncedRecord, limit int) string {
	if len(records) == 0 {
		return "No matching records found."
	}

	var sb strings.Builder
	shown := records
	if len(shown) > limit {
		shown = shown[:limit]
	}
	fmt.Fprintf(&sb, "Found %d records", len(records))
	if len(shown) < len(records) {
		fmt.Fprintf(&sb, " (showing %d)", len(shown))
	}
	sb.WriteString(":\n\n")

	for _, r := range shown {
		fmt.Fprintf(&sb, "[%s] %s | %s\n", r.RemoteID, r.SourceLabel, r.Header)
		fmt.Fprintf(&sb, "    %s\n", truncate(r.Payload, 200))
		fmt.Fprintf(&sb, "    Time: %s\n\n", r.CreatedAt)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatRecord(r *vault.SyncedRecord) string {
	return fmt.Sprintf("Record [%s]:\n  Source: %s\n  Header: %s\n  Message: %s\n  Time: %s\n  Artifact: %s",
		r.RemoteID, r.SourceLabel, r.Header, r.Payload, r.CreatedAt, r.ArtifactPath)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
