package mcp_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suinrdeveloper-dev/vault"
	"github.com/suinrdeveloper-dev/vault/internal/remote"
	vaultmcp "github.com/suinrdeveloper-dev/vault/mcp"
)

func newTestServer(t *testing.T, queue vault.RemoteQueue) (*vaultmcp.Server, *vault.Client) {
	t.Helper()
	dir := t.TempDir()
	client, err := vault.New(vault.Config{
		LocalPath:   filepath.Join(dir, "test.db"),
		ArtifactDir: filepath.Join(dir, "artifacts"),
	}, queue)
	if err != nil {
		t.Fatalf("vault.New() returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return vaultmcp.NewServer(client, "1.0.0"), client
}

func seededServer(t *testing.T) *vaultmcp.Server {
	t.Helper()
	queue := remote.NewMemoryQueue(
		vault.RemoteRecord{ID: "r1", SourceLabel: "sms", Header: "Bank", Payload: "hello world", CreatedAt: "t1"},
		vault.RemoteRecord{ID: "r2", SourceLabel: "sms", Header: "Shop", Payload: "goodbye", CreatedAt: "t2"},
		vault.RemoteRecord{ID: "r3", SourceLabel: "whatsapp", Header: "Mom", Payload: "HELLO again", CreatedAt: "t3"},
	)
	server, client := newTestServer(t, queue)
	if _, err := client.Sync(context.Background()); err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	return server
}

func TestServer_ToolsList(t *testing.T) {
	server, _ := newTestServer(t, nil)
	tools := server.ListTools()

	expected := []string{"vault_search", "vault_list", "vault_get", "vault_sync", "vault_stats"}
	if len(tools) != len(expected) {
		t.Errorf("ListTools() returned %d tools, want %d", len(tools), len(expected))
	}
	names := make(map[string]bool)
	for _, tool := range tools {
		names[tool.Name] = true
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("Tool %q not found in registered tools", name)
		}
	}
}

func TestTool_Search(t *testing.T) {
	server := seededServer(t)

	result, err := server.CallTool(context.Background(), "vault_search", map[string]any{"query": "hello"})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if result.IsError {
		t.Fatalf("vault_search returned error: %s", result.Content)
	}
	if !strings.Contains(result.Content, "Found 2 records") {
		t.Errorf("content = %q", result.Content)
	}
	if strings.Index(result.Content, "[r3]") > strings.Index(result.Content, "[r1]") {
		t.Errorf("results should be most recent first: %q", result.Content)
	}
	if strings.Contains(result.Content, "[r2]") {
		t.Errorf("non-matching record in results: %q", result.Content)
	}
}

func TestTool_Search_MissingQuery(t *testing.T) {
	server, _ := newTestServer(t, nil)

	result, err := server.CallTool(context.Background(), "vault_search", map[string]any{})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for missing query")
	}
}

func TestTool_List_Limit(t *testing.T) {
	server := seededServer(t)

	result, err := server.CallTool(context.Background(), "vault_list", map[string]any{"limit": float64(1)})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if !strings.Contains(result.Content, "Found 3 records (showing 1)") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestTool_Get(t *testing.T) {
	server := seededServer(t)

	result, err := server.CallTool(context.Background(), "vault_get", map[string]any{"remote_id": "r3"})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if result.IsError || !strings.Contains(result.Content, "Message: HELLO again") {
		t.Errorf("result = %+v", result)
	}

	result, _ = server.CallTool(context.Background(), "vault_get", map[string]any{"remote_id": "nope"})
	if !result.IsError {
		t.Error("expected IsError for unknown id")
	}
}

func TestTool_Sync(t *testing.T) {
	queue := remote.NewMemoryQueue(vault.RemoteRecord{ID: "a1", CreatedAt: "t"})
	server, _ := newTestServer(t, queue)

	result, err := server.CallTool(context.Background(), "vault_sync", nil)
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if result.IsError || !strings.Contains(result.Content, "synced=1") {
		t.Errorf("result = %+v", result)
	}

	result, _ = server.CallTool(context.Background(), "vault_sync", nil)
	if result.Content != "Nothing pending in the remote queue." {
		t.Errorf("second sync = %q", result.Content)
	}
}

func TestTool_Sync_Offline(t *testing.T) {
	server, _ := newTestServer(t, nil)

	result, err := server.CallTool(context.Background(), "vault_sync", nil)
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError in offline mode")
	}
}

func TestTool_Stats(t *testing.T) {
	server := seededServer(t)

	result, err := server.CallTool(context.Background(), "vault_stats", nil)
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if !strings.Contains(result.Content, "Records: 3") {
		t.Errorf("content = %q", result.Content)
	}
	if strings.Contains(result.Content, "Last sync: never") {
		t.Errorf("last sync should be recorded: %q", result.Content)
	}
}

func TestTool_Unknown(t *testing.T) {
	server, _ := newTestServer(t, nil)

	result, err := server.CallTool(context.Background(), "vault_delete", nil)
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if !result.IsError {
		t.Error("expected IsError for unknown tool")
	}
}

func TestProtocol_Initialize(t *testing.T) {
	server, _ := newTestServer(t, nil)

	initRequest := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0.0"}}}`
	response := server.HandleMessage(context.Background(), []byte(initRequest))
	if response == nil {
		t.Fatal("HandleMessage() returned nil response for initialize request")
	}

	respBytes, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}
	var respMap map[string]any
	if err := json.Unmarshal(respBytes, &respMap); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	result, ok := respMap["result"].(map[string]any)
	if !ok {
		t.Fatalf("Initialize response missing result: %s", respBytes)
	}
	serverInfo, ok := result["serverInfo"].(map[string]any)
	if !ok {
		t.Fatal("Initialize result missing serverInfo")
	}
	if serverInfo["name"] != "vault" {
		t.Errorf("serverInfo.name = %v, want 'vault'", serverInfo["name"])
	}
	if serverInfo["version"] != "1.0.0" {
		t.Errorf("serverInfo.version = %v, want '1.0.0'", serverInfo["version"])
	}
}

func TestProtocol_ToolsCall(t *testing.T) {
	server := seededServer(t)

	req := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"vault_search","arguments":{"query":"goodbye"}}}`
	response := server.HandleMessage(context.Background(), []byte(req))

	respBytes, err := json.Marshal(response)
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}
	if !strings.Contains(string(respBytes), "[r2]") {
		t.Errorf("tools/call response missing record: %s", respBytes)
	}
}
