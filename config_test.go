package vault_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/suinrdeveloper-dev/vault"
)

func TestConfig_Validate_ValidLocalOnly(t *testing.T) {
	cfg := vault.Config{LocalPath: "/tmp/test.db", ArtifactDir: "/tmp/artifacts"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() returned error for valid local-only config: %v", err)
	}
}

func TestConfig_Validate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   vault.Config
		field string
	}{
		{"missing local path", vault.Config{ArtifactDir: "/a"}, "LocalPath"},
		{"missing artifact dir", vault.Config{LocalPath: "/db"}, "ArtifactDir"},
		{"bad scheme", vault.Config{LocalPath: "/db", ArtifactDir: "/a", RemoteURL: "ftp://x", APIKey: "k"}, "RemoteURL"},
		{"url without key", vault.Config{LocalPath: "/db", ArtifactDir: "/a", RemoteURL: "https://x.supabase.co"}, "APIKey"},
		{"negative interval", vault.Config{LocalPath: "/db", ArtifactDir: "/a", SyncInterval: -time.Second}, "SyncInterval"},
		{"negative record timeout", vault.Config{LocalPath: "/db", ArtifactDir: "/a", RecordTimeout: -time.Second}, "RecordTimeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			var ve *vault.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() returned %T (%v), want *ValidationError", err, err)
			}
			if ve.Field != tt.field {
				t.Errorf("ValidationError.Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestConfigFromEnv_ReadsVars(t *testing.T) {
	t.Setenv("VAULT_DB_PATH", "/tmp/env-test.db")
	t.Setenv("VAULT_ARTIFACT_DIR", "/tmp/env-artifacts")
	t.Setenv("VAULT_REMOTE_URL", "https://proj.supabase.co")
	t.Setenv("VAULT_API_KEY", "env-key")
	t.Setenv("VAULT_TABLE", "events")
	t.Setenv("VAULT_SYNC_INTERVAL", "45s")
	t.Setenv("VAULT_DEBUG", "1")

	cfg := vault.ConfigFromEnv()

	if cfg.LocalPath != "/tmp/env-test.db" {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if cfg.ArtifactDir != "/tmp/env-artifacts" {
		t.Errorf("ArtifactDir = %q", cfg.ArtifactDir)
	}
	if cfg.RemoteURL != "https://proj.supabase.co" || cfg.APIKey != "env-key" {
		t.Errorf("remote = %q/%q", cfg.RemoteURL, cfg.APIKey)
	}
	if cfg.Table != "events" {
		t.Errorf("Table = %q", cfg.Table)
	}
	if cfg.SyncInterval != 45*time.Second {
		t.Errorf("SyncInterval = %v, want 45s", cfg.SyncInterval)
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestConfigFromEnv_InvalidIntervalIgnored(t *testing.T) {
	t.Setenv("VAULT_SYNC_INTERVAL", "soon")
	if cfg := vault.ConfigFromEnv(); cfg.SyncInterval != 0 {
		t.Errorf("SyncInterval = %v, want 0", cfg.SyncInterval)
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := vault.Config{RemoteURL: "https://proj.supabase.co/"}.WithDefaults()

	if !strings.HasSuffix(cfg.LocalPath, filepath.Join(".vault", "vault.db")) {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if !strings.HasSuffix(cfg.ArtifactDir, filepath.Join(".vault", "artifacts")) {
		t.Errorf("ArtifactDir = %q", cfg.ArtifactDir)
	}
	if cfg.Table != vault.DefaultTable {
		t.Errorf("Table = %q", cfg.Table)
	}
	if cfg.Columns != vault.DefaultRemoteColumns() {
		t.Errorf("Columns = %+v", cfg.Columns)
	}
	if cfg.SyncInterval != 10*time.Second {
		t.Errorf("SyncInterval = %v, want 10s", cfg.SyncInterval)
	}
	if cfg.RemoteURL != "https://proj.supabase.co" {
		t.Errorf("RemoteURL = %q, trailing slash not trimmed", cfg.RemoteURL)
	}
}

func TestWithDefaults_PreservesExplicit(t *testing.T) {
	cfg := vault.Config{
		LocalPath:    "/custom/vault.db",
		Table:        "vault_table",
		Columns:      vault.RemoteColumns{ID: "id"},
		SyncInterval: time.Minute,
	}.WithDefaults()

	if cfg.LocalPath != "/custom/vault.db" {
		t.Errorf("LocalPath = %q", cfg.LocalPath)
	}
	if cfg.Table != "vault_table" {
		t.Errorf("Table = %q", cfg.Table)
	}
	if cfg.Columns.ID != "id" || cfg.Columns.Payload != "payload" {
		t.Errorf("Columns = %+v", cfg.Columns)
	}
	if cfg.SyncInterval != time.Minute {
		t.Errorf("SyncInterval = %v", cfg.SyncInterval)
	}
}

func TestConfig_IsOffline(t *testing.T) {
	if !(&vault.Config{}).IsOffline() {
		t.Error("IsOffline() = false for empty RemoteURL")
	}
	if (&vault.Config{RemoteURL: "https://x"}).IsOffline() {
		t.Error("IsOffline() = true with RemoteURL set")
	}
}
