package vault

import (
	"os"
	"strings"
	"time"

	"github.com/suinrdeveloper-dev/vault/internal/store"
)

// DefaultTable is the remote queue table producers append to.
const DefaultTable = "sys_sync_stream"

// RemoteColumns maps RemoteRecord fields onto remote column names. Producers
// have shipped more than one schema, so the mapping is configurable.
type RemoteColumns struct {
	ID          string `mapstructure:"id"`
	SourceLabel string `mapstructure:"source-label"`
	Header      string `mapstructure:"header"`
	Payload     string `mapstructure:"payload"`
	CreatedAt   string `mapstructure:"created-at"`
}

// DefaultRemoteColumns returns the column names of the current producer schema.
func DefaultRemoteColumns() RemoteColumns {
	return RemoteColumns{
		ID:          "event_id",
		SourceLabel: "source_app",
		Header:      "header",
		Payload:     "payload",
		CreatedAt:   "timestamp",
	}
}

// WithDefaults fills empty column names from DefaultRemoteColumns.
func (c RemoteColumns) WithDefaults() RemoteColumns {
	d := DefaultRemoteColumns()
	if c.ID == "" {
		c.ID = d.ID
	}
	if c.SourceLabel == "" {
		c.SourceLabel = d.SourceLabel
	}
	if c.Header == "" {
		c.Header = d.Header
	}
	if c.Payload == "" {
		c.Payload = d.Payload
	}
	if c.CreatedAt == "" {
		c.CreatedAt = d.CreatedAt
	}
	return c
}

// Config configures the vault client.
type Config struct {
	// LocalPath is the path to the local SQLite database.
	LocalPath string

	// ArtifactDir is the directory receiving one CSV artifact per record.
	ArtifactDir string

	// RemoteURL is the base URL of the remote queue (a PostgREST endpoint).
	// If empty, operates in offline-only mode.
	RemoteURL string

	// APIKey authenticates with the remote queue.
	APIKey string

	// Table is the remote queue table. Defaults to DefaultTable.
	Table string

	// Columns maps record fields onto remote columns.
	Columns RemoteColumns

	// SyncInterval is how often a reconciliation cycle starts.
	// Defaults to 10 seconds.
	SyncInterval time.Duration

	// AutoSync enables the background cycle loop.
	AutoSync bool

	// RecordTimeout bounds the artifact write, insert and delete of a single
	// record. Defaults to 30 seconds.
	RecordTimeout time.Duration

	// HTTPTimeout bounds each remote request. Defaults to 30 seconds.
	HTTPTimeout time.Duration

	// Debug enables debug-level logging.
	Debug bool

	// LogPath is the path of the rotated log file. Defaults to stderr if empty.
	LogPath string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LocalPath:     store.DBPath(),
		ArtifactDir:   store.ArtifactDir(),
		Table:         DefaultTable,
		Columns:       DefaultRemoteColumns(),
		SyncInterval:  10 * time.Second,
		AutoSync:      true,
		RecordTimeout: 30 * time.Second,
		HTTPTimeout:   30 * time.Second,
	}
}

// ConfigFromEnv reads configuration from environment variables.
//
//	VAULT_DB_PATH       → LocalPath
//	VAULT_ARTIFACT_DIR  → ArtifactDir
//	VAULT_REMOTE_URL    → RemoteURL
//	VAULT_API_KEY       → APIKey
//	VAULT_TABLE         → Table
//	VAULT_SYNC_INTERVAL → SyncInterval (Go duration syntax)
//	VAULT_DEBUG         → Debug (any non-empty value enables)
//	VAULT_LOG_FILE      → LogPath
func ConfigFromEnv() Config {
	cfg := Config{
		LocalPath:   os.Getenv("VAULT_DB_PATH"),
		ArtifactDir: os.Getenv("VAULT_ARTIFACT_DIR"),
		RemoteURL:   os.Getenv("VAULT_REMOTE_URL"),
		APIKey:      os.Getenv("VAULT_API_KEY"),
		Table:       os.Getenv("VAULT_TABLE"),
		Debug:       os.Getenv("VAULT_DEBUG") != "",
		LogPath:     os.Getenv("VAULT_LOG_FILE"),
	}
	if v := os.Getenv("VAULT_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
	return cfg
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Field: "LocalPath", Message: "required: path to SQLite database"}
	}
	if c.ArtifactDir == "" {
		return &ValidationError{Field: "ArtifactDir", Message: "required: artifact output directory"}
	}
	if c.RemoteURL != "" {
		if !strings.HasPrefix(c.RemoteURL, "http://") && !strings.HasPrefix(c.RemoteURL, "https://") {
			return &ValidationError{Field: "RemoteURL", Message: "must be an http(s) URL"}
		}
		if c.APIKey == "" {
			return &ValidationError{Field: "APIKey", Message: "required when RemoteURL is set"}
		}
	}
	if c.SyncInterval < 0 {
		return &ValidationError{Field: "SyncInterval", Message: "must be non-negative"}
	}
	if c.RecordTimeout < 0 {
		return &ValidationError{Field: "RecordTimeout", Message: "must be non-negative"}
	}
	return nil
}

// IsOffline returns true if no remote queue is configured.
func (c *Config) IsOffline() bool {
	return c.RemoteURL == ""
}

// WithDefaults fills in default values for unset fields.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.LocalPath == "" {
		c.LocalPath = defaults.LocalPath
	}
	if c.ArtifactDir == "" {
		c.ArtifactDir = defaults.ArtifactDir
	}
	if c.Table == "" {
		c.Table = defaults.Table
	}
	c.Columns = c.Columns.WithDefaults()
	if c.SyncInterval == 0 {
		c.SyncInterval = defaults.SyncInterval
	}
	if c.RecordTimeout == 0 {
		c.RecordTimeout = defaults.RecordTimeout
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = defaults.HTTPTimeout
	}
	c.RemoteURL = strings.TrimSuffix(c.RemoteURL, "/")

	return c
}
