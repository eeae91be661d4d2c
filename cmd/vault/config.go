package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/suinrdeveloper-dev/vault"
	"github.com/suinrdeveloper-dev/vault/internal/store"
)

const (
	defaultHTTPAddr      = "127.0.0.1:8787"
	defaultSyncInterval  = 10 * time.Second
	defaultRecordTimeout = 30 * time.Second
	defaultHTTPTimeout   = 30 * time.Second
)

// appConfig is the layered CLI configuration: defaults, then the config
// file, then VAULT_* environment variables, then flags.
type appConfig struct {
	DBPath        string              `mapstructure:"db-path"`
	ArtifactDir   string              `mapstructure:"artifact-dir"`
	RemoteURL     string              `mapstructure:"remote-url"`
	APIKey        string              `mapstructure:"api-key"`
	Table         string              `mapstructure:"table"`
	Columns       vault.RemoteColumns `mapstructure:"columns"`
	SyncInterval  time.Duration       `mapstructure:"sync-interval"`
	RecordTimeout time.Duration       `mapstructure:"record-timeout"`
	HTTPTimeout   time.Duration       `mapstructure:"http-timeout"`
	HTTPEnabled   bool                `mapstructure:"http-enabled"`
	HTTPAddr      string              `mapstructure:"http-addr"`
	Debug         bool                `mapstructure:"debug"`
	LogFile       string              `mapstructure:"log-file"`
	ConfigPath    string              `mapstructure:"-"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("VAULT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	cols := vault.DefaultRemoteColumns()
	v.SetDefault("db-path", store.DBPath())
	v.SetDefault("artifact-dir", store.ArtifactDir())
	v.SetDefault("remote-url", "")
	v.SetDefault("api-key", "")
	v.SetDefault("table", vault.DefaultTable)
	v.SetDefault("columns.id", cols.ID)
	v.SetDefault("columns.source-label", cols.SourceLabel)
	v.SetDefault("columns.header", cols.Header)
	v.SetDefault("columns.payload", cols.Payload)
	v.SetDefault("columns.created-at", cols.CreatedAt)
	v.SetDefault("sync-interval", defaultSyncInterval)
	v.SetDefault("record-timeout", defaultRecordTimeout)
	v.SetDefault("http-timeout", defaultHTTPTimeout)
	v.SetDefault("http-enabled", true)
	v.SetDefault("http-addr", defaultHTTPAddr)
	v.SetDefault("debug", false)
	v.SetDefault("log-file", "")
	return v
}

// loadConfig reads the optional config file into v and decodes the result.
// A missing config file is not an error.
func loadConfig(v *viper.Viper, configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if home != "" {
		v.SetConfigFile(filepath.Join(home, ".config", "vault", "config.yml"))
	}

	if configPath != "" || home != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()

	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.ArtifactDir = expandHome(cfg.ArtifactDir, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)

	if cfg.SyncInterval <= 0 {
		return cfg, fmt.Errorf("invalid sync-interval: %s", cfg.SyncInterval)
	}
	return cfg, nil
}

func expandHome(path, home string) string {
	if home != "" && strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// clientConfig maps the CLI configuration onto the library configuration.
func (c appConfig) clientConfig(autoSync bool) vault.Config {
	return vault.Config{
		LocalPath:     c.DBPath,
		ArtifactDir:   c.ArtifactDir,
		RemoteURL:     c.RemoteURL,
		APIKey:        c.APIKey,
		Table:         c.Table,
		Columns:       c.Columns,
		SyncInterval:  c.SyncInterval,
		AutoSync:      autoSync,
		RecordTimeout: c.RecordTimeout,
		HTTPTimeout:   c.HTTPTimeout,
		Debug:         c.Debug,
		LogPath:       c.LogFile,
	}
}
