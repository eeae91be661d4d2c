package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/suinrdeveloper-dev/vault"
	"github.com/suinrdeveloper-dev/vault/internal/remote"
)

// app holds the state shared by every command of one invocation.
type app struct {
	root       *cobra.Command
	v          *viper.Viper
	cfg        appConfig
	configPath string
	outputJSON bool
	logOutput  io.Writer
	log        *zerolog.Logger
}

func newApp() *app {
	a := &app{v: newViper()}

	root := &cobra.Command{
		Use:   "vault",
		Short: "Vault - remote queue drain and local archive",
		Long: `Vault drains records from a remote queue into a local archive.

Each record becomes a CSV artifact on disk and a row in a local SQLite
store before it is acknowledged (deleted) remotely. The archive can be
listed, searched and followed live.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(a.v, a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default is $HOME/.config/vault/config.yml)")
	pf.String("db", "", "path to the local archive database (default: ~/.vault/vault.db)")
	pf.String("artifact-dir", "", "directory receiving CSV artifacts (default: ~/.vault/artifacts)")
	pf.String("remote-url", "", "base URL of the remote queue")
	pf.String("api-key", "", "API key for the remote queue")
	pf.String("table", "", "remote queue table")
	pf.Bool("debug", false, "enable debug logging")
	pf.String("log-file", "", "write logs to a rotated file instead of stderr")
	pf.BoolVar(&a.outputJSON, "json", false, "output as JSON")

	_ = a.v.BindPFlag("db-path", pf.Lookup("db"))
	_ = a.v.BindPFlag("artifact-dir", pf.Lookup("artifact-dir"))
	_ = a.v.BindPFlag("remote-url", pf.Lookup("remote-url"))
	_ = a.v.BindPFlag("api-key", pf.Lookup("api-key"))
	_ = a.v.BindPFlag("table", pf.Lookup("table"))
	_ = a.v.BindPFlag("debug", pf.Lookup("debug"))
	_ = a.v.BindPFlag("log-file", pf.Lookup("log-file"))

	root.AddCommand(
		a.newRunCmd(),
		a.newSyncCmd(),
		a.newListCmd(),
		a.newSearchCmd(),
		a.newGetCmd(),
		a.newStatsCmd(),
		a.newPushCmd(),
		a.newPurgeCmd(),
		a.newMCPCmd(),
		a.newVersionCmd(),
	)

	a.root = root
	return a
}

// logger returns the process logger, built once per invocation so a log
// file has a single rotating writer.
func (a *app) logger() zerolog.Logger {
	if a.log == nil {
		l := vault.NewLogger(vault.LogConfig{Path: a.cfg.LogFile, Debug: a.cfg.Debug, Output: a.logOutput})
		a.log = &l
	}
	return *a.log
}

// remoteQueue returns the HTTP queue client, or nil in offline mode.
func (a *app) remoteQueue(logger zerolog.Logger) *remote.HTTPClient {
	if a.cfg.RemoteURL == "" {
		return nil
	}
	cfg := a.cfg.clientConfig(false).WithDefaults()
	return remote.FromConfig(cfg).WithLogger(logger)
}

// openClient opens the archive. autoSync starts the background cycle loop
// when a remote queue is configured.
func (a *app) openClient(autoSync bool) (*vault.Client, error) {
	logger := a.logger()
	cfg := a.cfg.clientConfig(autoSync)

	var queue vault.RemoteQueue
	if rq := a.remoteQueue(logger); rq != nil {
		queue = rq
	}

	client, err := vault.New(cfg, queue, vault.WithClientLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	return client, nil
}
