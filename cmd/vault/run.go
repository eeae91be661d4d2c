package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/suinrdeveloper-dev/vault/internal/httpapi"
	"golang.org/x/sync/errgroup"
)

func (a *app) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drain the remote queue continuously",
		Long: `Run the sync engine on a fixed interval until interrupted, serving the
archive over HTTP unless --http=false.

A cycle in flight when SIGINT or SIGTERM arrives finishes its current
record before the process exits.

Example:
  vault run
  vault run --interval 30s --http-addr 127.0.0.1:9000`,
		RunE: a.runDaemon,
	}

	f := cmd.Flags()
	f.Duration("interval", defaultSyncInterval, "time between cycle starts")
	f.Bool("http", true, "serve the HTTP API")
	f.String("http-addr", defaultHTTPAddr, "HTTP API listen address")
	_ = a.v.BindPFlag("sync-interval", f.Lookup("interval"))
	_ = a.v.BindPFlag("http-enabled", f.Lookup("http"))
	_ = a.v.BindPFlag("http-addr", f.Lookup("http-addr"))
	return cmd
}

func (a *app) runDaemon(cmd *cobra.Command, _ []string) error {
	if a.cfg.RemoteURL == "" {
		return fmt.Errorf("VAULT_REMOTE_URL not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := a.logger().With().Str("component", "daemon").Logger()

	client, err := a.openClient(true)
	if err != nil {
		return err
	}
	defer client.Close()

	notes, cancelNotes := client.Notifications(32)
	defer cancelNotes()

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.HTTPEnabled {
		srv := httpapi.NewServer(a.cfg.HTTPAddr, client, a.logger())
		if err := srv.Start(); err != nil {
			return fmt.Errorf("start http api: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Serving archive on http://%s\n", srv.Addr())
		g.Go(func() error {
			<-gctx.Done()
			return srv.Stop()
		})
	}

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg, ok := <-notes:
				if !ok {
					return nil
				}
				logger.Info().Str("notification", msg).Msg("status")
			}
		}
	})

	logger.Info().
		Dur("interval", a.cfg.SyncInterval).
		Str("db", a.cfg.DBPath).
		Str("artifacts", a.cfg.ArtifactDir).
		Msg("vault running")

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}

	start := time.Now()
	if err := client.Close(); err != nil {
		return fmt.Errorf("close client: %w", err)
	}
	logger.Info().Dur("took", time.Since(start)).Msg("stopped")
	return nil
}
