package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) newSyncCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation cycle",
		Long: `Drain the remote queue once: fetch pending records, write an artifact
and a local row for each, then delete it remotely.

Exits non-zero when the remote queue cannot be read.

Example:
  vault sync
  vault sync --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.RemoteURL == "" {
				return fmt.Errorf("VAULT_REMOTE_URL not configured")
			}

			client, err := a.openClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			result, err := client.Sync(ctx)
			if result != nil {
				if outErr := a.outputCycle(cmd, result); outErr != nil {
					return outErr
				}
			}
			if err != nil {
				return fmt.Errorf("sync: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "abort the cycle after this long")
	return cmd
}
