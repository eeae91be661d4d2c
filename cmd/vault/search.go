package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/suinrdeveloper-dev/vault"
)

func (a *app) newSearchCmd() *cobra.Command {
	var (
		limit  int
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search archived records",
		Long: `Search source label, header and payload for a case-insensitive substring.

With --follow the command keeps running and prints the full result set
again every time a matching record is archived, replaced or purged.

Example:
  vault search "disk full"
  vault search billing --follow`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			client, err := a.openClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			if follow {
				return a.followSearch(cmd, client, query, limit)
			}

			records, err := client.Search(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			return a.outputRecords(cmd, clip(records, limit))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many records (0 = all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing updated results")
	return cmd
}

// followSearch prints each snapshot delivered by a live subscription until
// interrupted or the archive closes.
func (a *app) followSearch(cmd *cobra.Command, client *vault.Client, query string, limit int) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := client.Subscribe(query)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case records, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := a.outputRecords(cmd, clip(records, limit)); err != nil {
				return err
			}
			if !a.outputJSON {
				fmt.Fprintln(cmd.OutOrStdout(), "---")
			}
		}
	}
}
