package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/suinrdeveloper-dev/vault"
)

func (a *app) newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived records, most recent first",
		Long: `List every archived record, most recently synced first.

Example:
  vault list
  vault list --limit 10 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.openClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			records, err := client.Records(cmd.Context())
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			return a.outputRecords(cmd, clip(records, limit))
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many records (0 = all)")
	return cmd
}

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-id>",
		Short: "Show one archived record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.openClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			record, err := client.Get(cmd.Context(), args[0])
			if errors.Is(err, vault.ErrNotFound) {
				return fmt.Errorf("no record with remote id %q", args[0])
			}
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			return a.outputRecord(cmd, record)
		},
	}
}

func clip(records []vault.SyncedRecord, limit int) []vault.SyncedRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}
