package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newPurgeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every archived record",
		Long: `Delete every row from the local archive. Artifact files on disk and
sync metadata are left in place.

Requires --yes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("purge deletes every archived record; re-run with --yes to confirm")
			}

			client, err := a.openClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			n, err := client.Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge: %w", err)
			}

			if a.outputJSON {
				return outputAsJSON(cmd, map[string]int64{"deleted": n})
			}
			printSuccess(cmd.OutOrStdout(), "Deleted %d records.", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
