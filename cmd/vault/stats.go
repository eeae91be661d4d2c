package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/suinrdeveloper-dev/vault"
)

func (a *app) newStatsCmd() *cobra.Command {
	var health bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show archive statistics",
		Long: `Display statistics about the local archive.

Example:
  vault stats
  vault stats --health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.openClient(false)
			if err != nil {
				return err
			}
			defer client.Close()

			stats, err := client.Stats(cmd.Context())
			if err != nil {
				return fmt.Errorf("get stats: %w", err)
			}

			var status *vault.HealthStatus
			if health {
				ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
				defer cancel()
				h := client.HealthCheck(ctx)
				status = &h
			}

			if a.outputJSON {
				return outputAsJSON(cmd, struct {
					*vault.StoreStats
					Health *vault.HealthStatus `json:"health,omitempty"`
				}{stats, status})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Archive Statistics")
			fmt.Fprintln(out, "------------------")
			fmt.Fprintf(out, "Records:        %d\n", stats.RecordCount)
			fmt.Fprintf(out, "Schema version: %s\n", stats.SchemaVersion)
			if !stats.LastSync.IsZero() {
				fmt.Fprintf(out, "Last sync:      %s (%s ago)\n",
					stats.LastSync.Format(time.RFC3339),
					time.Since(stats.LastSync).Round(time.Second))
			} else {
				fmt.Fprintln(out, "Last sync:      never")
			}
			if stats.LastCycleID != "" {
				fmt.Fprintf(out, "Last cycle:     %s\n", stats.LastCycleID)
			}

			if status != nil {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Health Check")
				fmt.Fprintln(out, "------------")
				word := "healthy"
				if !status.Healthy {
					word = "unhealthy"
				}
				fmt.Fprintf(out, "Status:           %s\n", word)
				fmt.Fprintf(out, "Store OK:         %v\n", status.StoreOK)
				fmt.Fprintf(out, "Remote reachable: %v\n", status.RemoteReachable)
				if status.Error != "" {
					fmt.Fprintf(out, "Error:            %s\n", a.scrubSensitiveData(status.Error))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&health, "health", false, "include a health check")
	return cmd
}
