package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/suinrdeveloper-dev/vault/internal/remote"
)

func (a *app) newPushCmd() *cobra.Command {
	var (
		source string
		header string
		id     string
	)

	cmd := &cobra.Command{
		Use:   "push [payload]",
		Short: "Append a record to the remote queue",
		Long: `Append one record to the remote queue, acting as a producer. Useful for
exercising a deployment end to end.

The payload is taken from the arguments, or from stdin when the only
argument is "-". A UUID is generated unless --id is given.

Example:
  vault push --source billing --header "Invoice failed" "card declined"
  echo '{"order": 42}' | vault push --source shop -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger()
			queue := a.remoteQueue(logger)
			if queue == nil {
				return fmt.Errorf("VAULT_REMOTE_URL not configured")
			}

			payload := strings.Join(args, " ")
			if len(args) == 1 && args[0] == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read payload: %w", err)
				}
				payload = strings.TrimRight(string(b), "\n")
			}

			event := remote.NewEvent(source, header, payload)
			if id != "" {
				event.ID = id
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			stored, err := queue.Push(ctx, event)
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}

			if a.outputJSON {
				return outputAsJSON(cmd, stored)
			}
			printSuccess(cmd.OutOrStdout(), "Pushed %s", stored.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&source, "source", "s", "", "source label of the record")
	f.StringVar(&header, "header", "", "record header")
	f.StringVar(&id, "id", "", "record id (default: new UUID)")
	return cmd
}
