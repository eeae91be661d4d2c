package main

import (
	"github.com/spf13/cobra"
	vaultmcp "github.com/suinrdeveloper-dev/vault/mcp"
)

func (a *app) newMCPCmd() *cobra.Command {
	var autoSync bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for coding agent integration",
		Long: `Start a Model Context Protocol (MCP) server over stdio, exposing the
archive as vault_search, vault_list, vault_get, vault_sync and vault_stats.

Example agent configuration:

  {
    "mcpServers": {
      "vault": {
        "command": "vault",
        "args": ["mcp"],
        "env": {
          "VAULT_DB_PATH": "/path/to/vault.db",
          "VAULT_REMOTE_URL": "https://project.example.co",
          "VAULT_API_KEY": "..."
        }
      }
    }
  }

Logs go to stderr (or --log-file) so stdout stays a clean protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.openClient(autoSync)
			if err != nil {
				return err
			}
			defer client.Close()

			return vaultmcp.NewServer(client, version).Run()
		},
	}

	cmd.Flags().BoolVar(&autoSync, "auto-sync", false, "drain the remote queue in the background while serving")
	return cmd
}
