package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cbie/core/internal/mcpserver"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server exposing the correction command surface over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}

			server, err := mcpserver.NewServer(mcpserver.Config{Name: "cbie", Version: version}, app)
			if err != nil {
				app.Close()
				return fmt.Errorf("serve: %w", err)
			}

			return server.Run(cmd.Context())
		},
	}
}
