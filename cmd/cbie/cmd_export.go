package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export <user-id>",
		Short: "Export a user's full observation, cluster, and settings dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			dump, err := app.Exporter.Export(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			payload, err := dump.Render(format)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Println(string(payload))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format (only json is supported today)")
	return cmd
}
