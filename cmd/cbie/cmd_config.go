package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cbie/core/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved pipeline configuration",
		Long: `Show the analysis pipeline configuration: scoring, clustering,
aggregation, tiering, assembler, LLM, logging, and backup settings.

Configuration is loaded from ~/.cbie/config.yaml (if present) with
environment-variable overrides applied on top.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}

			// Redact secrets before serializing either format.
			redacted := *cfg
			redacted.LLM.APIKey = cfg.LLM.RedactedAPIKey()
			redacted.Embedding.APIKey = ""

			if jsonOut {
				return json.NewEncoder(os.Stdout).Encode(redacted)
			}
			out, err := yaml.Marshal(redacted)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			fmt.Print(string(out))
			return nil
		},
	}
	return cmd
}
