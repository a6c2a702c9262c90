package main

import (
	"fmt"

	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/oukeidos/cattlelens/internal/metadata"
	"github.com/oukeidos/cattlelens/internal/prompts"
	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List analysis tasks",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Analysis Tasks:")
			for _, t := range prompts.Tasks() {
				marker := ""
				if t.ID == prompts.DefaultTask {
					marker = " (default)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %-22s %s%s\n", t.ID, t.Name, marker)
			}
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known Gemini vision models and pricing",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Models (USD per 1M tokens, input/output):")
			for _, m := range metadata.VisionModels {
				marker := ""
				if m.ID == gemini.DefaultModel {
					marker = " (default)"
				}
				fmt.Fprintf(out, "  %-24s %-22s $%.2f / $%.2f%s\n", m.ID, m.Label, m.InputPerMillion, m.OutputPerMillion, marker)
			}
			fmt.Fprintln(out, "Other model IDs are accepted and priced at the default rate.")
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
