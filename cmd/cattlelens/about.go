package main

import (
	"fmt"

	"github.com/oukeidos/cattlelens/internal/version"
	"github.com/spf13/cobra"
)

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show a short description and version",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "cattlelens: cattle and buffalo breed recognition and type classification")
			fmt.Fprintln(out, "Images are sent to the Google Gemini generateContent API.")
			fmt.Fprintln(out, version.Info())
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
