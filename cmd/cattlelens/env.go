package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/oukeidos/cattlelens/internal/auth"
	"github.com/oukeidos/cattlelens/internal/prompt"
	"github.com/spf13/cobra"
)

var (
	hasKey    = auth.HasKey
	getEnvKey = auth.GetEnvKey
	saveKey   = auth.SaveKey
	deleteKey = auth.DeleteKey
)

func newEnvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage the Gemini API key in the OS keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd)
		},
	}

	cmd.SetUsageTemplate(envUsageTemplate)
	cmd.AddCommand(
		newEnvSetupCmd(),
		newEnvDeleteCmd(),
		newEnvStatusCmd(),
	)
	return cmd
}

func newEnvSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Save the API key to the keychain (prompt only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvSetup(cmd)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newEnvDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the API key from the keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvDelete(cmd, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func newEnvStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show key status (default if no action given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd)
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}

func runEnvSetup(cmd *cobra.Command) error {
	if !isTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("env setup needs an interactive terminal")
	}
	promptKey, err := promptForKey("Gemini API Key: ")
	if err != nil {
		return fmt.Errorf("error reading key: %w", err)
	}
	key := strings.TrimSpace(promptKey)
	if key == "" {
		return fmt.Errorf("API key is required for setup")
	}
	if err := saveKey(key); err != nil {
		return fmt.Errorf("error saving key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Saved Gemini API key to keychain.")
	return nil
}

func runEnvDelete(cmd *cobra.Command, yes bool) error {
	confirmed, err := newConfirmer().Confirm("Delete the stored Gemini API key?", yes)
	if err != nil {
		if errors.Is(err, prompt.ErrNonInteractive) {
			return fmt.Errorf("refusing to delete without confirmation: %w", err)
		}
		return err
	}
	if !confirmed {
		fmt.Fprintln(cmd.OutOrStdout(), "Canceled.")
		return nil
	}
	if err := deleteKey(); err != nil {
		if auth.IsNotFound(err) {
			fmt.Fprintln(cmd.OutOrStdout(), "No Gemini API key stored in keychain.")
			return nil
		}
		return fmt.Errorf("error deleting key: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Deleted Gemini API key from keychain.")
	return nil
}

func runEnvStatus(cmd *cobra.Command) error {
	if hasKey() {
		fmt.Fprintln(cmd.OutOrStdout(), "Gemini API Key: Found (source=Keychain)")
		return nil
	}
	if envKey, ok := getEnvKey(); ok && envKey != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Gemini API Key: Found (source=Environment Variable; disabled by default, use --allow-env)")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Gemini API Key: Not Found (keychain empty, env not set)")
	return nil
}
