package main

import (
	"fmt"

	"github.com/dgellow/popauth/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create and check login service configuration",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigValidateCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <path>",
		Short: "Write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated default config at: %s\n", args[0])
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			result, err := config.ValidateFile(path)
			if err != nil {
				return fmt.Errorf("error during validation: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Validating: %s\n", path)

			if len(result.Errors) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\nErrors (%d):\n", len(result.Errors))
				for _, e := range result.Errors {
					printIssue(cmd, e)
				}
			}
			if len(result.Warnings) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "\nWarnings (%d):\n", len(result.Warnings))
				for _, w := range result.Warnings {
					printIssue(cmd, w)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout())
			switch {
			case len(result.Errors) == 0 && len(result.Warnings) == 0:
				fmt.Fprintln(cmd.OutOrStdout(), "Result: PASS")
				return nil
			case len(result.Errors) == 0:
				fmt.Fprintln(cmd.OutOrStdout(), "Result: FAIL (warnings present)")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Result: FAIL")
			}
			return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
		},
	}
}

func printIssue(cmd *cobra.Command, issue config.ValidationError) {
	if issue.Path != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "  - %s: %s\n", issue.Path, issue.Message)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", issue.Message)
}
