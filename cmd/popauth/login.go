package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/client"
	"github.com/dgellow/popauth/internal/config"
	"github.com/dgellow/popauth/internal/login"
	"github.com/spf13/cobra"
)

func openClient(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	return client.New(cmd.Context(), cfg, cmd.ErrOrStderr())
}

func newLoginCmd() *cobra.Command {
	var (
		strategy string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the provider consent popup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := auth.ParseStrategy(strategy)
			if err != nil {
				return err
			}

			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			outcome, err := c.Login(ctx, s)
			if err != nil {
				return err
			}
			if !outcome.Succeeded() {
				// Visible failures were already printed by the notifier
				if !login.DefaultPolicy().Visible(auth.KindOf(outcome.Err)) {
					cmd.PrintErrln("Login not completed")
				}
				return errSilent
			}
			return printResult(cmd, outcome.Result)
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(auth.StrategyGoogle), "login provider (google, github)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "give up waiting for consent after this long (0 waits forever)")
	return cmd
}

func newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			result, ok := c.WhoAmI()
			if !ok {
				cmd.PrintErrln("Not logged in")
				return errSilent
			}
			return printResult(cmd, result)
		},
	}
}

func newLogoutCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if !all {
				c.Logout(cmd.Context())
			} else if err := c.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear storage: %w", err)
			}
			cmd.PrintErrln("Logged out")
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also remove every other key under the storage prefix")
	return cmd
}

func printResult(cmd *cobra.Command, result *auth.Result) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
