package main

import (
	"errors"
	"fmt"

	"github.com/dgellow/popauth/internal/log"
	"github.com/spf13/cobra"
)

// errSilent fails the command after the command already reported why
var errSilent = errors.New("command failed")

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "popauth",
		Short: "Popup OAuth login client and login service",
		Long: `popauth signs users in with an OAuth provider through a popup consent window.

"popauth serve" runs the login service that exchanges authorization codes for
user profiles. The other commands are the client side: they open the consent
popup, send the code to the login service and keep the session locally.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.SetOutput(cmd.ErrOrStderr())
			if logLevel != "" {
				return log.SetLogLevel(logLevel)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (error, warn, info, debug, trace); defaults to LOG_LEVEL")

	root.AddCommand(
		newServeCmd(),
		newLoginCmd(),
		newWhoAmICmd(),
		newLogoutCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildVersion)
		},
	}
}
