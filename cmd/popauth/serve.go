package main

import (
	"fmt"

	"github.com/dgellow/popauth/internal"
	"github.com/dgellow/popauth/internal/config"
	"github.com/dgellow/popauth/internal/log"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the login service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			log.LogInfoWithFields("main", "Starting popauth", map[string]any{
				"version":  BuildVersion,
				"logLevel": log.GetLogLevel(),
			})

			app, err := internal.NewApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to create application: %w", err)
			}
			return app.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
