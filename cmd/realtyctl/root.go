package main

import (
	"github.com/spf13/cobra"
	"github.com/stwalsh4118/realty/internal/config"
	"github.com/stwalsh4118/realty/internal/logger"
)

// app is the state shared by subcommands, filled in before any of them run.
type app struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "realtyctl",
		Short:         "Realty API operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log = logger.New(cfg.Server.Env, cfg.Server.LogLevel)
			return nil
		},
	}

	rootCmd.AddCommand(migrateCommand(a), analyticsCommand(a))
	return rootCmd
}
