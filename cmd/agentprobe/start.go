package main

import (
	"github.com/spf13/cobra"

	"github.com/sznuper/agentprobe/internal/config"
	"github.com/sznuper/agentprobe/internal/daemon"
	"github.com/sznuper/agentprobe/internal/runner"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Probe endpoints on a schedule",
	Long: "Runs all endpoints now and then on schedule.interval or schedule.cron until interrupted. " +
		"The config file is reloaded when it changes; an invalid edit keeps the previous config.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, closer, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		build := func(cfg *config.Config) daemon.Runner {
			// Flags win over the file on every reload.
			_ = applyOptionFlags(cmd, cfg)
			return runner.New(cfg, logger)
		}
		return daemon.New(path, cfg, build, logger).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
