package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sznuper/agentprobe/internal/config"
	"github.com/sznuper/agentprobe/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentprobe",
	Short: "Health probe for AI agent endpoints",
	Long: "agentprobe checks AI agent endpoints over HTTP and WebSocket and emails an alert " +
		"for every endpoint that fails. Run it once from CI or cron, or as a daemon with `start`.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	registerOptionFlags(rootCmd)
}

// loadConfig resolves the config, overlays option flags and validates it.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, path, err := config.Resolve(cfgFile)
	if err != nil {
		return nil, path, err
	}
	if err := applyOptionFlags(cmd, cfg); err != nil {
		return nil, path, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, path, fmt.Errorf("invalid config %s:\n%w", path, err)
	}
	return cfg, path, nil
}

func setupLogger(cfg *config.Config) (*slog.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level: cfg.Options.LogLevel,
		Dir:   cfg.Options.LogsDir,
	})
}
