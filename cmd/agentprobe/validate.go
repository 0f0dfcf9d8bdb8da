package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sznuper/agentprobe/internal/daemon"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the agentprobe configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ %s is valid\n", path)
		for _, ep := range cfg.ProbeEndpoints() {
			fmt.Fprintf(out, "  %-20s %-6s %s\n", ep.Name, ep.Kind, ep.Address)
		}
		fmt.Fprintf(out, "  schedule: %s\n", daemon.Spec(cfg.Schedule))
		if !cfg.Mail.Enabled() {
			fmt.Fprintln(out, "  mail: disabled (username, password or recipients missing)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
