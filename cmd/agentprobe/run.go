package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sznuper/agentprobe/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run [endpoint]",
	Short: "Probe endpoints once",
	Long: "Probes a single endpoint by name, or all endpoints if no name is given, and alerts on failures. " +
		"Exits 1 if any endpoint is unhealthy. Use --dry-run to validate alerts without sending them.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, closer, err := setupLogger(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()

		r := runner.New(cfg, logger, runner.WithDryRun(dryRun))
		ctx := cmd.Context()

		var results []runner.Result
		if len(args) == 1 {
			ep, ok := r.FindEndpoint(args[0])
			if !ok {
				return fmt.Errorf("endpoint %q not found in config", args[0])
			}
			results = append(results, r.RunEndpoint(ctx, ep))
		} else {
			results = r.RunAll(ctx)
		}

		p := newPrinter(os.Stdout, cfg.Options.SlowThresholdDuration())
		for _, res := range results {
			p.result(res)
		}
		p.summary(results)

		if code := runner.ExitCode(results); code != 0 {
			closer.Close()
			os.Exit(code)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("dry-run", false, "probe but only validate and log alerts instead of sending them")
	rootCmd.AddCommand(runCmd)
}
