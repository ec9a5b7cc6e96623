// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe/internal/browser"
	"github.com/xkilldash9x/chatprobe/internal/config"
	"github.com/xkilldash9x/chatprobe/internal/observability"
	"github.com/xkilldash9x/chatprobe/internal/report"
	"github.com/xkilldash9x/chatprobe/internal/runner"
	"github.com/xkilldash9x/chatprobe/internal/scenario"
)

const managerShutdownGrace = 15 * time.Second

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [target-url]",
		Short: "Runs the configured check suites against a chatbot UI",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line values
			// override the config file and environment.
			bindings := map[string]string{
				"target.url":            "target",
				"browser.headless":      "headless",
				"runner.suites":         "suites",
				"runner.data_file":      "data",
				"runner.concurrency":    "concurrency",
				"runner.submit_rate":    "submit-rate",
				"runner.report_file":    "report",
				"runner.screenshot_dir": "screenshot-dir",
			}
			for key, flag := range bindings {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-read the config now that flags are bound, so overrides
			// land with the right precedence.
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("failed to finalize config: %w", err)
			}
			if len(args) > 0 {
				cfg.Target.URL = args[0]
			}
			if cfg.Target.URL == "" {
				return errors.New("no target URL: pass it as an argument or set target.url")
			}

			data, err := scenario.Load(cfg.Runner.DataFile)
			if err != nil {
				return err
			}

			recorder := report.NewRecorder(cfg.Runner.ScreenshotDir, logger)
			recorder.Observe(func(res report.Result) {
				marker := "PASS"
				if res.Status == report.StatusFailed {
					marker = "FAIL"
				}
				fmt.Printf("%s  %s/%s (%.1fs)\n", marker, res.Suite, res.Check, res.Duration.Seconds())
			})

			manager := browser.NewManager(cfg, logger)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), managerShutdownGrace)
				defer cancel()
				if err := manager.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Error during browser manager shutdown", zap.Error(err))
				}
			}()

			r := runner.New(cfg, runner.FromManager(manager), data, recorder, logger)
			if err := r.Run(ctx); err != nil {
				return err
			}

			passed, failed, skipped := recorder.Summary()
			fmt.Println(report.Format(passed, failed, skipped))
			if failed > 0 {
				return fmt.Errorf("%d of %d checks failed", failed, passed+failed+skipped)
			}
			return nil
		},
	}

	runCmd.Flags().StringP("target", "t", "", "Target chat page URL. (Overrides config/env)")
	runCmd.Flags().Bool("headless", true, "Run the browser headless. (Overrides config/env)")
	runCmd.Flags().StringSlice("suites", nil, "Suites to run: ui, responses, security. (Overrides config/env)")
	runCmd.Flags().String("data", "", "Path to the scenario data file. (Overrides config/env)")
	runCmd.Flags().IntP("concurrency", "j", 0, "Number of concurrent checks. (Overrides config/env)")
	runCmd.Flags().Float64("submit-rate", 0, "Max message submissions per second across all checks. (Overrides config/env)")
	runCmd.Flags().String("report", "", "Write a JUnit XML report to this path. (Overrides config/env)")
	runCmd.Flags().String("screenshot-dir", "", "Directory for failure screenshots. (Overrides config/env)")

	return runCmd
}
