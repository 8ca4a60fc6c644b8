package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mediawatch/internal/daemon"
	"mediawatch/internal/logging"
	"mediawatch/internal/pipeline"
	"mediawatch/internal/preflight"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, logFile, err := ctx.logger(cmd)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logFile.Close()
			runCtx := cmd.Context()
			pruneLogs(cfg, logger)

			for _, failed := range preflight.Failed(preflight.RunAll(runCtx, cfg)) {
				logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
					logging.String("check", failed.Name),
					logging.String("detail", failed.Detail),
					logging.String(logging.FieldImpact, "scheduled runs may fail until this is fixed"),
				)
			}

			a, err := buildApp(runCtx, cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			// Old log files are pruned at startup and again before every run.
			run := func(rctx context.Context) (pipeline.Report, error) {
				pruneLogs(cfg, logger)
				return a.pipeline.RunOnce(rctx)
			}
			d, err := daemon.New(cfg, run, logger, daemon.WithMetrics(a.metrics))
			if err != nil {
				return err
			}
			if err := d.Start(runCtx); err != nil {
				return err
			}
			defer d.Close()

			status := d.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "mediawatch daemon running (schedule %q, next run %s)\n",
				status.Schedule, status.NextRun.Format("2006-01-02 15:04:05"))

			if runNow {
				if _, _, err := d.Trigger(runCtx); err != nil && runCtx.Err() == nil {
					logging.ErrorWithContext(logger, "initial run failed", "initial_run_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "the daemon keeps running on its schedule"),
					)
				}
			}

			<-runCtx.Done()
			logger.Info("mediawatch daemon shutting down")
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once immediately instead of waiting for the first tick")
	return cmd
}
