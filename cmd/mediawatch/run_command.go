package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediawatch/internal/logging"
	"mediawatch/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one pass: fetch, deduplicate, classify, record, and deliver",
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
			pruneLogs(cfg, logger)
			a, err := buildApp(cmd.Context(), cfg, logger, appOptions{dryRun: dryRun})
			if err != nil {
				return err
			}
			defer a.Close()

			report, runErr := a.pipeline.RunOnce(cmd.Context())
			if !dryRun {
				a.metrics.ObserveRun(report, runErr)
				if err := a.metrics.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
					logging.WarnWithContext(logger, "metrics export failed", "metrics_export_failed",
						logging.Error(err),
						logging.String("path", cfg.Metrics.TextfilePath),
					)
				}
			}
			if runErr != nil {
				return fmt.Errorf("run aborted: %w", runErr)
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			printReport(cmd.OutOrStdout(), report, dryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not record facts or deliver notifications")
	return cmd
}

func printReport(out io.Writer, report pipeline.Report, dryRun bool) {
	fmt.Fprintf(out, "Run %s finished in %s\n", report.RunID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Subjects: %d processed, %d skipped, %d cached\n",
		report.SubjectsProcessed, report.SubjectsSkipped, report.SubjectsCached)
	fmt.Fprintf(out, "Facts:    %d accepted, %d duplicate, %d failed\n",
		report.FactsAccepted, report.FactsDuplicate, report.FactsFailed)

	if len(report.Accepted) > 0 {
		rows := make([][]string, 0, len(report.Accepted))
		for _, fact := range report.Accepted {
			rows = append(rows, []string{fact.SubjectTitle, fact.DisplayTitle(), fact.Key, strings.TrimSpace(fact.Rating), string(fact.Kind)})
		}
		fmt.Fprintln(out, renderTable([]string{"Subject", "Title", "Key", "Rating", "Kind"}, rows))
	}

	switch {
	case dryRun:
		fmt.Fprintln(out, "Dry run: nothing recorded or delivered")
	case report.Delivered:
		fmt.Fprintln(out, "Digest delivered")
	case report.DeliveryError != "":
		fmt.Fprintf(out, "Digest delivery failed: %s\n", report.DeliveryError)
	case report.FactsAccepted == 0:
		fmt.Fprintln(out, "Nothing new")
	}
}
