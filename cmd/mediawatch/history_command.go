package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediawatch/internal/freshness"
)

type historyRow struct {
	freshness.Record
	Live bool `json:"live"`
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var subject string
	var category string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List notification records, newest first",
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
			policy := freshnessPolicy(cfg)
			category = strings.TrimSpace(category)
			if category != "" {
				if _, ok := policy.ByName(category); !ok {
					return fmt.Errorf("unknown category %q (want %s, %s, or %s)", category,
						freshness.CategoryRelease, freshness.CategoryRecommendation, freshness.CategoryCatalogFetch)
				}
			}

			store, err := freshness.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open freshness store: %w", err)
			}
			defer store.Close()

			records, err := store.History(cmd.Context(), freshness.HistoryFilter{
				SubjectID: strings.TrimSpace(subject),
				Category:  category,
				Limit:     limit,
			})
			if err != nil {
				return fmt.Errorf("list history: %w", err)
			}

			now := time.Now()
			rows := make([]historyRow, 0, len(records))
			for _, rec := range records {
				live := false
				if c, ok := policy.ByName(rec.Category); ok {
					live = c.Live(rec.RecordedAt, now)
				}
				rows = append(rows, historyRow{Record: rec, Live: live})
			}

			if jsonOutput {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No notification records")
				return nil
			}
			fmt.Fprintln(out, renderHistory(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Only show records for this library subject ID")
	cmd.Flags().StringVar(&category, "category", "", "Only show records in this category (release, recommendation, catalog_fetch)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum records to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print records as JSON")
	return cmd
}

func renderHistory(rows []historyRow) string {
	headers := []string{"Subject", "Key", "Category", "Rating", "Title", "Recorded", "Live"}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		subjectLabel := row.Attributes["subject_title"]
		if subjectLabel == "" {
			subjectLabel = row.SubjectID
		}
		table = append(table, []string{
			subjectLabel,
			row.FactKey,
			row.Category,
			row.Attributes["rating"],
			row.Attributes["title"],
			row.RecordedAt.Local().Format("2006-01-02 15:04"),
			yesNo(row.Live),
		})
	}
	return renderTable(headers, table)
}
