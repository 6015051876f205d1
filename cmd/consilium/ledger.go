package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anthropics/consilium-engine/internal/ledger"
	"github.com/anthropics/consilium-engine/internal/store"
)

func backfillCmd() *cobra.Command {
	var logPath string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fill missing event ids and schema versions in the ledger",
		Long: `Rewrites the ledger in place via a temp file and atomic rename.
Unparsable lines are copied through verbatim. Running backfill twice
produces byte-identical output on the second run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ledger.Backfill(logPath); err != nil {
				return err
			}
			fmt.Println("BACKFILL: done")
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "data/decision_events.log", "decision ledger path")
	return cmd
}

func exportCmd() *cobra.Command {
	var logPath, dbPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledger events into the SQLite store",
		Long: `Projects ledger lines into the decision_events table keyed by
event_id. Safe to re-run after a partial failure: existing rows are
left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.NewDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := &store.DecisionRepo{}
			res, err := repo.ExportLog(context.Background(), db, logPath)
			if err != nil {
				return err
			}
			fmt.Printf("EXPORT: read=%d inserted=%d skipped_no_id=%d total=%d\n",
				res.Read, res.Inserted, res.Skipped, res.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "data/decision_events.log", "decision ledger path")
	cmd.Flags().StringVar(&dbPath, "db", "data/decision_events.db", "SQLite database path")
	return cmd
}

func readCmd() *cobra.Command {
	var logPath, typeFilter, outPath string
	var sinceHours float64
	var tail int
	var emitJSON bool

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Aggregate a window of ledger events",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := ledger.Read(logPath, ledger.ReadOptions{
				Type:       typeFilter,
				SinceHours: sinceHours,
				Tail:       tail,
			})
			if err != nil {
				return err
			}

			var out string
			if emitJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				out = string(data)
			} else {
				out = formatReport(report)
			}

			if outPath != "" {
				if err := writeFileWithDir(outPath, out+"\n"); err != nil {
					return err
				}
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "data/decision_events.log", "decision ledger path")
	cmd.Flags().StringVar(&typeFilter, "type", "", "only include events of this type")
	cmd.Flags().Float64Var(&sinceHours, "since", 0, "only include events from the last N hours")
	cmd.Flags().IntVar(&tail, "tail", 0, "only include the last N lines")
	cmd.Flags().BoolVar(&emitJSON, "emit-json", false, "emit the report as JSON")
	cmd.Flags().StringVar(&outPath, "out", "", "also write the report to a file")
	return cmd
}

func formatReport(r *ledger.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "events: %d\n", r.Events)
	b.WriteString("top_decisions:\n")
	writeCounts(&b, r.TopDecisions)
	b.WriteString("top_next_steps:\n")
	writeCounts(&b, r.TopNextSteps)
	if r.Confidence != nil {
		fmt.Fprintf(&b, "confidence: min=%.2f max=%.2f mean=%.2f median=%.2f\n",
			r.Confidence.Min, r.Confidence.Max, r.Confidence.Mean, r.Confidence.Median)
	} else {
		b.WriteString("confidence: N/A\n")
	}
	if len(r.Buckets) > 0 {
		b.WriteString("confidence_buckets:\n")
		labels := make([]string, 0, len(r.Buckets))
		for label := range r.Buckets {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			fmt.Fprintf(&b, "  %s: %d\n", label, r.Buckets[label])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeCounts(b *strings.Builder, items []ledger.CountItem) {
	if len(items) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "  %d | %s\n", item.Count, item.Text)
	}
}

func dashboardCmd() *cobra.Command {
	var dbPath, outPath string
	var failBelowAvg, failBelowScore float64

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Summarize the SQLite store and run the AUTO-GUARD gate",
		Long: `Prints event totals, average score and confidence, the top next
steps, and recent low-score events. With guard thresholds set, exits
with code 2 when the average score falls below --fail-below-avg or any
event scores below --fail-below-score.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(dbPath); os.IsNotExist(err) {
				fmt.Println("NO_DB")
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, err := store.NewDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := context.Background()
			repo := &store.DecisionRepo{}
			summary, err := repo.Summarize(ctx, db, cfg.Thresholds.LowScoreLimit)
			if err != nil {
				return err
			}

			lines := formatSummary(summary)
			fmt.Println(strings.Join(lines, "\n"))
			if outPath != "" {
				if err := writeFileWithDir(outPath, summaryMarkdown(summary)); err != nil {
					return err
				}
			}

			if failBelowAvg < 0 && failBelowScore < 0 {
				return nil
			}
			guard, err := repo.Guard(ctx, db, failBelowAvg, failBelowScore)
			if err != nil {
				return err
			}

			avgDisplay := "N/A"
			if guard.AvgScore.Valid {
				avgDisplay = fmt.Sprintf("%.2f", guard.AvgScore.Float64)
			}
			if guard.AvgBelow {
				fmt.Printf("AUTO-GUARD: FAIL (avg_score=%s, threshold=%v)\n", avgDisplay, failBelowAvg)
				return &gateError{reason: "average score below threshold"}
			}
			if guard.LowScoreFound {
				fmt.Printf("AUTO-GUARD: FAIL (low_score_event, threshold=%v)\n", failBelowScore)
				return &gateError{reason: "low score event detected"}
			}
			fmt.Println("AUTO-GUARD: PASS")
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "data/decision_events.db", "SQLite database path")
	cmd.Flags().Float64Var(&failBelowAvg, "fail-below-avg", -1, "fail if average score drops below this")
	cmd.Flags().Float64Var(&failBelowScore, "fail-below-score", -1, "fail if any event scores below this")
	cmd.Flags().StringVar(&outPath, "out", "", "write a markdown report to this path")
	return cmd
}

func formatSummary(s *store.Summary) []string {
	lines := []string{fmt.Sprintf("events_total: %d", s.Total)}
	lines = append(lines, "avg_score: "+nullAvg(s.AvgScore))
	lines = append(lines, "avg_confidence: "+nullAvg(s.AvgConfidence))
	lines = append(lines, "top_next_steps:")
	if len(s.TopNextSteps) == 0 {
		lines = append(lines, "  (none)")
	}
	for _, item := range s.TopNextSteps {
		lines = append(lines, fmt.Sprintf("  %d | %s", item.Count, item.Text))
	}
	lines = append(lines, "low_score_events:")
	if len(s.LowScore) == 0 {
		lines = append(lines, "  (none)")
	}
	for _, ev := range s.LowScore {
		lines = append(lines, fmt.Sprintf("  %v | %s | %.2f | %s", ev.TS, ev.EventID, ev.Score, ev.Decision))
	}
	return lines
}

func summaryMarkdown(s *store.Summary) string {
	var b strings.Builder
	b.WriteString("# Decision Dashboard\n\n## Summary\n")
	fmt.Fprintf(&b, "- events_total: %d\n", s.Total)
	fmt.Fprintf(&b, "- avg_score: %s\n", nullAvg(s.AvgScore))
	fmt.Fprintf(&b, "- avg_confidence: %s\n", nullAvg(s.AvgConfidence))
	b.WriteString("\n## Top Next Steps\n")
	if len(s.TopNextSteps) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, item := range s.TopNextSteps {
		fmt.Fprintf(&b, "- (%d) %s\n", item.Count, item.Text)
	}
	b.WriteString("\n## Low Score Events\n")
	if len(s.LowScore) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, ev := range s.LowScore {
		fmt.Fprintf(&b, "- %v | %s | %.2f | %s\n", ev.TS, ev.EventID, ev.Score, ev.Decision)
	}
	return b.String()
}

func nullAvg(v sql.NullFloat64) string {
	if !v.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", v.Float64)
}

func writeFileWithDir(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
