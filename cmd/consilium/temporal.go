package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anthropics/consilium-engine/internal/domain"
	"github.com/anthropics/consilium-engine/internal/ledger"
	"github.com/anthropics/consilium-engine/internal/temporal"
)

func snapshotCmd() *cobra.Command {
	var timelinePath, backend, adapter, revision string
	var evalPass, evalFail int

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Append an intelligence snapshot to the timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap := domain.IntelligenceSnapshot{
				Backend:  backend,
				Adapter:  adapter,
				Revision: revision,
			}
			if cmd.Flags().Changed("eval-pass") {
				snap.EvalPass = &evalPass
			}
			if cmd.Flags().Changed("eval-fail") {
				snap.EvalFail = &evalFail
			}
			if err := temporal.AppendSnapshot(timelinePath, snap); err != nil {
				return err
			}
			fmt.Println("SNAPSHOT: appended")
			return nil
		},
	}

	cmd.Flags().StringVar(&timelinePath, "timeline", "data/reports/intelligence_timeline.jsonl", "timeline path")
	cmd.Flags().StringVar(&backend, "backend", "", "backend identity")
	cmd.Flags().StringVar(&adapter, "adapter", "", "adapter/version identity")
	cmd.Flags().StringVar(&revision, "revision", "", "source revision")
	cmd.Flags().IntVar(&evalPass, "eval-pass", 0, "eval pass count")
	cmd.Flags().IntVar(&evalFail, "eval-fail", 0, "eval fail count")
	return cmd
}

func driftCmd() *cobra.Command {
	var timelinePath, outPath string

	cmd := &cobra.Command{
		Use:   "drift",
		Short: "Classify drift between the last two snapshots",
		Long: `Compares the last two timeline snapshots and emits the latest
drift signal plus a TEMPORAL_GATE line: degrading and drift soft-fail,
everything else passes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			timeline, err := temporal.LoadTimeline(timelinePath)
			if err != nil {
				return err
			}

			sig := temporal.Scan(timeline, cfg.Thresholds)
			data, err := json.MarshalIndent(sig, "", "  ")
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := writeFileWithDir(outPath, string(data)+"\n"); err != nil {
					return err
				}
			}
			fmt.Println(temporal.GateLine(sig.Trend))
			return nil
		},
	}

	cmd.Flags().StringVar(&timelinePath, "timeline", "data/reports/intelligence_timeline.jsonl", "timeline path")
	cmd.Flags().StringVar(&outPath, "out", "data/reports/temporal_signal.json", "write the drift signal here")
	return cmd
}

func temporalCmd() *cobra.Command {
	var logPath string

	cmd := &cobra.Command{
		Use:   "temporal",
		Short: "Short/long window stability check over director decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			events, err := ledger.Load(logPath, 0)
			if err != nil {
				return err
			}

			res := temporal.Stability(events, cfg.Thresholds.StabilityBand, cfg.Thresholds.MinStabilityN)
			if res.Skipped {
				fmt.Println("TEMPORAL: w5=NA w20=NA stability=SKIP anti_flap=SKIP")
				return nil
			}

			stability := "STABLE"
			if !res.Stable {
				stability = "UNSTABLE"
			}
			fmt.Printf("TEMPORAL: w5=%.2f w20=%.2f stability=%s anti_flap=%s\n",
				res.W5, res.W20, stability, res.Verdict)
			if res.Hold() {
				fmt.Println("TEMPORAL_HOLD=true")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "data/decision_events.log", "decision ledger path")
	return cmd
}
