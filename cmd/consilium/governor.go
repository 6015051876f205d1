package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anthropics/consilium-engine/internal/domain"
	"github.com/anthropics/consilium-engine/internal/governor"
	"github.com/anthropics/consilium-engine/internal/ledger"
	"github.com/anthropics/consilium-engine/internal/temporal"
)

func treatCmd() *cobra.Command {
	var signalPath, outDir string

	cmd := &cobra.Command{
		Use:   "treat",
		Short: "Turn the latest drift signal into an advisory treatment",
		Long: `Reads the drift signal and writes a treatment decision. A drift
trend additionally produces an eval-expansion plan with suggested
high-risk test-case stubs. Nothing is applied automatically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sig := domain.DriftSignal{Trend: domain.TrendInsufficientData, Reason: "unknown"}
			if data, err := os.ReadFile(signalPath); err == nil {
				var parsed domain.DriftSignal
				if json.Unmarshal(data, &parsed) == nil && parsed.Trend != "" {
					sig = parsed
				}
			}

			decision := governor.Decide(sig)
			data, err := json.MarshalIndent(decision, "", "  ")
			if err != nil {
				return err
			}
			if err := writeFileWithDir(filepath.Join(outDir, "treatment_decision.json"), string(data)+"\n"); err != nil {
				return err
			}
			fmt.Printf("TREATMENT: action=%s mode=%s trend=%s\n", decision.Action, decision.Mode, decision.SourceTrend)

			if decision.Action != "expand_eval" {
				return nil
			}

			plan := strings.Join([]string{
				"PLAN: expand_eval",
				"WHY: environment drift (backend/adapter/revision changed, metrics unchanged)",
				"NEXT: add 3 new HIGH-risk eval cases targeting backend differences",
			}, "\n")
			if err := writeFileWithDir(filepath.Join(outDir, "treatment_plan.md"), plan+"\n"); err != nil {
				return err
			}

			suggestions := map[string][]domain.EvalCaseStub{
				"suggested_cases": governor.SuggestEvalCases(),
			}
			sugData, err := json.MarshalIndent(suggestions, "", "  ")
			if err != nil {
				return err
			}
			return writeFileWithDir(filepath.Join(outDir, "eval_case_suggestions.json"), string(sugData)+"\n")
		},
	}

	cmd.Flags().StringVar(&signalPath, "signal", "data/reports/temporal_signal.json", "drift signal path")
	cmd.Flags().StringVar(&outDir, "out-dir", "data/reports", "directory for treatment outputs")
	return cmd
}

func patchPlanCmd() *cobra.Command {
	var logPath, outPath, temporalPath string

	cmd := &cobra.Command{
		Use:   "patch-plan",
		Short: "Propose a prompt patch for the latest low-quality decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			events, err := ledger.Load(logPath, 0)
			if err != nil {
				return err
			}

			plan := governor.PlanPromptPatch(events, temporalState(temporalPath), cfg.Thresholds.LowScoreLimit)
			data, err := json.MarshalIndent(plan, "", "  ")
			if err != nil {
				return err
			}
			if err := writeFileWithDir(outPath, string(data)+"\n"); err != nil {
				return err
			}
			fmt.Printf("PATCH_PLAN: status=%s temporal=%s\n", plan.Status, plan.TemporalState)
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "data/decision_events.log", "decision ledger path")
	cmd.Flags().StringVar(&outPath, "out", "data/reports/prompt_patch_plan.json", "plan output path")
	cmd.Flags().StringVar(&temporalPath, "temporal", "data/reports/temporal.txt", "temporal verdict file")
	return cmd
}

func promoteGateCmd() *cobra.Command {
	var temporalPath, planPath string

	cmd := &cobra.Command{
		Use:   "promote-gate",
		Short: "Combine temporal and patch-plan state into a promote verdict",
		RunE: func(cmd *cobra.Command, args []string) error {
			state := temporalState(temporalPath)

			var plan *domain.PromptPatchPlan
			if data, err := os.ReadFile(planPath); err == nil {
				var parsed domain.PromptPatchPlan
				if json.Unmarshal(data, &parsed) == nil {
					plan = &parsed
				}
			}

			verdict := governor.PromoteGate(state == governor.TemporalHold, state != governor.TemporalUnknown, plan)
			fmt.Println(verdict.Line())
			return nil
		},
	}

	cmd.Flags().StringVar(&temporalPath, "temporal", "data/reports/temporal.txt", "temporal verdict file")
	cmd.Flags().StringVar(&planPath, "plan", "data/reports/prompt_patch_plan.json", "prompt patch plan path")
	return cmd
}

// temporalState classifies the temporal verdict file: HOLD when the
// hold marker is present, OK when the file exists without it, UNKNOWN
// when the file is missing.
func temporalState(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return governor.TemporalUnknown
	}
	if strings.Contains(string(data), "TEMPORAL_HOLD=true") {
		return governor.TemporalHold
	}
	return governor.TemporalOK
}

func trendCmd() *cobra.Command {
	var logPath, windowsCSV, policyRulesPath string
	var excludeClasses []string
	var failBelowAvg, grace, driftMax, policyMaxDelta float64
	var minCount int
	var emitJSON, policyOff, policySensitivity, ciMulti bool

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Windowed average-score gate with rollback planning",
		Long: `Evaluates recent ledger windows against an average-score
threshold, applying any enabled policy adjustments before averaging.
Multi-window runs also check drift between window averages and decide
whether the active policy adjustment should be rolled back. Exits 2
when the gate fails or a suggested rollback lacks approval.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(logPath); os.IsNotExist(err) {
				fmt.Println("NO_LOG")
				return nil
			}

			events, err := ledger.Load(logPath, 50)
			if err != nil {
				return err
			}

			rules, err := governor.LoadPolicyRules(policyRulesPath)
			if err != nil {
				return err
			}

			opts := temporal.TrendOptions{
				FailBelowAvg:   failBelowAvg,
				Grace:          grace,
				ExcludeClasses: excludeClasses,
				MinCount:       minCount,
				PolicyRules:    rules,
				PolicyOff:      policyOff,
				PolicyMaxDelta: policyMaxDelta,
			}

			if windowsCSV == "" {
				summary := temporal.Trend(events, opts)
				printTrendSummary(summary, emitJSON)
				if summary.TrendStatus == "FAIL" {
					return &gateError{reason: "trend below threshold"}
				}
				return nil
			}

			windows, err := parseWindows(windowsCSV)
			if err != nil {
				return err
			}
			multi := temporal.MultiWindowTrend(events, windows, opts, driftMax, policySensitivity)
			for _, w := range multi.Windows {
				printTrendSummary(w, false)
			}
			if multi.Drift != nil {
				fmt.Printf("DRIFT: %.6f status=%s\n", *multi.Drift, multi.DriftStatus)
			}
			if emitJSON {
				data, err := json.Marshal(multi)
				if err != nil {
					return err
				}
				fmt.Printf("SUMMARY_JSON_MULTI: %s\n", data)
			}

			plan := governor.PlanRollback(rollbackInputs(multi))
			suggested := plan != nil
			fmt.Printf("ROLLBACK_SUGGESTED: %v\n", suggested)
			fmt.Println(governor.RollbackLine(plan))
			if suggested && !plan.Approved {
				fmt.Println("ROLLBACK_APPROVAL: REQUIRED")
				return &gateError{reason: "rollback requires approval"}
			}
			if suggested {
				fmt.Println("ROLLBACK_APPROVAL: OK")
			}

			if ciMulti {
				for _, w := range multi.Windows {
					if w.TrendStatus == "FAIL" &&
						(w.PolicySensitivity == nil || w.PolicySensitivity.PolicyDependency == "LOW") {
						return &gateError{reason: "window trend below threshold"}
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "data/decision_events.log", "decision ledger path")
	cmd.Flags().Float64Var(&failBelowAvg, "fail-below-avg", 0.6, "fail if the window average drops below this")
	cmd.Flags().Float64Var(&grace, "grace", 0, "grace zone below threshold before failing")
	cmd.Flags().StringArrayVar(&excludeClasses, "exclude-class", nil, "exclude events of this decision class")
	cmd.Flags().StringVar(&windowsCSV, "windows-minutes", "", "comma-separated window sizes in minutes")
	cmd.Flags().Float64Var(&driftMax, "drift-max", -1, "maximum allowed drift between window averages")
	cmd.Flags().BoolVar(&policySensitivity, "policy-sensitivity", false, "compare averages with policies on vs off")
	cmd.Flags().BoolVar(&ciMulti, "ci-multi", false, "fail on any low-dependency window failure")
	cmd.Flags().IntVar(&minCount, "min-count", 0, "minimum events required to evaluate the trend")
	cmd.Flags().BoolVar(&emitJSON, "emit-json", false, "emit the summary as JSON")
	cmd.Flags().StringVar(&policyRulesPath, "policy-rules", "data/policy_rules.json", "policy rules path")
	cmd.Flags().BoolVar(&policyOff, "policy-off", false, "disable policy adjustments for this run")
	cmd.Flags().Float64Var(&policyMaxDelta, "policy-max-delta", -1, "cap the total policy delta per event")
	return cmd
}

func printTrendSummary(s temporal.TrendSummary, emitJSON bool) {
	if emitJSON {
		data, err := json.Marshal(s)
		if err == nil {
			fmt.Printf("SUMMARY_JSON: %s\n", data)
		}
		return
	}
	switch s.TrendStatus {
	case "NO_SCORES":
		fmt.Println("NO_SCORES")
	case "INSUFFICIENT_DATA":
		fmt.Printf("TREND: INSUFFICIENT_DATA (count=%d)\n", s.Count)
	default:
		fmt.Printf("DECISION_TREND last=%d avg=%.3f min=%.3f max=%.3f\n",
			s.Bad+s.OK+s.Good, s.Avg, s.Min, s.Max)
		fmt.Printf("TREND: %s\n", s.TrendStatus)
	}
}

// rollbackInputs distills the multi-window evidence the rollback
// planner weighs: any failed window with high policy dependency and
// the worst observed risk level.
func rollbackInputs(multi temporal.MultiWindowSummary) governor.RollbackInputs {
	in := governor.RollbackInputs{MaxRiskLevel: "low", PolicyDependency: "LOW"}
	rank := map[string]int{"low": 1, "medium": 2, "high": 3, "critical": 4}
	for _, w := range multi.Windows {
		if w.TrendStatus == "FAIL" {
			in.TrendFailed = true
			if w.PolicySensitivity != nil && w.PolicySensitivity.PolicyDependency == "HIGH" {
				in.PolicyDependency = "HIGH"
			}
		}
		if rank[w.MaxRiskLevel] > rank[in.MaxRiskLevel] {
			in.MaxRiskLevel = w.MaxRiskLevel
		}
	}
	return in
}

func parseWindows(csv string) ([]float64, error) {
	var windows []float64
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid window %q: %w", part, err)
		}
		windows = append(windows, v)
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("no windows given")
	}
	return windows, nil
}
