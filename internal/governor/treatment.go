// Package governor turns drift signals into advisory remediation
// plans. Nothing here applies anything: every output carries
// apply=false and names the human follow-up instead.
package governor

import "github.com/anthropics/consilium-engine/internal/domain"

// Decide maps a drift trend onto exactly one advisory action.
// degrading prepares a prompt patch, drift prepares an eval-suite
// expansion, everything else is a silent no-op.
func Decide(sig domain.DriftSignal) domain.TreatmentDecision {
	d := domain.TreatmentDecision{
		Action:      "ignore",
		Mode:        domain.TreatmentSilent,
		Reason:      sig.Reason,
		SourceTrend: sig.Trend,
	}
	if d.Reason == "" {
		d.Reason = "unknown"
	}

	switch sig.Trend {
	case domain.TrendDegrading:
		d.Action = "prompt_patch"
		d.Mode = domain.TreatmentPrepareOnly
	case domain.TrendDrift:
		d.Action = "expand_eval"
		d.Mode = domain.TreatmentPrepareOnly
	}
	return d
}

// SuggestEvalCases returns the high-risk test-case stubs proposed when
// the environment drifted silently. They target the spots where a
// backend swap changes behavior without moving per-call metrics.
func SuggestEvalCases() []domain.EvalCaseStub {
	return []domain.EvalCaseStub{
		{
			ID:        "E11",
			RiskLevel: "HIGH",
			Topic:     "config precedence",
			Goal:      "detect backend selection conflicts",
		},
		{
			ID:        "E12",
			RiskLevel: "HIGH",
			Topic:     "timeout/latency mode",
			Goal:      "ensure conservative policy triggers",
		},
		{
			ID:        "E13",
			RiskLevel: "HIGH",
			Topic:     "token economy mode",
			Goal:      "ensure cost policy triggers",
		},
	}
}
