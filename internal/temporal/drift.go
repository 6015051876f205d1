package temporal

import (
	"github.com/anthropics/consilium-engine/internal/config"
	"github.com/anthropics/consilium-engine/internal/domain"
)

// Scan compares the last two snapshots in the timeline and classifies
// the trend. The signal is recomputed fresh on every run; callers
// persist only the latest. Fewer than 2 snapshots yields a signal
// with trend=insufficient_data and no deltas.
func Scan(timeline []domain.IntelligenceSnapshot, th config.Thresholds) domain.DriftSignal {
	if len(timeline) < 2 {
		return domain.DriftSignal{
			PrevEventID: "unknown",
			CurrEventID: "unknown",
			Trend:       domain.TrendInsufficientData,
		}
	}

	prev := timeline[len(timeline)-2]
	curr := timeline[len(timeline)-1]

	sig := domain.DriftSignal{
		PrevEventID:           prev.ID(),
		CurrEventID:           curr.ID(),
		DeltaConfidence:       deltaFloat(prev.Confidence, curr.Confidence),
		DeltaScore:            deltaFloat(prev.Score, curr.Score),
		DeltaLatencyMS:        deltaFloat(prev.LatencyMS, curr.LatencyMS),
		DeltaPromptTokens:     deltaFloat(prev.PromptTokens, curr.PromptTokens),
		DeltaCompletionTokens: deltaFloat(prev.CompletionTokens, curr.CompletionTokens),
		DeltaEvalPass:         deltaInt(prev.EvalPass, curr.EvalPass),
		DeltaEvalFail:         deltaInt(prev.EvalFail, curr.EvalFail),
		BackendChanged:        prev.Backend != curr.Backend,
		AdapterChanged:        prev.Adapter != curr.Adapter,
		RevisionChanged:       prev.Revision != curr.Revision,
	}
	if prev.TS != 0 || curr.TS != 0 {
		ds := curr.TS - prev.TS
		sig.DeltaSeconds = &ds
	}

	sig.Trend, sig.Reason = classify(sig, th)
	return sig
}

func classify(sig domain.DriftSignal, th config.Thresholds) (domain.Trend, string) {
	trend := domain.TrendStable
	reason := ""

	noMetrics := sig.DeltaConfidence == nil && sig.DeltaScore == nil &&
		sig.DeltaLatencyMS == nil && sig.DeltaPromptTokens == nil &&
		sig.DeltaCompletionTokens == nil

	switch {
	case noMetrics:
		// No per-call metrics at all. Eval counters are the only
		// remaining signal.
		switch {
		case sig.DeltaEvalFail == nil:
			trend, reason = domain.TrendInsufficientData, "no_numeric_fields"
		case *sig.DeltaEvalFail > 0:
			trend, reason = domain.TrendDegrading, "eval_drift"
		case *sig.DeltaEvalFail < 0:
			trend, reason = domain.TrendImproving, "eval_drift"
		case sig.DeltaEvalPass != nil && *sig.DeltaEvalPass != 0:
			trend, reason = domain.TrendImproving, "eval_drift"
		default:
			trend, reason = domain.TrendStable, "eval_drift"
		}
	case below(sig.DeltaConfidence, -th.DriftBand) || below(sig.DeltaScore, -th.DriftBand):
		trend = domain.TrendDegrading
	case above(sig.DeltaConfidence, th.DriftBand) || above(sig.DeltaScore, th.DriftBand):
		trend = domain.TrendImproving
	}

	evalFlat := sig.DeltaEvalFail != nil && *sig.DeltaEvalFail == 0 &&
		sig.DeltaEvalPass != nil && *sig.DeltaEvalPass == 0

	if sig.EnvironmentChanged() && evalFlat &&
		(trend == domain.TrendStable || trend == domain.TrendImproving) {
		// The environment moved under us with no metric movement at
		// all: a silent regression risk, not a clean bill of health.
		return domain.TrendDrift, "environment_changed_no_metric_change"
	}
	if trend == domain.TrendStable && sig.DeltaSeconds != nil && *sig.DeltaSeconds >= th.StaleAfterSec {
		return domain.TrendStale, "no_change_over_time"
	}
	return trend, reason
}

// GateLine renders the CI-facing verdict for a drift signal.
// degrading and drift are soft failures; everything else passes.
func GateLine(trend domain.Trend) string {
	switch trend {
	case domain.TrendDegrading:
		return "TEMPORAL_GATE: SOFT (regression_detected)"
	case domain.TrendDrift:
		return "TEMPORAL_GATE: SOFT (environment_drift)"
	case domain.TrendStale:
		return "TEMPORAL_GATE: PASS (stale)"
	default:
		return "TEMPORAL_GATE: PASS"
	}
}

func deltaFloat(prev, curr *float64) *float64 {
	if prev == nil || curr == nil {
		return nil
	}
	d := *curr - *prev
	return &d
}

func deltaInt(prev, curr *int) *int {
	if prev == nil || curr == nil {
		return nil
	}
	d := *curr - *prev
	return &d
}

func below(v *float64, limit float64) bool { return v != nil && *v < limit }

func above(v *float64, limit float64) bool { return v != nil && *v > limit }
