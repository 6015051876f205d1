package temporal

import (
	"math"
	"time"

	"github.com/anthropics/consilium-engine/internal/domain"
	"github.com/anthropics/consilium-engine/internal/governor"
)

var riskOrder = map[string]int{
	"low":      1,
	"medium":   2,
	"high":     3,
	"critical": 4,
}

// TrendOptions configures one windowed trend evaluation.
type TrendOptions struct {
	FailBelowAvg   float64
	Grace          float64
	SinceMinutes   float64 // 0 means no time cutoff
	ExcludeClasses []string
	MinCount       int
	PolicyRules    governor.PolicyRules
	PolicyOff      bool
	PolicyMaxDelta float64 // <0 means uncapped

	// Now is injectable for tests; zero means time.Now.
	Now func() time.Time
}

// TrendSummary is the outcome of one window evaluation.
type TrendSummary struct {
	WindowMinutes float64  `json:"window_minutes,omitempty"`
	Count         int      `json:"count"`
	Avg           float64  `json:"avg"`
	RawAvg        *float64 `json:"raw_avg,omitempty"`
	Min           float64  `json:"min"`
	Max           float64  `json:"max"`
	Bad           int      `json:"bad"`  // effective score < 0.6
	OK            int      `json:"ok"`   // 0.6..0.8
	Good          int      `json:"good"` // > 0.8
	MaxRiskLevel  string   `json:"max_risk_level"`
	PolicyApplied int      `json:"policy_applied"`
	TrendStatus   string   `json:"trend_status"` // PASS, WARN, FAIL, INSUFFICIENT_DATA, NO_SCORES

	PolicySensitivity *PolicySensitivity `json:"policy_sensitivity,omitempty"`
}

// PolicySensitivity compares the window average with and without
// policy adjustments.
type PolicySensitivity struct {
	AvgOn            float64 `json:"avg_on"`
	AvgOff           float64 `json:"avg_off"`
	Delta            float64 `json:"delta"`
	PolicyDependency string  `json:"policy_dependency"` // HIGH when delta > 0.05
}

// MultiWindowSummary aggregates several window evaluations plus the
// cross-window drift check.
type MultiWindowSummary struct {
	Windows     []TrendSummary `json:"windows"`
	Drift       *float64       `json:"drift,omitempty"`
	DriftStatus string         `json:"drift_status,omitempty"` // OK or DRIFT
}

// Trend evaluates the recent ledger window against an average-score
// threshold. Events are filtered by time, class, and the synthetic
// flag; missing scores fall back to confidence when it is a valid
// probability. Policy rules adjust scores before averaging unless
// disabled.
func Trend(events []domain.DecisionEvent, opts TrendOptions) TrendSummary {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	var cutoff float64
	if opts.SinceMinutes > 0 {
		cutoff = float64(now().Unix()) - opts.SinceMinutes*60
	}

	excluded := make(map[string]bool, len(opts.ExcludeClasses))
	for _, c := range opts.ExcludeClasses {
		excluded[c] = true
	}

	summary := TrendSummary{MaxRiskLevel: "low"}
	var effective, raw []float64
	kept := 0
	for _, ev := range events {
		if ev.TS == 0 || (cutoff > 0 && ev.TS < cutoff) {
			continue
		}
		class := ev.DecisionClass
		if class == "" && ev.Type == directorType {
			class = "process"
		}
		if excluded[class] {
			continue
		}
		kept++
		if ev.Synthetic {
			continue
		}

		score, ok := scoreWithFallback(ev)
		if !ok {
			continue
		}
		raw = append(raw, score)

		eff := score
		if !opts.PolicyOff && len(opts.PolicyRules) > 0 {
			var app governor.PolicyApplication
			eff, app = governor.ApplyPolicies(ev, score, opts.PolicyRules, opts.PolicyMaxDelta)
			if app.Applied {
				summary.PolicyApplied++
			}
		}
		if ev.EffectiveScore != nil {
			eff = *ev.EffectiveScore
		}
		effective = append(effective, eff)

		if rank, ok := riskOrder[ev.RiskLevel]; ok && rank > riskOrder[summary.MaxRiskLevel] {
			summary.MaxRiskLevel = ev.RiskLevel
		}
	}

	summary.Count = kept
	if len(effective) == 0 {
		summary.TrendStatus = "NO_SCORES"
		return summary
	}

	sum, mn, mx := 0.0, math.Inf(1), math.Inf(-1)
	for _, v := range effective {
		sum += v
		mn = math.Min(mn, v)
		mx = math.Max(mx, v)
		switch {
		case v < 0.6:
			summary.Bad++
		case v <= 0.8:
			summary.OK++
		default:
			summary.Good++
		}
	}
	summary.Avg = sum / float64(len(effective))
	summary.Min = mn
	summary.Max = mx
	if len(raw) > 0 {
		rawSum := 0.0
		for _, v := range raw {
			rawSum += v
		}
		rawAvg := rawSum / float64(len(raw))
		summary.RawAvg = &rawAvg
	}

	minRequired := opts.MinCount
	if minRequired <= 0 {
		minRequired = 5
	}
	if kept < minRequired {
		summary.TrendStatus = "INSUFFICIENT_DATA"
		return summary
	}

	switch {
	case summary.Avg < opts.FailBelowAvg-opts.Grace:
		summary.TrendStatus = "FAIL"
	case summary.Avg < opts.FailBelowAvg:
		summary.TrendStatus = "WARN"
	default:
		summary.TrendStatus = "PASS"
	}
	return summary
}

// MultiWindowTrend evaluates several windows and the drift between
// the first two averages. driftMax < 0 disables the drift check.
// withSensitivity additionally reruns each window with policies off.
func MultiWindowTrend(events []domain.DecisionEvent, windows []float64, opts TrendOptions, driftMax float64, withSensitivity bool) MultiWindowSummary {
	var multi MultiWindowSummary
	for _, w := range windows {
		wOpts := opts
		wOpts.SinceMinutes = w
		s := Trend(events, wOpts)
		s.WindowMinutes = w

		if withSensitivity {
			offOpts := wOpts
			offOpts.PolicyOff = true
			off := Trend(events, offOpts)
			delta := s.Avg - off.Avg
			dep := "LOW"
			if delta > 0.05 {
				dep = "HIGH"
			}
			s.PolicySensitivity = &PolicySensitivity{
				AvgOn:            s.Avg,
				AvgOff:           off.Avg,
				Delta:            delta,
				PolicyDependency: dep,
			}
		}
		multi.Windows = append(multi.Windows, s)
	}

	if driftMax >= 0 && len(multi.Windows) >= 2 {
		drift := math.Abs(multi.Windows[0].Avg - multi.Windows[1].Avg)
		multi.Drift = &drift
		multi.DriftStatus = "OK"
		if drift > driftMax {
			multi.DriftStatus = "DRIFT"
		}
	}
	return multi
}

func scoreWithFallback(ev domain.DecisionEvent) (float64, bool) {
	if ev.Score != nil {
		return *ev.Score, true
	}
	if ev.Confidence != nil && *ev.Confidence >= 0 && *ev.Confidence <= 1 {
		return *ev.Confidence, true
	}
	return 0, false
}
