package temporal

import (
	"math"

	"github.com/anthropics/consilium-engine/internal/domain"
)

const directorType = "director_decision"

// StabilityResult is the intra-ledger short/long window comparison.
type StabilityResult struct {
	Sampled    int     `json:"sampled"`
	W5         float64 `json:"w5"`
	W20        float64 `json:"w20"`
	Delta      float64 `json:"delta"`
	Stable     bool    `json:"stable"`
	Verdict    string  `json:"verdict"` // OK or HOLD
	Skipped    bool    `json:"skipped"`
	SkipReason string  `json:"skip_reason,omitempty"`
}

// Hold reports whether downstream actions should be deferred.
// A skipped analysis never holds.
func (r StabilityResult) Hold() bool {
	return !r.Skipped && r.Verdict == "HOLD"
}

// Stability compares the mean effective score of the last 5 director
// decisions against the last 20. Synthetic events and events without
// a usable score are ignored. Fewer than minN usable events yields a
// SKIP result rather than a verdict.
func Stability(events []domain.DecisionEvent, stabilityBand float64, minN int) StabilityResult {
	var scores []float64
	for _, ev := range events {
		if ev.Type != directorType || ev.Synthetic {
			continue
		}
		if v, ok := ev.ScoreOrEffective(); ok {
			scores = append(scores, v)
		}
	}

	if len(scores) < minN {
		return StabilityResult{
			Sampled:    len(scores),
			Skipped:    true,
			SkipReason: "insufficient director decisions",
			Verdict:    "OK",
		}
	}

	w5 := meanTail(scores, 5)
	w20 := meanTail(scores, 20)
	delta := math.Abs(w5 - w20)
	stable := delta <= stabilityBand

	verdict := "OK"
	if !stable {
		verdict = "HOLD"
	}
	return StabilityResult{
		Sampled: len(scores),
		W5:      w5,
		W20:     w20,
		Delta:   delta,
		Stable:  stable,
		Verdict: verdict,
	}
}

// meanTail averages the last n values, or all of them if fewer.
func meanTail(values []float64, n int) float64 {
	if len(values) > n {
		values = values[len(values)-n:]
	}
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
