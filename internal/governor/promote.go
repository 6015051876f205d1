package governor

import "github.com/anthropics/consilium-engine/internal/domain"

// PromoteVerdict is the final go/no-go signal for promoting a change.
type PromoteVerdict struct {
	Hold   bool
	Reason string
}

// PromoteGate combines the temporal hold flag and the latest prompt
// patch plan into a single promote verdict. Missing inputs pass: the
// gate blocks only on positive evidence of instability. plan may be
// nil when no patch plan exists.
func PromoteGate(temporalHold bool, haveTemporal bool, plan *domain.PromptPatchPlan) PromoteVerdict {
	if temporalHold || (plan != nil && plan.Status == "DEFERRED") {
		return PromoteVerdict{Hold: true, Reason: "temporal_or_deferred_patch"}
	}
	if !haveTemporal && plan == nil {
		return PromoteVerdict{Reason: "missing_inputs"}
	}
	return PromoteVerdict{Reason: "stable"}
}

// Line renders the verdict for automation output.
func (v PromoteVerdict) Line() string {
	if v.Hold {
		return "PROMOTE_GATE: HOLD reason=" + v.Reason
	}
	return "PROMOTE_GATE: OK reason=" + v.Reason
}
