package governor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/anthropics/consilium-engine/internal/domain"
)

// Temporal states attached to a patch plan.
const (
	TemporalOK      = "OK"
	TemporalHold    = "HOLD"
	TemporalUnknown = "UNKNOWN"
)

const directorType = "director_decision"

// PlanPromptPatch scans the ledger backward for the most recent
// director decision whose score or confidence falls below lowLimit
// and proposes a prompt adjustment referencing it. The plan is never
// applied here; under a temporal hold it is DEFERRED, otherwise READY.
// With no qualifying event the status is NO_ACTION.
func PlanPromptPatch(events []domain.DecisionEvent, temporalState string, lowLimit float64) domain.PromptPatchPlan {
	trigger := latestLowQuality(events, lowLimit)
	if trigger == nil {
		return domain.PromptPatchPlan{
			Status:        "NO_ACTION",
			Reason:        "no_bad_or_low_decision",
			TemporalState: temporalState,
		}
	}

	status := "READY"
	if temporalState == TemporalHold {
		status = "DEFERRED"
	}
	return domain.PromptPatchPlan{
		PlanID:          uuid.NewString(),
		Status:          status,
		PatchType:       "prompt_adjustment",
		TriggerEventID:  eventRef(*trigger),
		Reason:          "Low confidence or bad decision detected",
		SuggestedChange: "Increase requirement for explicit assumptions and edge-case enumeration",
		Mode:            domain.TreatmentSoft,
		Apply:           false,
		TemporalState:   temporalState,
	}
}

func latestLowQuality(events []domain.DecisionEvent, lowLimit float64) *domain.DecisionEvent {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Type != directorType {
			continue
		}
		if (ev.Score != nil && *ev.Score < lowLimit) ||
			(ev.Confidence != nil && *ev.Confidence < lowLimit) {
			return &ev
		}
	}
	return nil
}

func eventRef(ev domain.DecisionEvent) string {
	if ev.EventID != "" {
		return ev.EventID
	}
	return fmt.Sprintf("%v", ev.TS)
}
