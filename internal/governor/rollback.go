package governor

import (
	"fmt"
	"os"

	"github.com/anthropics/consilium-engine/internal/domain"
)

// PolicyVersion names the policy adjustment the rollback planner
// knows how to revert.
const PolicyVersion = "director_regressions_soften_v1"

// Environment hooks used by automation and tests to force the
// rollback path deterministically.
const (
	EnvForceRollbackSuggested = "FORCE_ROLLBACK_SUGGESTED"
	EnvRollbackApproved       = "ROLLBACK_APPROVED"
)

// RollbackInputs carries the trend evidence the planner weighs.
type RollbackInputs struct {
	TrendFailed      bool   // a windowed trend check failed
	PolicyDependency string // HIGH when the policy materially moved scores
	MaxRiskLevel     string // highest risk_level seen in the window
}

// PlanRollback decides whether the active policy adjustment should be
// reverted. A rollback is suggested when a failed trend coincides
// with high policy dependency and high risk, or when the external
// suggested hook is asserted. The plan is only actionable once the
// approval hook is also asserted; otherwise it is merely proposed.
func PlanRollback(in RollbackInputs) *domain.RollbackPlan {
	suggested := in.TrendFailed &&
		in.PolicyDependency == "HIGH" &&
		(in.MaxRiskLevel == "high" || in.MaxRiskLevel == "critical")
	if os.Getenv(EnvForceRollbackSuggested) == "true" {
		suggested = true
	}
	if !suggested {
		return nil
	}

	return &domain.RollbackPlan{
		Policy:   PolicyVersion,
		Action:   "disable_in_policy_rules_json",
		Branch:   "auto/policy-rollback",
		Title:    fmt.Sprintf("Rollback %s", PolicyVersion),
		Approved: os.Getenv(EnvRollbackApproved) == "true",
	}
}

// RollbackLine renders the plan for automation output. A nil plan
// means no rollback is proposed.
func RollbackLine(plan *domain.RollbackPlan) string {
	if plan == nil {
		return "ROLLBACK_PLAN: none"
	}
	return fmt.Sprintf("ROLLBACK_PLAN: policy=%s action=%s branch=%s title=%q",
		plan.Policy, plan.Action, plan.Branch, plan.Title)
}
