// Package domain defines the core types for the Consilium decision pipeline.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// RoutingMode is the escalation level assigned to a routed request.
type RoutingMode string

const (
	ModeFast     RoutingMode = "FAST"
	ModeStandard RoutingMode = "STANDARD"
	ModeCritical RoutingMode = "CRITICAL"
)

// DomainScore explains how one domain contributed to overall confidence.
type DomainScore struct {
	Score  float64  `json:"score"`
	Strong []string `json:"strong"`
	Weak   []string `json:"weak"`
	Reason string   `json:"reason"`
}

// RoutingResult is the outcome of routing a single request string.
// Immutable after creation.
type RoutingResult struct {
	Mode            RoutingMode            `json:"mode"`
	Agents          []string               `json:"agents"`
	TriggersMatched map[string][]string    `json:"triggers_matched"`
	DomainsMatched  int                    `json:"domains_matched"`
	Confidence      float64                `json:"confidence"`
	Breakdown       map[string]DomainScore `json:"confidence_breakdown"`
	Downgraded      bool                   `json:"downgraded"`
	Reason          string                 `json:"reason"`
}

// HasAgent reports whether the agent set contains name.
func (r RoutingResult) HasAgent(name string) bool {
	for _, a := range r.Agents {
		if a == name {
			return true
		}
	}
	return false
}

// OverrideContext records a director override attached to a decision event.
type OverrideContext struct {
	Present      bool   `json:"present"`
	Reason       string `json:"reason,omitempty"`
	OverrideKind string `json:"override_kind,omitempty"`
}

// DecisionEvent is one record in the append-only decision ledger.
// Optional numeric fields are pointers so absence survives a JSON round
// trip. Consumers must tolerate unknown extra fields.
type DecisionEvent struct {
	EventID          string           `json:"event_id,omitempty"`
	TS               float64          `json:"ts,omitempty"`
	Type             string           `json:"type"`
	Decision         string           `json:"decision"`
	NextStep         string           `json:"next_step"`
	DecisionClass    string           `json:"decision_class,omitempty"`
	Confidence       *float64         `json:"confidence,omitempty"`
	Score            *float64         `json:"score,omitempty"`
	EffectiveScore   *float64         `json:"effective_score,omitempty"`
	RiskLevel        string           `json:"risk_level,omitempty"`
	SchemaVersion    string           `json:"schema_version,omitempty"`
	Override         *OverrideContext `json:"override_context,omitempty"`
	Uncertainty      *float64         `json:"uncertainty,omitempty"`
	Synthetic        bool             `json:"synthetic,omitempty"`
	LatencyMS        *float64         `json:"latency_ms,omitempty"`
	TotalTokens      *int64           `json:"total_tokens,omitempty"`
	PromptTokens     *int64           `json:"prompt_tokens,omitempty"`
	CompletionTokens *int64           `json:"completion_tokens,omitempty"`
}

// ComputeEventID derives a stable identity from the event content.
// Text fields are whitespace-normalized and confidence is fixed to four
// decimals so that semantically identical events hash identically.
func (e DecisionEvent) ComputeEventID() string {
	conf := ""
	if e.Confidence != nil {
		conf = fmt.Sprintf("%.4f", *e.Confidence)
	}
	parts := []string{
		normalizeText(e.Type),
		normalizeText(e.Decision),
		normalizeText(e.NextStep),
		conf,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ScoreOrEffective returns effective_score when present, else score.
// Temporal analysis prefers the override.
func (e DecisionEvent) ScoreOrEffective() (float64, bool) {
	if e.EffectiveScore != nil {
		return *e.EffectiveScore, true
	}
	if e.Score != nil {
		return *e.Score, true
	}
	return 0, false
}

// IntelligenceSnapshot is one record in the periodic environment
// timeline: the identity of the serving environment plus whatever
// quality metrics were observable at capture time. Metric fields are
// pointers so absent values stay distinguishable from zero.
type IntelligenceSnapshot struct {
	TS               float64  `json:"ts"`
	EventID          string   `json:"event_id,omitempty"`
	Backend          string   `json:"backend"`
	Adapter          string   `json:"adapter"`
	Revision         string   `json:"revision"`
	Confidence       *float64 `json:"confidence,omitempty"`
	Score            *float64 `json:"score,omitempty"`
	LatencyMS        *float64 `json:"latency_ms,omitempty"`
	PromptTokens     *float64 `json:"prompt_tokens,omitempty"`
	CompletionTokens *float64 `json:"completion_tokens,omitempty"`
	EvalPass         *int     `json:"eval_pass,omitempty"`
	EvalFail         *int     `json:"eval_fail,omitempty"`
}

// ID returns the snapshot's event id, falling back to its timestamp.
func (s IntelligenceSnapshot) ID() string {
	if s.EventID != "" {
		return s.EventID
	}
	return fmt.Sprintf("%v", s.TS)
}

// Trend classifies the movement between two snapshots.
type Trend string

const (
	TrendStable           Trend = "stable"
	TrendImproving        Trend = "improving"
	TrendDegrading        Trend = "degrading"
	TrendDrift            Trend = "drift"
	TrendStale            Trend = "stale"
	TrendInsufficientData Trend = "insufficient_data"
)

// DriftSignal is the result of comparing the last two snapshots.
// Recomputed fresh on every scan; only the latest is persisted.
type DriftSignal struct {
	PrevEventID           string   `json:"prev_event_id"`
	CurrEventID           string   `json:"curr_event_id"`
	DeltaConfidence       *float64 `json:"delta_confidence"`
	DeltaScore            *float64 `json:"delta_score"`
	DeltaLatencyMS        *float64 `json:"delta_latency_ms"`
	DeltaPromptTokens     *float64 `json:"delta_prompt_tokens"`
	DeltaCompletionTokens *float64 `json:"delta_completion_tokens"`
	DeltaEvalPass         *int     `json:"delta_eval_pass,omitempty"`
	DeltaEvalFail         *int     `json:"delta_eval_fail,omitempty"`
	DeltaSeconds          *float64 `json:"delta_seconds,omitempty"`
	BackendChanged        bool     `json:"backend_changed"`
	AdapterChanged        bool     `json:"adapter_changed"`
	RevisionChanged       bool     `json:"revision_changed"`
	Trend                 Trend    `json:"trend"`
	Reason                string   `json:"reason,omitempty"`
}

// EnvironmentChanged reports whether any identity component differs.
func (s DriftSignal) EnvironmentChanged() bool {
	return s.BackendChanged || s.AdapterChanged || s.RevisionChanged
}

// TreatmentMode controls how an advisory action is surfaced.
type TreatmentMode string

const (
	TreatmentSilent      TreatmentMode = "SILENT"
	TreatmentPrepareOnly TreatmentMode = "PREPARE_ONLY"
	TreatmentSoft        TreatmentMode = "SOFT"
)

// TreatmentDecision is the governor's advisory action for a drift signal.
// Apply is always false; nothing here self-applies.
type TreatmentDecision struct {
	Action      string        `json:"action"`
	Mode        TreatmentMode `json:"mode"`
	Reason      string        `json:"reason"`
	SourceTrend Trend         `json:"source_trend"`
	Apply       bool          `json:"apply"`
}

// PromptPatchPlan proposes a prompt adjustment for a low-quality decision.
type PromptPatchPlan struct {
	PlanID          string        `json:"plan_id,omitempty"`
	Status          string        `json:"status"`
	PatchType       string        `json:"patch_type,omitempty"`
	TriggerEventID  string        `json:"trigger_event_id,omitempty"`
	Reason          string        `json:"reason"`
	SuggestedChange string        `json:"suggested_change,omitempty"`
	Mode            TreatmentMode `json:"mode,omitempty"`
	Apply           bool          `json:"apply"`
	TemporalState   string        `json:"temporal_state"`
}

// EvalCaseStub is a suggested high-risk test case for human authoring.
type EvalCaseStub struct {
	ID        string `json:"id"`
	RiskLevel string `json:"risk_level"`
	Topic     string `json:"topic"`
	Goal      string `json:"goal"`
}

// RollbackPlan names a policy adjustment and its concrete reversal.
type RollbackPlan struct {
	Policy   string `json:"policy"`
	Action   string `json:"action"`
	Branch   string `json:"branch"`
	Title    string `json:"title"`
	Approved bool   `json:"approved"`
}

// BreakerState is the circuit breaker state machine position.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// StateTransition records one breaker state change.
type StateTransition struct {
	Timestamp float64      `json:"timestamp"`
	From      BreakerState `json:"from"`
	To        BreakerState `json:"to"`
	Reason    string       `json:"reason"`
}

// BreakerSnapshot is a point-in-time view of a breaker for diagnostics.
type BreakerSnapshot struct {
	State             BreakerState      `json:"state"`
	FailureCount      int               `json:"failure_count"`
	SuccessCount      int               `json:"success_count"`
	TotalCalls        int64             `json:"total_calls"`
	TotalFailures     int64             `json:"total_failures"`
	TotalBlocked      int64             `json:"total_blocked"`
	TimeUntilRetrySec float64           `json:"time_until_retry_sec"`
	FailureThreshold  int               `json:"failure_threshold"`
	RecoveryTimeout   float64           `json:"recovery_timeout_sec"`
	SuccessThreshold  int               `json:"success_threshold"`
	RecentTransitions []StateTransition `json:"recent_state_changes"`
}
