package governor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/consilium-engine/internal/domain"
)

// PolicyRule softens or hardens the score of matching events before
// trend averaging. Rules are keyed by a policy id such as
// director_regressions_soften_v1.
type PolicyRule struct {
	Enabled            bool     `json:"enabled"`
	OnlyType           string   `json:"only_type,omitempty"`
	OnlyDecisionClass  string   `json:"only_decision_class,omitempty"`
	OnlyPenaltyReason  string   `json:"only_penalty_reason,omitempty"`
	MitigationKeywords []string `json:"mitigation_keywords,omitempty"`
	Delta              float64  `json:"delta,omitempty"`
}

// PolicyRules maps policy id to rule. The reserved "defaults" key is
// stripped at load time.
type PolicyRules map[string]PolicyRule

// LoadPolicyRules reads a policy rules JSON file. A missing file
// yields an empty rule set, not an error.
func LoadPolicyRules(path string) (PolicyRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PolicyRules{}, nil
		}
		return nil, fmt.Errorf("read policy rules: %w", err)
	}
	data = []byte(strings.TrimPrefix(string(data), "\ufeff"))

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return PolicyRules{}, nil
	}
	rules := make(PolicyRules, len(raw))
	for key, msg := range raw {
		if key == "defaults" {
			continue
		}
		var rule PolicyRule
		if err := json.Unmarshal(msg, &rule); err != nil {
			continue
		}
		rules[key] = rule
	}
	return rules, nil
}

var penaltyKeywords = map[string][]string{
	"regressions":  {"regression", "regressions", "regressed"},
	"coverage":     {"coverage"},
	"insufficient": {"insufficient"},
}

// ClassifyPenaltyReason buckets an event's decision text into the
// penalty-reason key the policy rules match against.
func ClassifyPenaltyReason(text string) string {
	lowered := strings.ToLower(text)
	for _, reason := range []string{"regressions", "coverage", "insufficient"} {
		for _, kw := range penaltyKeywords[reason] {
			if strings.Contains(lowered, kw) {
				return reason
			}
		}
	}
	return "other"
}

// PolicyApplication reports how one event was adjusted.
type PolicyApplication struct {
	Applied bool
	Delta   float64
	Rules   []string
}

// ApplyPolicies computes the effective score for an event under the
// rule set. maxDelta < 0 means uncapped. The returned score is
// clamped to 1.0; the event itself is not mutated.
func ApplyPolicies(ev domain.DecisionEvent, score float64, rules PolicyRules, maxDelta float64) (float64, PolicyApplication) {
	reason := ClassifyPenaltyReason(ev.Decision + " " + ev.NextStep)
	text := strings.ToLower(ev.Decision + " " + ev.NextStep)

	var app PolicyApplication
	total := 0.0
	for key, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if rule.OnlyType != "" && ev.Type != rule.OnlyType {
			continue
		}
		if rule.OnlyPenaltyReason != "" && reason != rule.OnlyPenaltyReason {
			continue
		}
		if rule.OnlyDecisionClass != "" && ev.DecisionClass != rule.OnlyDecisionClass {
			continue
		}
		if len(rule.MitigationKeywords) > 0 && !containsAny(text, rule.MitigationKeywords) {
			continue
		}
		delta := rule.Delta
		if delta == 0 {
			delta = 0.05
		}
		total += delta
		app.Rules = append(app.Rules, key)
	}

	if total <= 0 {
		return score, app
	}
	if maxDelta >= 0 && total > maxDelta {
		total = maxDelta
	}
	app.Applied = true
	app.Delta = total

	adjusted := score + total
	if adjusted > 1.0 {
		adjusted = 1.0
	}
	return adjusted, app
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
