// Package router implements confidence-weighted request routing.
//
// Matching is deliberately substring-based against a fixed trigger
// catalog: an inspectable rule table with a known precision ceiling,
// not an NLP classifier.
package router

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/anthropics/consilium-engine/internal/config"
	"github.com/anthropics/consilium-engine/internal/domain"
)

const (
	agentDev      = "dev"
	agentDirector = "director"
)

// Router classifies request strings into an escalation mode and agent
// set. It is pure and stateless: safe for unlimited concurrent use.
type Router struct {
	catalog    *config.Catalog
	escalation float64
}

// New creates a Router over an immutable catalog. escalationConf is the
// confidence bar for promoting a 3+ domain match to CRITICAL.
func New(catalog *config.Catalog, escalationConf float64) *Router {
	return &Router{catalog: catalog, escalation: escalationConf}
}

// Route classifies a query. Total over all inputs; an empty query
// routes FAST. The caller is responsible for logging a DecisionEvent.
func (r *Router) Route(query string) domain.RoutingResult {
	lower := strings.ToLower(query)

	// Critical triggers short-circuit everything else.
	var critical []string
	for _, phrase := range r.catalog.Critical {
		if strings.Contains(lower, phrase) {
			critical = append(critical, phrase)
		}
	}
	if len(critical) > 0 {
		return r.criticalResult(critical)
	}

	matched := make(map[string][]string)
	for _, name := range r.catalog.DomainNames() {
		dt := r.catalog.Domains[name]
		for _, phrase := range dt.Triggers {
			if strings.Contains(lower, phrase) {
				matched[name] = append(matched[name], phrase)
			}
		}
	}

	confidence, breakdown := r.scoreDomains(matched)
	domainsMatched := len(matched)

	agents := []string{agentDev}
	for name := range matched {
		agents = append(agents, name)
	}

	var mode domain.RoutingMode
	var reason string
	downgraded := false

	switch {
	case domainsMatched >= 3 && confidence >= r.escalation:
		mode = domain.ModeCritical
		agents = append(agents, agentDirector)
		reason = fmt.Sprintf("Escalation: %d domains, confidence=%.2f -> CRITICAL", domainsMatched, confidence)
	case domainsMatched >= 3:
		mode = domain.ModeStandard
		downgraded = true
		reason = fmt.Sprintf("Downgrade: %d domains but confidence=%.2f < %.2f -> STANDARD", domainsMatched, confidence, r.escalation)
	case domainsMatched == 2:
		mode = domain.ModeStandard
		reason = fmt.Sprintf("Escalation: %d domains -> STANDARD", domainsMatched)
	case domainsMatched == 1:
		mode = domain.ModeStandard
		reason = "Single domain matched -> STANDARD"
	default:
		mode = domain.ModeFast
		// The router is fully certain about doing nothing special.
		confidence = 1.0
		reason = "No specific triggers, using FAST mode"
	}

	if len(matched) > 0 {
		reason = fmt.Sprintf("%s | Matched: %s", reason, summarizeTriggers(matched))
	}

	sort.Strings(agents)
	return domain.RoutingResult{
		Mode:            mode,
		Agents:          agents,
		TriggersMatched: matched,
		DomainsMatched:  domainsMatched,
		Confidence:      confidence,
		Breakdown:       breakdown,
		Downgraded:      downgraded,
		Reason:          reason,
	}
}

// criticalResult escalates to all known domains plus dev and director.
func (r *Router) criticalResult(triggers []string) domain.RoutingResult {
	agents := append(r.catalog.DomainNames(), agentDev, agentDirector)
	sort.Strings(agents)

	breakdown := map[string]domain.DomainScore{
		"critical": {
			Score:  1.0,
			Strong: triggers,
			Weak:   []string{},
			Reason: "CRITICAL always max",
		},
	}
	return domain.RoutingResult{
		Mode:            domain.ModeCritical,
		Agents:          agents,
		TriggersMatched: map[string][]string{"critical": triggers},
		DomainsMatched:  1,
		Confidence:      1.0,
		Breakdown:       breakdown,
		Downgraded:      false,
		Reason:          fmt.Sprintf("CRITICAL triggers: %v", triggers),
	}
}

// scoreDomains computes the per-domain breakdown and overall confidence.
// Strong matches dominate: 0.8 base plus 0.1 per strong trigger capped
// at +0.2. Weak-only matches score 0.4 plus 0.1 per trigger capped at
// +0.2. A match in neither list scores a neutral 0.5. Overall
// confidence is the arithmetic mean rounded to two decimals.
func (r *Router) scoreDomains(matched map[string][]string) (float64, map[string]domain.DomainScore) {
	breakdown := make(map[string]domain.DomainScore, len(matched))
	if len(matched) == 0 {
		return 0.0, breakdown
	}

	var sum float64
	for name, triggers := range matched {
		dt := r.catalog.Domains[name]
		strong := filterByList(triggers, dt.Strong)
		weak := filterByList(triggers, dt.Weak)

		var score float64
		var reason string
		switch {
		case len(strong) > 0:
			score = 0.8 + math.Min(float64(len(strong))*0.1, 0.2)
			reason = fmt.Sprintf("%d strong trigger(s)", len(strong))
		case len(weak) > 0:
			score = 0.4 + math.Min(float64(len(weak))*0.1, 0.2)
			reason = fmt.Sprintf("%d weak trigger(s)", len(weak))
		default:
			score = 0.5
			reason = "unknown trigger strength"
		}

		sum += score
		breakdown[name] = domain.DomainScore{
			Score:  score,
			Strong: strong,
			Weak:   weak,
			Reason: reason,
		}
	}

	mean := sum / float64(len(matched))
	return math.Round(mean*100) / 100, breakdown
}

func filterByList(triggers, list []string) []string {
	set := make(map[string]bool, len(list))
	for _, item := range list {
		set[item] = true
	}
	out := []string{}
	for _, t := range triggers {
		if set[t] {
			out = append(out, t)
		}
	}
	return out
}

func summarizeTriggers(matched map[string][]string) string {
	names := make([]string, 0, len(matched))
	for name := range matched {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		triggers := matched[name]
		if len(triggers) > 2 {
			triggers = triggers[:2]
		}
		parts = append(parts, fmt.Sprintf("%s: %v", name, triggers))
	}
	return strings.Join(parts, ", ")
}

// ToEvent derives a loggable DecisionEvent from a routing result.
func ToEvent(res domain.RoutingResult) domain.DecisionEvent {
	conf := res.Confidence
	return domain.DecisionEvent{
		Type:       "routing_decision",
		Decision:   string(res.Mode),
		NextStep:   fmt.Sprintf("dispatch agents: %s", strings.Join(res.Agents, ",")),
		Confidence: &conf,
	}
}
