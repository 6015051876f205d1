package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/consilium-engine/internal/domain"
)

// topN bounds the decision/next_step frequency lists.
const topN = 5

// confBuckets are the fixed histogram bucket edges.
var confBuckets = []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0}

// ReadOptions filters a windowed ledger read.
type ReadOptions struct {
	Type       string  // event type filter; empty matches all
	SinceHours float64 // lookback window; 0 disables
	Tail       int     // only the last N lines; 0 disables
}

// CountItem is a frequency entry in a report.
type CountItem struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// ConfidenceStats summarizes the confidence distribution.
type ConfidenceStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Report is the aggregate over a ledger window.
type Report struct {
	Events       int              `json:"events"`
	TopDecisions []CountItem      `json:"top_decisions"`
	TopNextSteps []CountItem      `json:"top_next_steps"`
	Confidence   *ConfidenceStats `json:"confidence"`
	Buckets      map[string]int   `json:"confidence_buckets,omitempty"`
}

// Load reads and parses ledger events, skipping malformed lines.
// A missing file yields an empty slice, not an error.
func Load(path string, tail int) ([]domain.DecisionEvent, error) {
	lines, err := readLines(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if tail > 0 && len(lines) > tail {
		lines = lines[len(lines)-tail:]
	}

	var events []domain.DecisionEvent
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ev domain.DecisionEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Read loads the window described by opts and aggregates it.
// File order is assumed roughly time-ordered, but out-of-order
// timestamps are tolerated; the cutoff filter inspects each event.
func Read(path string, opts ReadOptions) (*Report, error) {
	events, err := Load(path, opts.Tail)
	if err != nil {
		return nil, err
	}

	var cutoff float64
	if opts.SinceHours > 0 {
		cutoff = float64(time.Now().Unix()) - opts.SinceHours*3600
	}

	decisions := map[string]int{}
	nextSteps := map[string]int{}
	var confidences []float64
	kept := 0

	for _, ev := range events {
		if opts.Type != "" && ev.Type != opts.Type {
			continue
		}
		if cutoff > 0 && ev.TS < cutoff {
			continue
		}
		kept++
		if d := strings.TrimSpace(ev.Decision); d != "" {
			decisions[d]++
		}
		if n := strings.TrimSpace(ev.NextStep); n != "" {
			nextSteps[n]++
		}
		if ev.Confidence != nil {
			confidences = append(confidences, *ev.Confidence)
		}
	}

	report := &Report{
		Events:       kept,
		TopDecisions: topItems(decisions),
		TopNextSteps: topItems(nextSteps),
	}
	if len(confidences) > 0 {
		report.Confidence = confStats(confidences)
		report.Buckets = bucketize(confidences)
	}
	return report, nil
}

// topItems orders by count descending, then text ascending.
func topItems(counts map[string]int) []CountItem {
	items := make([]CountItem, 0, len(counts))
	for text, count := range counts {
		items = append(items, CountItem{Text: text, Count: count})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Text < items[j].Text
	})
	if len(items) > topN {
		items = items[:topN]
	}
	return items
}

func confStats(values []float64) *ConfidenceStats {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}
	return &ConfidenceStats{
		Min:    round2(sorted[0]),
		Max:    round2(sorted[len(sorted)-1]),
		Mean:   round2(sum / float64(len(sorted))),
		Median: round2(median),
	}
}

// bucketize counts confidences into the fixed five buckets
// [0,0.2], (0.2,0.4], (0.4,0.6], (0.6,0.8], (0.8,1.0].
func bucketize(values []float64) map[string]int {
	buckets := make(map[string]int, len(confBuckets)-1)
	for i := 1; i < len(confBuckets); i++ {
		buckets[bucketLabel(i)] = 0
	}
	for _, v := range values {
		for i := 1; i < len(confBuckets); i++ {
			if v <= confBuckets[i] {
				buckets[bucketLabel(i)]++
				break
			}
		}
	}
	return buckets
}

func bucketLabel(i int) string {
	return fmt.Sprintf("%.1f-%.1f", confBuckets[i-1], confBuckets[i])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
