package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anthropics/consilium-engine/internal/domain"
	"github.com/anthropics/consilium-engine/internal/ledger"
)

// DecisionRepo handles persistence for exported DecisionEvent records.
type DecisionRepo struct{}

// ExportResult summarizes an export run.
type ExportResult struct {
	Read     int
	Inserted int
	Skipped  int // lines without an event_id
	Total    int // rows in the table after export
}

// ExportLog projects ledger events into the decision_events table.
// INSERT OR IGNORE keyed by event_id makes the operation idempotent:
// re-running after a partial failure never double-counts. Lines
// without an event_id are skipped (backfill fills them first).
func (r *DecisionRepo) ExportLog(ctx context.Context, db *sql.DB, logPath string) (*ExportResult, error) {
	events, err := ledger.Load(logPath, 0)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const q = `INSERT OR IGNORE INTO decision_events
(event_id, ts, type, decision, next_step, confidence, score, risk_level, schema_version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result := &ExportResult{Read: len(events)}
	for _, ev := range events {
		if ev.EventID == "" {
			result.Skipped++
			continue
		}
		res, err := tx.ExecContext(ctx, q,
			ev.EventID,
			ev.TS,
			ev.Type,
			ev.Decision,
			ev.NextStep,
			nullFloat(ev.Confidence),
			nullFloat(ev.Score),
			nullString(ev.RiskLevel),
			ev.SchemaVersion,
		)
		if err != nil {
			return nil, domain.WrapEngineError(domain.ErrStoreWrite.Code, "insert event", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			result.Inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit export: %w", err)
	}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision_events`).Scan(&result.Total); err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "count events", err)
	}
	return result, nil
}

// LowScoreEvent is a flagged row in the dashboard summary.
type LowScoreEvent struct {
	TS       float64
	EventID  string
	Score    float64
	Decision string
}

// Summary is the queryable-store dashboard view.
type Summary struct {
	Total         int
	AvgScore      sql.NullFloat64
	AvgConfidence sql.NullFloat64
	TopNextSteps  []ledger.CountItem
	LowScore      []LowScoreEvent
}

// Summarize computes dashboard aggregates. lowScoreLimit bounds the
// flagged-events list, not the guard.
func (r *DecisionRepo) Summarize(ctx context.Context, db *sql.DB, lowScoreLimit float64) (*Summary, error) {
	s := &Summary{}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision_events`).Scan(&s.Total); err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "count events", err)
	}
	if err := db.QueryRowContext(ctx,
		`SELECT AVG(score), AVG(confidence) FROM decision_events`).Scan(&s.AvgScore, &s.AvgConfidence); err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "average metrics", err)
	}

	rows, err := db.QueryContext(ctx, `
SELECT next_step, COUNT(*) AS cnt
FROM decision_events
WHERE next_step IS NOT NULL AND TRIM(next_step) != ''
GROUP BY next_step
ORDER BY cnt DESC, next_step ASC
LIMIT 5`)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "top next steps", err)
	}
	defer rows.Close()
	for rows.Next() {
		var item ledger.CountItem
		if err := rows.Scan(&item.Text, &item.Count); err != nil {
			return nil, fmt.Errorf("scan next_step row: %w", err)
		}
		s.TopNextSteps = append(s.TopNextSteps, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lowRows, err := db.QueryContext(ctx, `
SELECT ts, event_id, score, decision
FROM decision_events
WHERE score IS NOT NULL AND score < ?
ORDER BY ts DESC
LIMIT 3`, lowScoreLimit)
	if err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "low score events", err)
	}
	defer lowRows.Close()
	for lowRows.Next() {
		var ev LowScoreEvent
		if err := lowRows.Scan(&ev.TS, &ev.EventID, &ev.Score, &ev.Decision); err != nil {
			return nil, fmt.Errorf("scan low score row: %w", err)
		}
		s.LowScore = append(s.LowScore, ev)
	}
	return s, lowRows.Err()
}

// GuardResult is the binary automation-gate outcome.
type GuardResult struct {
	Pass          bool
	AvgScore      sql.NullFloat64
	AvgBelow      bool
	LowScoreFound bool
}

// Guard fails when the average score is below failBelowAvg, or when
// any single event's score is below failBelowScore. Either threshold
// may be NaN-disabled by passing a negative value.
func (r *DecisionRepo) Guard(ctx context.Context, db *sql.DB, failBelowAvg, failBelowScore float64) (*GuardResult, error) {
	res := &GuardResult{Pass: true}

	if err := db.QueryRowContext(ctx,
		`SELECT AVG(score) FROM decision_events WHERE score IS NOT NULL`).Scan(&res.AvgScore); err != nil {
		return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "average score", err)
	}

	if failBelowAvg >= 0 && res.AvgScore.Valid && res.AvgScore.Float64 < failBelowAvg {
		res.AvgBelow = true
		res.Pass = false
	}

	if failBelowScore >= 0 {
		var one int
		err := db.QueryRowContext(ctx,
			`SELECT 1 FROM decision_events WHERE score IS NOT NULL AND score < ? LIMIT 1`,
			failBelowScore).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
		case err != nil:
			return nil, domain.WrapEngineError(domain.ErrStoreQuery.Code, "low score probe", err)
		default:
			res.LowScoreFound = true
			res.Pass = false
		}
	}
	return res, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
