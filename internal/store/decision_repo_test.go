package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedLog(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}
	return path
}

func eventLine(id string, score float64, decision, nextStep string) string {
	return fmt.Sprintf(
		`{"event_id":%q,"ts":%d,"type":"director_decision","decision":%q,"next_step":%q,"confidence":0.8,"score":%v,"schema_version":"1.0"}`,
		id, 1700000000+len(id), decision, nextStep, score)
}

func TestExportLog_InsertsAndSkips(t *testing.T) {
	db := newTestDB(t)
	logPath := seedLog(t, []string{
		eventLine("ev-1", 0.9, "approve", "merge"),
		eventLine("ev-2", 0.5, "hold", "review"),
		`{"type":"director_decision","decision":"no id","next_step":"skip me"}`,
		`broken json line`,
	})

	repo := &DecisionRepo{}
	res, err := repo.ExportLog(context.Background(), db, logPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Inserted != 2 {
		t.Errorf("expected 2 inserted, got %d", res.Inserted)
	}
	if res.Skipped != 1 {
		t.Errorf("expected 1 skipped (no event_id), got %d", res.Skipped)
	}
	if res.Total != 2 {
		t.Errorf("expected 2 rows total, got %d", res.Total)
	}
}

func TestExportLog_IdempotentRerun(t *testing.T) {
	db := newTestDB(t)
	logPath := seedLog(t, []string{
		eventLine("ev-1", 0.9, "approve", "merge"),
		eventLine("ev-2", 0.5, "hold", "review"),
	})

	repo := &DecisionRepo{}
	ctx := context.Background()
	if _, err := repo.ExportLog(ctx, db, logPath); err != nil {
		t.Fatalf("first export: %v", err)
	}
	res, err := repo.ExportLog(ctx, db, logPath)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if res.Inserted != 0 {
		t.Errorf("expected 0 inserted on rerun, got %d", res.Inserted)
	}
	if res.Total != 2 {
		t.Errorf("expected 2 rows total after rerun, got %d", res.Total)
	}
}

func TestSummarize(t *testing.T) {
	db := newTestDB(t)
	logPath := seedLog(t, []string{
		eventLine("ev-1", 0.9, "approve", "merge"),
		eventLine("ev-2", 0.5, "hold", "review"),
		eventLine("ev-3", 0.4, "reject", "review"),
	})
	repo := &DecisionRepo{}
	ctx := context.Background()
	if _, err := repo.ExportLog(ctx, db, logPath); err != nil {
		t.Fatalf("export: %v", err)
	}

	s, err := repo.Summarize(ctx, db, 0.6)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if s.Total != 3 {
		t.Errorf("expected 3 events, got %d", s.Total)
	}
	if !s.AvgScore.Valid || s.AvgScore.Float64 < 0.59 || s.AvgScore.Float64 > 0.61 {
		t.Errorf("expected avg score ~0.6, got %+v", s.AvgScore)
	}
	if len(s.TopNextSteps) == 0 || s.TopNextSteps[0].Text != "review" || s.TopNextSteps[0].Count != 2 {
		t.Errorf("expected top next step review x2, got %+v", s.TopNextSteps)
	}
	if len(s.LowScore) != 2 {
		t.Errorf("expected 2 low score events, got %d", len(s.LowScore))
	}
}

func TestGuard_AverageBelowThreshold(t *testing.T) {
	db := newTestDB(t)
	logPath := seedLog(t, []string{
		eventLine("ev-1", 0.5, "hold", "review"),
		eventLine("ev-2", 0.5, "hold", "review again"),
		eventLine("ev-3", 0.5, "hold", "review more"),
	})
	repo := &DecisionRepo{}
	ctx := context.Background()
	if _, err := repo.ExportLog(ctx, db, logPath); err != nil {
		t.Fatalf("export: %v", err)
	}

	res, err := repo.Guard(ctx, db, 0.9, -1)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	if res.Pass {
		t.Fatal("expected guard failure on avg 0.5 vs threshold 0.9")
	}
	if !res.AvgBelow {
		t.Error("expected AvgBelow set")
	}
}

func TestGuard_LowScoreEvent(t *testing.T) {
	db := newTestDB(t)
	logPath := seedLog(t, []string{
		eventLine("ev-1", 0.9, "approve", "merge"),
		eventLine("ev-2", 0.3, "reject", "rework"),
	})
	repo := &DecisionRepo{}
	ctx := context.Background()
	if _, err := repo.ExportLog(ctx, db, logPath); err != nil {
		t.Fatalf("export: %v", err)
	}

	res, err := repo.Guard(ctx, db, -1, 0.4)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	if res.Pass {
		t.Fatal("expected guard failure on low score event")
	}
	if !res.LowScoreFound {
		t.Error("expected LowScoreFound set")
	}
}

func TestGuard_Passes(t *testing.T) {
	db := newTestDB(t)
	logPath := seedLog(t, []string{
		eventLine("ev-1", 0.9, "approve", "merge"),
		eventLine("ev-2", 0.8, "approve", "merge next"),
	})
	repo := &DecisionRepo{}
	ctx := context.Background()
	if _, err := repo.ExportLog(ctx, db, logPath); err != nil {
		t.Fatalf("export: %v", err)
	}

	res, err := repo.Guard(ctx, db, 0.6, 0.5)
	if err != nil {
		t.Fatalf("guard: %v", err)
	}
	if !res.Pass {
		t.Fatalf("expected guard pass, got %+v", res)
	}
}
