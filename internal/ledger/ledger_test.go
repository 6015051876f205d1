package ledger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/consilium-engine/internal/domain"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decision_events.log")
	return New(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func f(v float64) *float64 { return &v }

func testEvent(decision string) domain.DecisionEvent {
	return domain.DecisionEvent{
		Type:       "director_decision",
		Decision:   decision,
		NextStep:   "ship it",
		Confidence: f(0.85),
	}
}

func TestAppend_FillsIdentityFields(t *testing.T) {
	l := newTestLedger(t)

	ok, err := l.Append(testEvent("approve"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if !ok {
		t.Fatal("expected event appended")
	}

	events, err := Load(l.Path, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.EventID == "" {
		t.Error("expected event_id filled")
	}
	if ev.SchemaVersion != SchemaVersion {
		t.Errorf("expected schema_version %s, got %s", SchemaVersion, ev.SchemaVersion)
	}
	if ev.TS == 0 {
		t.Error("expected ts filled")
	}
	if ev.EventID != ev.ComputeEventID() {
		t.Error("expected stored event_id to match computed identity")
	}
}

func TestAppend_SuppressesRecentDuplicate(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Append(testEvent("approve")); err != nil {
		t.Fatalf("append: %v", err)
	}
	ok, err := l.Append(testEvent("approve"))
	if err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	if ok {
		t.Fatal("expected duplicate suppressed")
	}

	events, _ := Load(l.Path, 0)
	if len(events) != 1 {
		t.Fatalf("expected 1 event after duplicate append, got %d", len(events))
	}
}

func TestAppend_RejectsInvalidEvent(t *testing.T) {
	l := newTestLedger(t)

	ev := testEvent("approve")
	ev.NextStep = "   "
	if _, err := l.Append(ev); err == nil {
		t.Fatal("expected blank next_step rejected")
	}

	ev = testEvent("approve")
	ev.Confidence = f(1.5)
	if _, err := l.Append(ev); err == nil {
		t.Fatal("expected out-of-range confidence rejected")
	}
}

func TestAppend_RotatesPastSizeCap(t *testing.T) {
	l := newTestLedger(t)
	l.MaxBytes = 256

	for i := 0; i < 10; i++ {
		if _, err := l.Append(testEvent(fmt.Sprintf("decision %d", i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		// Distinct rotation filenames need distinct timestamps.
		base := time.Now().Add(time.Duration(i) * time.Second)
		l.now = func() time.Time { return base }
	}

	dir := filepath.Dir(l.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	rotated := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "decision_events_") {
			rotated++
		}
	}
	if rotated == 0 {
		t.Fatal("expected at least one rotated log file")
	}

	info, err := os.Stat(l.Path)
	if err != nil {
		t.Fatalf("stat live log: %v", err)
	}
	if info.Size() > 2*l.MaxBytes {
		t.Errorf("live log grew past rotation bound: %d bytes", info.Size())
	}
}

func TestBackfill_FillsMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	raw := strings.Join([]string{
		`{"type":"director_decision","decision":"approve","next_step":"merge","confidence":0.9}`,
		`not json at all`,
		`{"type":"routing_decision","decision":"FAST","next_step":"dispatch","event_id":"keep-me","schema_version":"0.9"}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	if err := Backfill(path); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	out, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"event_id"`) || !strings.Contains(lines[0], `"schema_version":"1.0"`) {
		t.Errorf("expected first line backfilled, got %s", lines[0])
	}
	if lines[1] != "not json at all" {
		t.Errorf("expected unparsable line verbatim, got %s", lines[1])
	}
	if !strings.Contains(lines[2], `"event_id":"keep-me"`) || !strings.Contains(lines[2], `"schema_version":"0.9"`) {
		t.Errorf("expected existing fields preserved, got %s", lines[2])
	}
}

func TestBackfill_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	raw := strings.Join([]string{
		`{"type":"director_decision","decision":"approve","next_step":"merge","confidence":0.9}`,
		`broken { line`,
		`{"type":"director_decision","decision":"hold","next_step":"review","score":0.4}`,
	}, "\n") + "\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	if err := Backfill(path); err != nil {
		t.Fatalf("first backfill: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after first: %v", err)
	}

	if err := Backfill(path); err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read after second: %v", err)
	}

	if string(first) != string(second) {
		t.Fatal("expected second backfill to be byte-identical")
	}
}

func TestBackfill_MissingFileIsNoData(t *testing.T) {
	if err := Backfill(filepath.Join(t.TempDir(), "absent.log")); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}

func TestBackfill_IDMatchesTypedComputation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	line := `{"type":"director_decision","decision":"  approve   now ","next_step":"merge","confidence":0.9}` + "\n"
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	if err := Backfill(path); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	events, err := Load(path, 0)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := domain.DecisionEvent{
		Type:       "director_decision",
		Decision:   "approve now",
		NextStep:   "merge",
		Confidence: f(0.9),
	}.ComputeEventID()
	if events[0].EventID != want {
		t.Errorf("expected backfilled id %s, got %s", want, events[0].EventID)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	events, err := Load(filepath.Join(t.TempDir(), "absent.log"), 0)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestRead_Aggregates(t *testing.T) {
	l := newTestLedger(t)
	decisions := []struct {
		decision string
		conf     float64
	}{
		{"approve", 0.9},
		{"approve", 0.9}, // duplicate, suppressed
		{"hold", 0.5},
		{"reject", 0.1},
		{"escalate", 0.7},
	}
	for _, d := range decisions {
		ev := testEvent(d.decision)
		ev.Confidence = f(d.conf)
		if _, err := l.Append(ev); err != nil {
			t.Fatalf("append %s: %v", d.decision, err)
		}
	}

	report, err := Read(l.Path, ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if report.Events != 4 {
		t.Fatalf("expected 4 events after dedupe, got %d", report.Events)
	}
	if report.Confidence == nil {
		t.Fatal("expected confidence stats")
	}
	if report.Confidence.Min != 0.1 || report.Confidence.Max != 0.9 {
		t.Errorf("expected min 0.1 max 0.9, got %f/%f", report.Confidence.Min, report.Confidence.Max)
	}
	// median of [0.1 0.5 0.7 0.9] = 0.6
	if report.Confidence.Median != 0.6 {
		t.Errorf("expected median 0.6, got %f", report.Confidence.Median)
	}
	if got := report.Buckets["0.8-1.0"]; got != 1 {
		t.Errorf("expected one event in 0.8-1.0, got %d", got)
	}
	if got := report.Buckets["0.0-0.2"]; got != 1 {
		t.Errorf("expected one event in 0.0-0.2, got %d", got)
	}
}

func TestRead_TypeFilterAndTail(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 3; i++ {
		ev := testEvent(fmt.Sprintf("d%d", i))
		if _, err := l.Append(ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	other := testEvent("routed")
	other.Type = "routing_decision"
	if _, err := l.Append(other); err != nil {
		t.Fatalf("append: %v", err)
	}

	report, err := Read(l.Path, ReadOptions{Type: "routing_decision"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if report.Events != 1 {
		t.Fatalf("expected 1 routing event, got %d", report.Events)
	}

	report, err = Read(l.Path, ReadOptions{Tail: 2})
	if err != nil {
		t.Fatalf("read tail: %v", err)
	}
	if report.Events != 2 {
		t.Fatalf("expected tail of 2, got %d", report.Events)
	}
}
