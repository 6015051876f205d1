// Package ledger manages the append-only decision event log.
//
// The log is newline-delimited JSON, one DecisionEvent per line.
// Existing lines are never rewritten; the only mutation is the explicit
// backfill pass, which fills missing fields and is idempotent.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/consilium-engine/internal/domain"
)

const (
	// SchemaVersion is stamped on every new event.
	SchemaVersion = "1.0"

	// tailCheckLines bounds the duplicate scan on append.
	tailCheckLines = 200

	// DefaultMaxBytes triggers log rotation.
	DefaultMaxBytes = 5 * 1024 * 1024
)

// Ledger is a file-backed decision event log.
type Ledger struct {
	Path     string
	MaxBytes int64
	Log      *slog.Logger

	now func() time.Time
}

// New creates a ledger over the given log path.
func New(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{Path: path, MaxBytes: DefaultMaxBytes, Log: logger, now: time.Now}
}

// Append writes one event to the log, filling event_id, schema_version,
// and ts when absent. Returns false without error when the event is a
// recent duplicate. Rotates the log first when it exceeds MaxBytes.
func (l *Ledger) Append(event domain.DecisionEvent) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.Path), 0o755); err != nil {
		return false, fmt.Errorf("create log dir: %w", err)
	}
	if err := l.rotateIfNeeded(); err != nil {
		return false, err
	}

	if event.EventID == "" {
		event.EventID = event.ComputeEventID()
	}
	if event.SchemaVersion == "" {
		event.SchemaVersion = SchemaVersion
	}
	event.TS = float64(l.now().UnixNano()) / 1e9

	if err := validate(event); err != nil {
		return false, err
	}

	dup, err := l.recentDuplicate(event.EventID)
	if err != nil {
		return false, err
	}
	if dup {
		l.Log.Debug("decision event skipped (duplicate)", "event_id", event.EventID)
		return false, nil
	}

	line, err := json.Marshal(event)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}

	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, domain.WrapEngineError(domain.ErrLedgerWrite.Code, "open ledger", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return false, domain.WrapEngineError(domain.ErrLedgerWrite.Code, "append event", err)
	}
	return true, nil
}

func validate(event domain.DecisionEvent) error {
	for name, value := range map[string]string{
		"event_id":       event.EventID,
		"type":           event.Type,
		"decision":       event.Decision,
		"next_step":      event.NextStep,
		"schema_version": event.SchemaVersion,
	} {
		if strings.TrimSpace(value) == "" {
			return domain.NewEngineError(domain.ErrEventInvalid.Code,
				fmt.Sprintf("decision event missing %s", name))
		}
	}
	if event.Confidence != nil && (*event.Confidence < 0 || *event.Confidence > 1) {
		return domain.NewEngineError(domain.ErrEventInvalid.Code, "confidence out of [0,1]")
	}
	if event.Score != nil && (*event.Score < 0 || *event.Score > 1) {
		return domain.NewEngineError(domain.ErrEventInvalid.Code, "score out of [0,1]")
	}
	return nil
}

// recentDuplicate scans the tail of the log for event_id.
func (l *Ledger) recentDuplicate(eventID string) (bool, error) {
	lines, err := readLines(l.Path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(lines) > tailCheckLines {
		lines = lines[len(lines)-tailCheckLines:]
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var ev struct {
			EventID string `json:"event_id"`
		}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.EventID == eventID {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) rotateIfNeeded() error {
	info, err := os.Stat(l.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	max := l.MaxBytes
	if max <= 0 {
		max = DefaultMaxBytes
	}
	if info.Size() <= max {
		return nil
	}

	base := strings.TrimSuffix(filepath.Base(l.Path), filepath.Ext(l.Path))
	rotated := filepath.Join(filepath.Dir(l.Path),
		fmt.Sprintf("%s_%s%s", base, l.now().Format("20060102_150405"), filepath.Ext(l.Path)))
	if err := os.Rename(l.Path, rotated); err != nil {
		return fmt.Errorf("rotate ledger: %w", err)
	}
	l.Log.Info("ledger rotated", "to", rotated, "bytes", info.Size())
	return nil
}

// readLines returns the file's lines without trailing newlines.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
