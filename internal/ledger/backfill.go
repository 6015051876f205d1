package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Backfill fills missing event_id and schema_version fields across the
// whole log. Lines that do not parse as JSON objects are copied through
// verbatim. The rewrite goes to a temp file that atomically replaces
// the log, and the pass is idempotent: a second run produces
// byte-identical output.
//
// A missing log file is "no data", not an error.
func Backfill(path string) error {
	lines, err := readLines(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	defer f.Close()

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil || record == nil {
			// Fail-soft: unparsable lines pass through untouched.
			if _, err := fmt.Fprintln(f, line); err != nil {
				return fmt.Errorf("write temp ledger: %w", err)
			}
			continue
		}

		if _, ok := record["event_id"]; !ok {
			record["event_id"] = eventIDFromRecord(record)
		}
		if _, ok := record["schema_version"]; !ok {
			record["schema_version"] = SchemaVersion
		}

		out, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal backfilled record: %w", err)
		}
		if _, err := f.Write(append(out, '\n')); err != nil {
			return fmt.Errorf("write temp ledger: %w", err)
		}
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// eventIDFromRecord hashes the identity tuple of a raw ledger record,
// matching DecisionEvent.ComputeEventID for typed events.
func eventIDFromRecord(record map[string]any) string {
	conf := ""
	switch v := record["confidence"].(type) {
	case float64:
		conf = fmt.Sprintf("%.4f", v)
	case string:
		conf = v
	}
	parts := []string{
		normalizeField(record["type"]),
		normalizeField(record["decision"]),
		normalizeField(record["next_step"]),
		conf,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func normalizeField(v any) string {
	s, _ := v.(string)
	return strings.Join(strings.Fields(s), " ")
}
