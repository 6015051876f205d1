// Package temporal detects stability and drift in decision history.
package temporal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/anthropics/consilium-engine/internal/domain"
)

// LoadTimeline reads an intelligence-snapshot timeline from a JSONL
// file. Malformed lines are skipped; a missing file yields an empty
// timeline. Snapshots are returned sorted by timestamp ascending.
func LoadTimeline(path string) ([]domain.IntelligenceSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open timeline: %w", err)
	}
	defer f.Close()

	var snaps []domain.IntelligenceSnapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var snap domain.IntelligenceSnapshot
		if err := json.Unmarshal(line, &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan timeline: %w", err)
	}

	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].TS < snaps[j].TS })
	return snaps, nil
}

// AppendSnapshot appends one snapshot record to the timeline file,
// creating parent directories as needed. A zero timestamp is filled
// with the current time.
func AppendSnapshot(path string, snap domain.IntelligenceSnapshot) error {
	if snap.TS == 0 {
		snap.TS = float64(time.Now().UnixNano()) / float64(time.Second)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create timeline dir: %w", err)
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open timeline: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append snapshot: %w", err)
	}
	return nil
}
