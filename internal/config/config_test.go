package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/anthropics/consilium-engine/internal/domain"
)

func TestDefault_ThresholdsAndCatalog(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("built-in config must validate: %v", err)
	}

	th := cfg.Thresholds
	if th.StabilityBand != 0.03 || th.DriftBand != 0.1 || th.StaleAfterSec != 3600 {
		t.Errorf("unexpected analysis thresholds: %+v", th)
	}
	if th.LowScoreLimit != 0.6 || th.EscalationConf != 0.7 || th.MinStabilityN != 5 {
		t.Errorf("unexpected quality thresholds: %+v", th)
	}
	if th.MaxLedgerBytes != 5*1024*1024 {
		t.Errorf("unexpected rotation threshold: %d", th.MaxLedgerBytes)
	}

	if len(cfg.Catalog.Critical) == 0 {
		t.Error("critical phrase list must not be empty")
	}
	if len(cfg.Catalog.Domains) != 5 {
		t.Errorf("expected 5 routing domains, got %d", len(cfg.Catalog.Domains))
	}
	for _, name := range []string{"security", "architect", "qa", "seo", "ux"} {
		if _, ok := cfg.Catalog.Domains[name]; !ok {
			t.Errorf("missing domain %q", name)
		}
	}
}

func TestLoad_OverridesThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
thresholds:
  drift_band: 0.2
  low_score_limit: 0.5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Thresholds.DriftBand != 0.2 || cfg.Thresholds.LowScoreLimit != 0.5 {
		t.Errorf("overrides not applied: %+v", cfg.Thresholds)
	}
	// Untouched fields keep their defaults, and the built-in catalog
	// fills in when the file has none.
	if cfg.Thresholds.StabilityBand != 0.03 {
		t.Errorf("default lost: %+v", cfg.Thresholds)
	}
	if len(cfg.Catalog.Domains) == 0 {
		t.Error("expected built-in catalog fallback")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - ["), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate_StrongTriggerMustBeListed(t *testing.T) {
	cfg := Default()
	cfg.Catalog = &Catalog{
		Critical: []string{"emergency"},
		Domains: map[string]DomainTriggers{
			"security": {
				Triggers: []string{"auth"},
				Strong:   []string{"vulnerability"}, // not in Triggers
			},
		},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
	var engErr *domain.EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("expected EngineError, got %T", err)
	}
	if engErr.Code != domain.ErrConfigInvalid.Code {
		t.Errorf("got code %d", engErr.Code)
	}
}

func TestValidate_ThresholdRanges(t *testing.T) {
	cfg := Default()
	cfg.Thresholds.LowScoreLimit = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected failure for low_score_limit out of range")
	}

	cfg = Default()
	cfg.Thresholds.DriftBand = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected failure for negative drift_band")
	}
}

func TestCatalog_DomainNamesSorted(t *testing.T) {
	names := Default().Catalog.DomainNames()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestDefaultCatalog_SubsetsConsistent(t *testing.T) {
	cat := DefaultCatalog()
	for name, dt := range cat.Domains {
		all := make(map[string]bool, len(dt.Triggers))
		for _, tr := range dt.Triggers {
			all[tr] = true
		}
		for _, s := range dt.Strong {
			if !all[s] {
				t.Errorf("domain %s: strong %q missing from triggers", name, s)
			}
		}
		for _, w := range dt.Weak {
			if !all[w] {
				t.Errorf("domain %s: weak %q missing from triggers", name, w)
			}
		}
	}
}
