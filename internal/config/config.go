// Package config loads the trigger catalog and pipeline thresholds.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/anthropics/consilium-engine/internal/domain"
)

// DomainTriggers holds the phrase lists for one routing domain.
// Strong and Weak must be subsets of Triggers.
type DomainTriggers struct {
	Triggers []string `yaml:"triggers"`
	Strong   []string `yaml:"strong"`
	Weak     []string `yaml:"weak"`
}

// Catalog is the immutable trigger catalog. Loaded once at startup and
// passed by reference into the router; never mutated at runtime.
type Catalog struct {
	Critical []string                  `yaml:"critical"`
	Domains  map[string]DomainTriggers `yaml:"domains"`
}

// DomainNames returns the non-critical domain names in sorted order.
func (c *Catalog) DomainNames() []string {
	names := make([]string, 0, len(c.Domains))
	for name := range c.Domains {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Thresholds holds the tunable analysis constants. The defaults mirror
// the historical values; they are exposed as configuration rather than
// literals but are not a target for adjustment without evidence.
type Thresholds struct {
	StabilityBand  float64 `yaml:"stability_band"`   // |w5-w20| band for STABLE
	DriftBand      float64 `yaml:"drift_band"`       // per-metric degrade/improve band
	StaleAfterSec  float64 `yaml:"stale_after_sec"`  // no-change window before stale
	LowScoreLimit  float64 `yaml:"low_score_limit"`  // per-event quality floor
	EscalationConf float64 `yaml:"escalation_conf"`  // multi-domain CRITICAL bar
	MinStabilityN  int     `yaml:"min_stability_n"`  // events required for w5/w20
	MaxLedgerBytes int64   `yaml:"max_ledger_bytes"` // rotation threshold
}

// Config is the full pipeline configuration.
type Config struct {
	Catalog    *Catalog   `yaml:"catalog"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{Catalog: DefaultCatalog()}
	cfg.applyDefaults()
	return cfg
}

// Load reads a YAML config file, applies defaults, and validates.
// An absent catalog section falls back to the built-in catalog.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	if cfg.Catalog == nil || len(cfg.Catalog.Domains) == 0 {
		cfg.Catalog = DefaultCatalog()
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Thresholds.StabilityBand == 0 {
		c.Thresholds.StabilityBand = 0.03
	}
	if c.Thresholds.DriftBand == 0 {
		c.Thresholds.DriftBand = 0.1
	}
	if c.Thresholds.StaleAfterSec == 0 {
		c.Thresholds.StaleAfterSec = 3600
	}
	if c.Thresholds.LowScoreLimit == 0 {
		c.Thresholds.LowScoreLimit = 0.6
	}
	if c.Thresholds.EscalationConf == 0 {
		c.Thresholds.EscalationConf = 0.7
	}
	if c.Thresholds.MinStabilityN == 0 {
		c.Thresholds.MinStabilityN = 5
	}
	if c.Thresholds.MaxLedgerBytes == 0 {
		c.Thresholds.MaxLedgerBytes = 5 * 1024 * 1024
	}
}

// Validate checks catalog integrity and threshold sanity. Configuration
// problems fail fast; this is the only part of the pipeline allowed to.
func (c *Config) Validate() error {
	var problems []string

	if c.Catalog == nil || len(c.Catalog.Domains) == 0 {
		problems = append(problems, "catalog requires at least one domain")
	}
	if len(c.Catalog.Critical) == 0 {
		problems = append(problems, "catalog critical trigger list is empty")
	}
	for name, dt := range c.Catalog.Domains {
		if len(dt.Triggers) == 0 {
			problems = append(problems, fmt.Sprintf("domain %q has no triggers", name))
		}
		all := make(map[string]bool, len(dt.Triggers))
		for _, t := range dt.Triggers {
			all[t] = true
		}
		for _, s := range dt.Strong {
			if !all[s] {
				problems = append(problems, fmt.Sprintf("domain %q strong trigger %q is not in the trigger list", name, s))
			}
		}
		for _, w := range dt.Weak {
			if !all[w] {
				problems = append(problems, fmt.Sprintf("domain %q weak trigger %q is not in the trigger list", name, w))
			}
		}
	}

	t := c.Thresholds
	if t.StabilityBand < 0 || t.DriftBand < 0 || t.StaleAfterSec < 0 {
		problems = append(problems, "thresholds must be non-negative")
	}
	if t.LowScoreLimit < 0 || t.LowScoreLimit > 1 {
		problems = append(problems, "low_score_limit must be in [0,1]")
	}
	if t.EscalationConf < 0 || t.EscalationConf > 1 {
		problems = append(problems, "escalation_conf must be in [0,1]")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
