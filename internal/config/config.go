// Package config loads girder.yml project settings.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds project-level settings loaded from girder.yml.
type Config struct {
	IgnorePatterns []string          `yaml:"ignorePatterns,omitempty"`
	Enforcement    EnforcementConfig `yaml:"enforcement,omitempty"`
	Tier3          Tier3Config       `yaml:"tier3,omitempty"`
}

// EnforcementConfig controls which violations fire and how hard.
type EnforcementConfig struct {
	// PreExistingAsWarning downgrades E002/E003 on code that was
	// already in violation before the current change.
	PreExistingAsWarning bool `yaml:"preExistingAsWarning,omitempty"`
	// PlacementEnabled turns the W001 module-affinity check on.
	PlacementEnabled bool `yaml:"placementEnabled,omitempty"`
	// DuplicateEnabled turns the W002 duplicate-name check on.
	DuplicateEnabled bool `yaml:"duplicateEnabled,omitempty"`
	// LowConfidenceFloor is the edge confidence below which an E001
	// caller is reported as WARNING instead of ERROR.
	LowConfidenceFloor float64 `yaml:"lowConfidenceFloor,omitempty"`

	CircuitBreaker BreakerConfig     `yaml:"circuitBreaker,omitempty"`
	Batch          BatchConfig       `yaml:"batch,omitempty"`
	Placement      PlacementConfig   `yaml:"placement,omitempty"`
	Suppressions   []SuppressionRule `yaml:"suppressions,omitempty"`
	// PathOverrides maps path prefixes to per-path enforcement tweaks.
	PathOverrides []PathOverride `yaml:"pathOverrides,omitempty"`
}

// BreakerConfig tunes the per-(code, hash) escalation ladder.
type BreakerConfig struct {
	// MaxRetries is the consecutive-failure count at which severity is
	// auto-downgraded.
	MaxRetries    int  `yaml:"maxRetries,omitempty"`
	AutoDowngrade bool `yaml:"autoDowngrade,omitempty"`
}

// BatchConfig tunes the deferral window for quality violations.
type BatchConfig struct {
	// InactivitySeconds closes an open window after this much idle time.
	InactivitySeconds int `yaml:"inactivitySeconds,omitempty"`
}

// PlacementConfig carries the W001 affinity weights. The coefficients
// are a tuning surface, not a fixed contract.
type PlacementConfig struct {
	CalleeWeight    float64 `yaml:"calleeWeight,omitempty"`
	CallerWeight    float64 `yaml:"callerWeight,omitempty"`
	PrefixWeight    float64 `yaml:"prefixWeight,omitempty"`
	ForeignTypeCost float64 `yaml:"foreignTypeCost,omitempty"`
	Margin          float64 `yaml:"margin,omitempty"`
	MaxAlternatives int     `yaml:"maxAlternatives,omitempty"`
}

// SuppressionRule is a persistent, reason-carrying suppression.
type SuppressionRule struct {
	Code   string `yaml:"code"`
	Path   string `yaml:"path,omitempty"`
	Symbol string `yaml:"symbol,omitempty"`
	Reason string `yaml:"reason"`
}

// PathOverride adjusts enforcement for one subtree.
type PathOverride struct {
	Path                 string   `yaml:"path"`
	PreExistingAsWarning *bool    `yaml:"preExistingAsWarning,omitempty"`
	PlacementEnabled     *bool    `yaml:"placementEnabled,omitempty"`
	DuplicateEnabled     *bool    `yaml:"duplicateEnabled,omitempty"`
	LowConfidenceFloor   *float64 `yaml:"lowConfidenceFloor,omitempty"`
}

// Tier3Config configures the optional language-server fallback.
type Tier3Config struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// Commands maps language names to the server command line.
	Commands       map[string][]string `yaml:"commands,omitempty"`
	TimeoutSeconds int                 `yaml:"timeoutSeconds,omitempty"`
}

// Default returns the configuration used when girder.yml is absent.
func Default() *Config {
	return &Config{
		Enforcement: EnforcementConfig{
			PreExistingAsWarning: true,
			PlacementEnabled:     true,
			DuplicateEnabled:     true,
			LowConfidenceFloor:   0.80,
			CircuitBreaker:       BreakerConfig{MaxRetries: 3, AutoDowngrade: true},
			Batch:                BatchConfig{InactivitySeconds: 60},
			Placement: PlacementConfig{
				CalleeWeight:    0.35,
				CallerWeight:    0.35,
				PrefixWeight:    0.20,
				ForeignTypeCost: 0.10,
				Margin:          0.15,
				MaxAlternatives: 3,
			},
		},
		Tier3: Tier3Config{TimeoutSeconds: 2},
	}
}

// Load reads girder.yml or girder.yaml from the given directory and
// fills unset fields with defaults. A missing file yields the defaults,
// not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range []string{"girder.yml", "girder.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		break
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if c.Enforcement.LowConfidenceFloor == 0 {
		c.Enforcement.LowConfidenceFloor = def.Enforcement.LowConfidenceFloor
	}
	if c.Enforcement.CircuitBreaker.MaxRetries == 0 {
		c.Enforcement.CircuitBreaker = def.Enforcement.CircuitBreaker
	}
	if c.Enforcement.Batch.InactivitySeconds == 0 {
		c.Enforcement.Batch = def.Enforcement.Batch
	}
	if c.Enforcement.Placement.Margin == 0 {
		c.Enforcement.Placement = def.Enforcement.Placement
	}
	if c.Tier3.TimeoutSeconds == 0 {
		c.Tier3.TimeoutSeconds = def.Tier3.TimeoutSeconds
	}
}

// BatchWindow returns the batch inactivity window as a duration.
func (c *Config) BatchWindow() time.Duration {
	return time.Duration(c.Enforcement.Batch.InactivitySeconds) * time.Second
}

// Tier3Timeout returns the oracle deadline as a duration.
func (c *Config) Tier3Timeout() time.Duration {
	return time.Duration(c.Tier3.TimeoutSeconds) * time.Second
}

// ForPath returns the enforcement settings with any path override for
// file applied.
func (c *Config) ForPath(file string) EnforcementConfig {
	eff := c.Enforcement
	for _, o := range c.Enforcement.PathOverrides {
		if o.Path == "" || !pathHasPrefix(file, o.Path) {
			continue
		}
		if o.PreExistingAsWarning != nil {
			eff.PreExistingAsWarning = *o.PreExistingAsWarning
		}
		if o.PlacementEnabled != nil {
			eff.PlacementEnabled = *o.PlacementEnabled
		}
		if o.DuplicateEnabled != nil {
			eff.DuplicateEnabled = *o.DuplicateEnabled
		}
		if o.LowConfidenceFloor != nil {
			eff.LowConfidenceFloor = *o.LowConfidenceFloor
		}
	}
	return eff
}

func pathHasPrefix(file, prefix string) bool {
	file = filepath.ToSlash(file)
	prefix = filepath.ToSlash(prefix)
	if file == prefix {
		return true
	}
	if prefix[len(prefix)-1] != '/' {
		prefix += "/"
	}
	return len(file) > len(prefix) && file[:len(prefix)] == prefix
}
