package static

import (
	"fmt"
	"regexp"
)

// Config configures the checker. Each check toggles independently so
// policy documents can relax one without losing the others.
type Config struct {
	// CheckSecrets enables the hardcoded-secret scan (default: true).
	CheckSecrets bool `koanf:"check_secrets"`

	// CheckSleepInLoop enables the sleep-in-loop scan (default: true).
	CheckSleepInLoop bool `koanf:"check_sleep_in_loop"`

	// CheckUnboundedLoop enables the unbounded-loop scan (default: true).
	CheckUnboundedLoop bool `koanf:"check_unbounded_loop"`

	// MaxSecretFindings caps reported secret matches (default: 5).
	MaxSecretFindings int `koanf:"max_secret_findings"`

	// EvidenceWindow is the context excerpt length in characters
	// (default: 40).
	EvidenceWindow int `koanf:"evidence_window"`

	// Rules defines the secret detection rules. Empty uses DefaultRules.
	Rules []Rule `koanf:"rules"`

	compiledRules []*compiledRule
}

// Rule defines one secret detection rule.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string `koanf:"id"`

	// Description explains what this rule detects.
	Description string `koanf:"description"`

	// Pattern is the regex matching the secret shape.
	Pattern string `koanf:"pattern"`
}

type compiledRule struct {
	Rule
	pattern *regexp.Regexp
}

// DefaultConfig returns a configuration with every check enabled and
// the standard rule set.
func DefaultConfig() *Config {
	return &Config{
		CheckSecrets:       true,
		CheckSleepInLoop:   true,
		CheckUnboundedLoop: true,
		MaxSecretFindings:  5,
		EvidenceWindow:     40,
		Rules:              DefaultRules(),
	}
}

// Validate validates and compiles the configuration.
func (c *Config) Validate() error {
	if c.MaxSecretFindings <= 0 {
		c.MaxSecretFindings = 5
	}
	if c.EvidenceWindow <= 0 {
		c.EvidenceWindow = 40
	}
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}

	c.compiledRules = make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: ID is required", i)
		}
		if rule.Pattern == "" {
			return fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		c.compiledRules = append(c.compiledRules, &compiledRule{Rule: rule, pattern: pattern})
	}
	return nil
}
