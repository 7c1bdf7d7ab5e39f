package static

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Checker runs the static checks against agent output. Stateless after
// construction; safe for concurrent use.
type Checker struct {
	config *Config
	logger *zap.Logger
}

// New creates a Checker. A nil config uses DefaultConfig.
func New(cfg *Config, logger *zap.Logger) (*Checker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{config: cfg, logger: logger}, nil
}

// MustNew creates a Checker, panicking on error.
func MustNew(cfg *Config, logger *zap.Logger) *Checker {
	c, err := New(cfg, logger)
	if err != nil {
		panic(err)
	}
	return c
}

// Toggles selects which checks run for one invocation, so a policy
// document can relax individual checks per session.
type Toggles struct {
	Secrets       bool
	SleepInLoop   bool
	UnboundedLoop bool
}

// DefaultToggles mirrors the checker's own configuration.
func (c *Checker) DefaultToggles() Toggles {
	return Toggles{
		Secrets:       c.config.CheckSecrets,
		SleepInLoop:   c.config.CheckSleepInLoop,
		UnboundedLoop: c.config.CheckUnboundedLoop,
	}
}

// Check runs every enabled check against the source.
func (c *Checker) Check(source string) []Violation {
	return c.CheckWith(source, c.DefaultToggles())
}

// CheckWith runs the checks selected by the toggles. The secret scan
// operates on raw text and always runs when enabled; the loop scans
// fail open on input the heuristics cannot follow.
func (c *Checker) CheckWith(source string, toggles Toggles) []Violation {
	var violations []Violation

	if toggles.Secrets {
		violations = append(violations, c.checkSecrets(source)...)
	}
	if toggles.SleepInLoop || toggles.UnboundedLoop {
		violations = append(violations, c.checkLoops(source, toggles)...)
	}

	if len(violations) > 0 {
		c.logger.Debug("static check found violations",
			zap.Int("count", len(violations)),
		)
	}
	return violations
}

// checkSecrets scans the raw text against the rule set, reporting up to
// MaxSecretFindings matches with an EvidenceWindow excerpt each.
func (c *Checker) checkSecrets(source string) []Violation {
	var violations []Violation

	for _, rule := range c.config.compiledRules {
		if len(violations) >= c.config.MaxSecretFindings {
			break
		}
		matches := rule.pattern.FindAllStringIndex(source, -1)
		for _, match := range matches {
			if len(violations) >= c.config.MaxSecretFindings {
				break
			}
			line := strings.Count(source[:match[0]], "\n") + 1
			violations = append(violations, Violation{
				Key:      KeySecretsHardcoding,
				Detail:   fmt.Sprintf("%s (%s)", rule.Description, rule.ID),
				Evidence: evidenceWindow(source, match[0], c.config.EvidenceWindow),
				Line:     line,
			})
		}
	}
	return violations
}

// evidenceWindow returns up to window characters starting at the match,
// clipped to the line so a secret's surroundings leak nothing extra.
func evidenceWindow(source string, start, window int) string {
	end := start + window
	if end > len(source) {
		end = len(source)
	}
	excerpt := source[start:end]
	if idx := strings.IndexByte(excerpt, '\n'); idx >= 0 {
		excerpt = excerpt[:idx]
	}
	return excerpt
}
