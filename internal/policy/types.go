package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Mode is the execution mode a session runs under.
type Mode string

const (
	ModeLive     Mode = "live"
	ModePaper    Mode = "paper"
	ModeBacktest Mode = "backtest"
	ModeDev      Mode = "dev"
)

// RiskProfile selects how aggressively rules are enforced.
type RiskProfile string

const (
	RiskStrict RiskProfile = "strict"
	RiskNormal RiskProfile = "normal"
	RiskFast   RiskProfile = "fast"
)

// SecretsMode controls the hardcoded-secret check.
type SecretsMode string

const (
	// SecretsForbid rejects output containing hardcoded secrets.
	SecretsForbid SecretsMode = "forbid"
	// SecretsWarn records violations without rejecting.
	SecretsWarn SecretsMode = "warn"
	// SecretsAllow disables the check entirely.
	SecretsAllow SecretsMode = "allow"
)

// Document is one session policy. Loaded strictly: unknown or
// malformed fields are rejected, not ignored.
type Document struct {
	SessionID   string      `koanf:"session_id" json:"session_id"`
	Mode        Mode        `koanf:"mode" json:"mode"`
	RiskProfile RiskProfile `koanf:"risk_profile" json:"risk_profile"`
	RuleVersion string      `koanf:"rule_version" json:"rule_version"`
	Rules       Rules       `koanf:"rules" json:"rules"`
	Overrides   []string    `koanf:"overrides" json:"overrides,omitempty"`
}

// Rules groups the per-domain rule sets.
type Rules struct {
	Trading TradingRules `koanf:"trading" json:"trading"`
	Code    CodeRules    `koanf:"code" json:"code"`
	Quality QualityRules `koanf:"quality" json:"quality"`
}

// TradingRules bound what generated trading code may do.
type TradingRules struct {
	MaxOrderNotional float64 `koanf:"max_order_notional" json:"max_order_notional"`
	MaxDailyLossPct  float64 `koanf:"max_daily_loss_pct" json:"max_daily_loss_pct"`
	AllowShort       bool    `koanf:"allow_short" json:"allow_short"`
}

// CodeRules drive the static gate.
type CodeRules struct {
	ForbidSleepInAPILoop  bool        `koanf:"forbid_sleep_in_api_loop" json:"forbid_sleep_in_api_loop"`
	RequireRateLimitGuard bool        `koanf:"require_rate_limit_guard" json:"require_rate_limit_guard"`
	SecretsHardcoding     SecretsMode `koanf:"secrets_hardcoding" json:"secrets_hardcoding"`
	ForbidInfiniteLoop    bool        `koanf:"forbid_infinite_loop" json:"forbid_infinite_loop"`
}

// QualityRules bound review scope.
type QualityRules struct {
	AllowSkipTests     bool `koanf:"allow_skip_tests" json:"allow_skip_tests"`
	MaxFilesChanged    int  `koanf:"max_files_changed" json:"max_files_changed"`
	RequireDiffSummary bool `koanf:"require_diff_summary" json:"require_diff_summary"`
}

// Default returns the built-in development policy, the last fallback
// tier when no policy file exists.
func Default() *Document {
	return &Document{
		SessionID:   "dev-default",
		Mode:        ModeDev,
		RiskProfile: RiskNormal,
		RuleVersion: "builtin",
		Rules: Rules{
			Trading: TradingRules{
				MaxOrderNotional: 10000,
				MaxDailyLossPct:  2.0,
				AllowShort:       false,
			},
			Code: CodeRules{
				ForbidSleepInAPILoop:  true,
				RequireRateLimitGuard: true,
				SecretsHardcoding:     SecretsForbid,
				ForbidInfiniteLoop:    true,
			},
			Quality: QualityRules{
				AllowSkipTests:     false,
				MaxFilesChanged:    20,
				RequireDiffSummary: true,
			},
		},
	}
}

// Validate checks enum fields and bounds, applying defaults for
// omitted enums.
func (d *Document) Validate() error {
	if d.Mode == "" {
		d.Mode = ModeDev
	}
	switch d.Mode {
	case ModeLive, ModePaper, ModeBacktest, ModeDev:
	default:
		return fmt.Errorf("invalid mode %q (want live, paper, backtest, or dev)", d.Mode)
	}

	if d.RiskProfile == "" {
		d.RiskProfile = RiskNormal
	}
	switch d.RiskProfile {
	case RiskStrict, RiskNormal, RiskFast:
	default:
		return fmt.Errorf("invalid risk_profile %q (want strict, normal, or fast)", d.RiskProfile)
	}

	if d.Rules.Code.SecretsHardcoding == "" {
		d.Rules.Code.SecretsHardcoding = SecretsForbid
	}
	switch d.Rules.Code.SecretsHardcoding {
	case SecretsForbid, SecretsWarn, SecretsAllow:
	default:
		return fmt.Errorf("invalid rules.code.secrets_hardcoding %q (want forbid, warn, or allow)", d.Rules.Code.SecretsHardcoding)
	}

	if d.Rules.Quality.MaxFilesChanged < 0 {
		return fmt.Errorf("rules.quality.max_files_changed must be non-negative, got %d", d.Rules.Quality.MaxFilesChanged)
	}

	return nil
}

// RulesHash returns the SHA-256 of the document's canonical JSON.
// The document is round-tripped through a map so keys serialize
// sorted regardless of struct field order.
func (d *Document) RulesHash() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshaling policy: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return "", fmt.Errorf("canonicalizing policy: %w", err)
	}

	canonical, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling canonical policy: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
