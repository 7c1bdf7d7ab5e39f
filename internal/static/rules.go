package static

// DefaultRules returns the standard secret detection rules. Token
// shapes follow the vendors' published prefixes; the generic rules
// require a quoted literal value so environment-variable lookups
// (os.environ, os.Getenv, process.env) never match.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "openai-api-key",
			Description: "OpenAI API key",
			Pattern:     `sk-(?:proj-)?[A-Za-z0-9_\-]{10,}`,
		},
		{
			ID:          "slack-token",
			Description: "Slack token",
			Pattern:     `xox[baprs]-[A-Za-z0-9\-]{10,}`,
		},
		{
			ID:          "google-api-key",
			Description: "Google API key",
			Pattern:     `AIza[A-Za-z0-9_\-]{35}`,
		},
		{
			ID:          "aws-access-key-id",
			Description: "AWS access key ID",
			Pattern:     `(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`,
		},
		{
			ID:          "github-token",
			Description: "GitHub token",
			Pattern:     `gh[pousr]_[A-Za-z0-9]{36}`,
		},
		{
			ID:          "generic-api-key-assignment",
			Description: "API key assigned as a string literal",
			Pattern:     `(?i)\b(?:api[_-]?key|apikey)\s*[:=]\s*['"][A-Za-z0-9_\-]{8,}['"]`,
		},
		{
			ID:          "generic-secret-assignment",
			Description: "Secret key assigned as a string literal",
			Pattern:     `(?i)\bsecret[_-]?key\s*[:=]\s*['"][^'"]{8,}['"]`,
		},
	}
}
