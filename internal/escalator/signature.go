package escalator

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// promptPrefixLen bounds how much of the prompt participates in the
// signature. Trailing variance (timestamps, appended context) must not
// split otherwise-identical failures into distinct signatures.
const promptPrefixLen = 500

// Signature identifies "the same kind of failure from the same
// prompt and profile". Two failures share a signature iff error type,
// sorted missing fields, profile, and the prompt-prefix hash all match.
type Signature struct {
	ErrorType     string   `json:"error_type"`
	MissingFields []string `json:"missing_fields"`
	Profile       string   `json:"profile"`
	PromptHash    string   `json:"prompt_hash"`
}

// ComputeSignature builds a signature from the raw failure attributes.
// missingFields is copied and sorted so field order never matters.
func ComputeSignature(errorType string, missingFields []string, profile, prompt string) Signature {
	fields := make([]string, len(missingFields))
	copy(fields, missingFields)
	sort.Strings(fields)

	return Signature{
		ErrorType:     errorType,
		MissingFields: fields,
		Profile:       profile,
		PromptHash:    hashPromptPrefix(prompt),
	}
}

// Key returns a stable map key for the signature.
func (s Signature) Key() string {
	h := sha256.New()
	h.Write([]byte(s.ErrorType))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(s.MissingFields, "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(s.Profile))
	h.Write([]byte{0})
	h.Write([]byte(s.PromptHash))
	return hex.EncodeToString(h.Sum(nil))
}

// hashPromptPrefix hashes the first promptPrefixLen characters of the
// prompt. Characters, not bytes: multi-byte runes must not shift the
// boundary between otherwise-identical prompts.
func hashPromptPrefix(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > promptPrefixLen {
		runes = runes[:promptPrefixLen]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return hex.EncodeToString(sum[:])
}
