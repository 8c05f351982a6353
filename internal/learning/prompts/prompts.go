package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Prompt is a rendered template ready for the LLM facade.
type Prompt struct {
	Name       string
	Version    int
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

func (p Prompt) Fingerprint() string {
	h := sha256.Sum256([]byte(
		strings.TrimSpace(p.Name) + "|" +
			strconv.Itoa(p.Version) + "|" +
			strings.TrimSpace(p.System) + "|" +
			strings.TrimSpace(p.User),
	))
	return hex.EncodeToString(h[:])
}

// Structured reports whether the prompt expects JSON output.
func (p Prompt) Structured() bool { return p.Schema != nil }

const (
	Composition = "composition"
	Lesson      = "lesson"
	TestBank    = "test_bank"
	Weakness    = "weakness_analysis"
	Tutor       = "tutor"
	Repair      = "repair"
)
