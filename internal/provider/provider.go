// Package provider contains the text-generation adapters used by the
// generation orchestrator: two live HTTP providers (Gemini, Groq) and a
// deterministic mock used as the terminal fallback.
//
// All adapters satisfy the Generator interface and normalize their failure
// modes (non-2xx status, malformed or empty response body, empty candidate
// list, network failure) into a single descriptive error, which the
// orchestrator records as the fallback reason for the next step in the
// chain.
package provider

import (
	"context"
	"regexp"
	"strings"
)

// Result is the outcome of a successful generation attempt. Model and
// ResponseID carry provider-reported metadata for the lesson trace.
type Result struct {
	Text       string
	Model      string
	ResponseID string
}

// Generator is the contract shared by all generation backends. Generate
// returns the generated text for a prompt or a descriptive error; it must
// honor ctx for cancellation. Name returns a lowercase stable identifier
// ("gemini", "groq") used in traces and logs.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*Result, error)
	Name() string
}

// fenceRE matches a fenced code block delimiter, optionally carrying a
// language tag ("```markdown"), at the start of a line.
var fenceRE = regexp.MustCompile("(?m)^```[a-zA-Z0-9_-]*[ \t]*\r?\n?")

// StripCodeFences removes code-fence decoration that providers like to wrap
// around generated documents, with or without a language tag, and trims
// surrounding whitespace.
func StripCodeFences(s string) string {
	return strings.TrimSpace(fenceRE.ReplaceAllString(s, ""))
}
