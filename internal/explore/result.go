package explore

import (
	"encoding/json"
	"strings"
)

// Result is the committed output of an exploration session. Which fields
// carry content depends on the mode, but the object is always well-typed:
// every list field is non-nil and Summary is never empty.
type Result struct {
	Summary  string   `json:"summary"`
	KeyFiles []string `json:"key_files"`

	// General mode.
	Dependencies   []string `json:"dependencies"`
	Infrastructure []string `json:"infrastructure"`
	UserStories    []string `json:"user_stories"`
	Pages          []string `json:"pages"`

	// First-pass mode.
	Features []string `json:"features"`

	// Services mode: drafted configuration-file bodies.
	Dockerfile  string `json:"dockerfile,omitempty"`
	ComposeFile string `json:"compose_file,omitempty"`
	CIWorkflow  string `json:"ci_workflow,omitempty"`

	// FallbackNote is set when the model never invoked the terminal tool
	// and the summary was salvaged from its last reasoning fragment.
	FallbackNote string `json:"fallback_note,omitempty"`
}

// parseResult converts the raw committed answer into a Result. Parse
// failure is not an error: it degrades to a result whose Summary is the raw
// text and whose list fields are all empty.
func parseResult(raw json.RawMessage) Result {
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil || strings.TrimSpace(r.Summary) == "" {
		r = Result{Summary: strings.TrimSpace(string(raw))}
	}
	return normalize(r)
}

// fallbackResult salvages a degraded-but-usable result from the last
// reasoning fragment when no terminal tool ever fired.
func fallbackResult(fragment, note string) Result {
	summary := strings.TrimSpace(fragment)
	if summary == "" {
		summary = note
	}
	r := Result{Summary: summary, FallbackNote: note}
	return normalize(r)
}

func normalize(r Result) Result {
	if r.KeyFiles == nil {
		r.KeyFiles = []string{}
	}
	if r.Dependencies == nil {
		r.Dependencies = []string{}
	}
	if r.Infrastructure == nil {
		r.Infrastructure = []string{}
	}
	if r.UserStories == nil {
		r.UserStories = []string{}
	}
	if r.Pages == nil {
		r.Pages = []string{}
	}
	if r.Features == nil {
		r.Features = []string{}
	}
	return r
}
