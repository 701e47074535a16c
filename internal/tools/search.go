package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"repolens/internal/runner"
)

// --------------------- text.search ---------------------

// Session searches run tighter bounds than the runner's generic defaults:
// an exploring model should get fast, small observations.
const (
	searchTimeout   = 10 * time.Second
	searchMaxOutput = 32 * 1024
)

// runSearch executes the bounded search. Injectable in tests.
var runSearch = func(ctx context.Context, s *runner.Searcher, pattern, dir string) (runner.SearchResult, error) {
	return s.Search(ctx, pattern, dir)
}

type searchTool struct{ host Host }

func newSearchTool(h Host) *searchTool { return &searchTool{host: h} }

func (t *searchTool) Spec() Spec {
	return Spec{
		Name:        "text.search",
		Description: "Full-text search across the repository; returns matching lines.",
		InputSchema: json.RawMessage(`{"pattern":"string"}`),
	}
}

type searchInput struct {
	Pattern string `json:"pattern"`
}

type searchOutput struct {
	Status    string `json:"status"`
	Matches   string `json:"matches,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (t *searchTool) Call(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in searchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Pattern) == "" {
		return nil, fmt.Errorf("text.search: pattern required")
	}

	if st, err := os.Stat(t.host.Snapshot); err != nil || !st.IsDir() {
		return json.Marshal(searchOutput{Status: StatusNotReady})
	}

	s := t.host.Searcher
	if s == nil {
		s = &runner.Searcher{Timeout: searchTimeout, MaxOutput: searchMaxOutput}
	}
	res, err := runSearch(ctx, s, in.Pattern, t.host.Snapshot)
	if err != nil {
		if errors.Is(err, runner.ErrTimeout) {
			return json.Marshal(searchOutput{Status: StatusTimedOut})
		}
		return nil, err
	}
	if res.Kind == runner.KindNoMatches {
		return json.Marshal(searchOutput{Status: StatusNoMatches})
	}
	return json.Marshal(searchOutput{Status: StatusOK, Matches: res.Text, Truncated: res.Truncated})
}
