package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout reports that the subprocess exceeded the configured wall-clock
// timeout and was forcibly terminated.
var ErrTimeout = errors.New("runner: search timed out")

const (
	// DefaultTimeout bounds a single search invocation.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxOutput bounds captured output; the subprocess is killed
	// early once it is exceeded.
	DefaultMaxOutput = 256 * 1024

	truncationMarker = "\n... [output truncated]"
)

// ResultKind discriminates a search outcome.
type ResultKind string

const (
	// KindMatches means the pattern matched and Text holds the output.
	KindMatches ResultKind = "matches"
	// KindNoMatches means the search completed but nothing matched.
	// This is a success, not an error.
	KindNoMatches ResultKind = "no_matches"
)

// SearchResult is the outcome of one bounded search invocation.
type SearchResult struct {
	Kind      ResultKind
	Text      string
	Truncated bool
}

// Searcher runs a single external text-search subprocess with a wall-clock
// timeout and an output-size ceiling.
type Searcher struct {
	Timeout   time.Duration
	MaxOutput int
}

// searchCommand constructs the subprocess. Injectable in tests.
var searchCommand = func(ctx context.Context, pattern, dir string) *exec.Cmd {
	// The explicit directory argument keeps grep from ever reading stdin.
	return exec.CommandContext(ctx, "grep", "-rn", "-I", "--exclude-dir=.git", "--", pattern, dir)
}

// Search executes one text-search invocation for pattern under dir.
// Outcomes are disjoint: matches, no matches, or an error (including
// ErrTimeout). Output beyond MaxOutput terminates the subprocess early and
// marks the result truncated.
func (s *Searcher) Search(ctx context.Context, pattern, dir string) (SearchResult, error) {
	pattern = stripQuotes(strings.TrimSpace(pattern))
	if pattern == "" {
		return SearchResult{}, errors.New("runner: empty search pattern")
	}
	if strings.TrimSpace(dir) == "" {
		return SearchResult{}, errors.New("runner: search directory required")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	max := s.MaxOutput
	if max <= 0 {
		max = DefaultMaxOutput
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := searchCommand(cctx, pattern, dir)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return SearchResult{}, fmt.Errorf("runner: stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return SearchResult{}, fmt.Errorf("runner: start search: %w", err)
	}

	var out strings.Builder
	truncated := false
	buf := make([]byte, 8192)
	for {
		n, rerr := stdout.Read(buf)
		if n > 0 {
			if out.Len()+n > max {
				out.Write(buf[:max-out.Len()])
				truncated = true
				// Kill rather than drain: bounds memory regardless of
				// how fast output accumulates.
				_ = cmd.Process.Kill()
				break
			}
			out.Write(buf[:n])
		}
		if rerr != nil {
			if rerr != io.EOF {
				truncated = truncated || errors.Is(rerr, io.ErrClosedPipe)
			}
			break
		}
	}

	waitErr := cmd.Wait()

	if cctx.Err() == context.DeadlineExceeded {
		return SearchResult{}, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}

	text := out.String()
	if truncated {
		return SearchResult{Kind: KindMatches, Text: text + truncationMarker, Truncated: true}, nil
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) && exitErr.ExitCode() == 1 && strings.TrimSpace(text) == "" {
			// grep exit status 1: completed, nothing matched.
			return SearchResult{Kind: KindNoMatches}, nil
		}
		return SearchResult{}, fmt.Errorf("runner: search failed: %w: %s", waitErr, strings.TrimSpace(stderr.String()))
	}
	if strings.TrimSpace(text) == "" {
		return SearchResult{Kind: KindNoMatches}, nil
	}
	return SearchResult{Kind: KindMatches, Text: text}, nil
}

func stripQuotes(s string) string {
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = s[1 : len(s)-1]
			continue
		}
		break
	}
	return s
}
