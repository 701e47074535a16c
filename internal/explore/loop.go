package explore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"repolens/internal/events"
	"repolens/internal/identity"
	"repolens/internal/llmclient"
	"repolens/internal/runner"
	"repolens/internal/tools"
)

const defaultMaxSteps = 12

// FallbackNote annotates results salvaged without the terminal tool.
const FallbackNote = "model ended the session without calling " + tools.FinalToolName

// Step is one turn of a tool-calling session: a tool invocation with its
// observation, or a free-text reasoning fragment. The transcript is
// ephemeral; it lives only long enough to extract the final answer.
type Step struct {
	ToolName string
	Input    json.RawMessage
	Output   json.RawMessage
	Err      string
	Text     string
}

// Loop drives one tool-calling exploration session against a snapshot.
// Sessions are strictly sequential: each step's prompt depends on all prior
// observations. There is no external cancellation beyond ctx on the
// underlying calls; a session runs to a terminal state or its step budget.
type Loop struct {
	LLM      llmclient.Client
	Bus      *events.Bus
	Searcher *runner.Searcher
	MaxSteps int
}

// Run executes a session for id in the given mode against snapshot.
// It always returns a well-typed Result on the degraded paths (no terminal
// tool, unparseable answer); only completion-transport failures are errors.
func (l *Loop) Run(ctx context.Context, id identity.Identity, snapshot string, mode Mode) (Result, error) {
	if l == nil || l.LLM == nil {
		return Result{}, fmt.Errorf("explore: loop is missing its model client")
	}
	max := l.MaxSteps
	if max <= 0 {
		max = defaultMaxSteps
	}

	reg := tools.NewDefaultRegistry(tools.Host{
		Snapshot:     snapshot,
		ExcerptLines: mode.ExcerptLines,
		Searcher:     l.Searcher,
	})
	provider := reg.Subset(mode.Tools...)
	specs := provider.Specs()

	l.publish(id, events.TypeExplorationStarted, mode, nil, "")

	var transcript []Step
	input := map[string]string{"owner": id.Owner, "repo": id.Name}

	for len(transcript) < max {
		prompt := buildPrompt(mode, specs, transcript)
		raw, err := l.LLM.GenerateJSON(ctx, prompt, input)
		if err != nil {
			l.publish(id, events.TypeExplorationFailed, mode, nil, err.Error())
			return Result{}, fmt.Errorf("explore: completion call: %w", err)
		}

		env := parseAction(raw)
		if env.Action == actionFinal {
			transcript = append(transcript, Step{Text: fragmentText(env.Final)})
			break
		}
		if env.ToolName == "" {
			transcript = append(transcript, Step{Text: fragmentText(raw)})
			break
		}

		step := Step{ToolName: env.ToolName, Input: env.ToolInput}
		out, err := provider.Call(ctx, env.ToolName, env.ToolInput)
		if err != nil {
			// A failed tool call becomes an observation, never a
			// session abort.
			step.Err = fmt.Sprintf("tool %s failed: %v", env.ToolName, err)
		} else {
			step.Output = out
		}
		transcript = append(transcript, step)

		if env.ToolName == tools.FinalToolName {
			break
		}

		log.Info().
			Str("repo", id.Key()).
			Str("mode", mode.Name).
			Str("tool", env.ToolName).
			RawJSON("args", nonNilJSON(env.ToolInput)).
			Msg("exploration step")
		l.publish(id, events.TypeExplorationProgress, mode, map[string]any{
			"tool": env.ToolName,
			"step": len(transcript),
		}, "")
	}

	return extractResult(transcript), nil
}

// extractResult scans the transcript in reverse for the terminal tool's
// recorded output; absent that, it falls back to the last non-empty
// reasoning fragment with an explicit note.
func extractResult(transcript []Step) Result {
	for i := len(transcript) - 1; i >= 0; i-- {
		s := transcript[i]
		if s.ToolName == tools.FinalToolName && len(s.Output) > 0 {
			return parseResult(s.Output)
		}
	}
	for i := len(transcript) - 1; i >= 0; i-- {
		if txt := strings.TrimSpace(transcript[i].Text); txt != "" {
			return fallbackResult(txt, FallbackNote)
		}
	}
	return fallbackResult("", FallbackNote)
}

func (l *Loop) publish(id identity.Identity, typ events.Type, mode Mode, data map[string]any, errMsg string) {
	if l.Bus == nil {
		return
	}
	ev := events.New(typ, id)
	ev.Mode = mode.Name
	ev.Data = data
	ev.Error = errMsg
	l.Bus.Publish(id, ev)
}

// fragmentText renders a final fragment as plain text: JSON strings are
// unquoted so the salvaged summary doesn't carry their quote characters.
func fragmentText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

func nonNilJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}
