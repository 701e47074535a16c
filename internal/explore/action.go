package explore

import (
	"encoding/json"
)

// actionEnvelope is the per-step response contract with the model: either a
// tool invocation or a final free-text/JSON fragment.
type actionEnvelope struct {
	Action    string          `json:"action,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	Final     json.RawMessage `json:"final,omitempty"`
}

const (
	actionTool  = "tool"
	actionFinal = "final"
)

// parseAction interprets one model response. Unparseable or bare-JSON
// responses are treated as a final fragment: the safest reading of a model
// that stopped following the envelope is that it stopped issuing tool calls.
func parseAction(raw json.RawMessage) actionEnvelope {
	var env actionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return actionEnvelope{Action: actionFinal, Final: raw}
	}
	if env.Action == "" && env.ToolName == "" && len(env.Final) == 0 {
		return actionEnvelope{Action: actionFinal, Final: raw}
	}
	if env.Action == "" {
		switch {
		case len(env.Final) > 0:
			env.Action = actionFinal
		case env.ToolName != "" || len(env.ToolInput) > 0:
			env.Action = actionTool
		}
	}
	switch env.Action {
	case actionTool, actionFinal:
		return env
	default:
		return actionEnvelope{Action: actionFinal, Final: raw}
	}
}
