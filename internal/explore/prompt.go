package explore

import (
	"bytes"
	"encoding/json"

	"repolens/internal/tools"
)

const actionProtocol = `Respond with strict JSON only, one action per turn:
  {"action":"tool","tool_name":"<name>","tool_input":{...}} to inspect the repository, or
  {"action":"tool","tool_name":"` + tools.FinalToolName + `","tool_input":<final answer>} to commit your answer.
Match the answer schema exactly; no extra fields, markdown, or trailing commas.
Do not invent paths, filenames, or symbols; use only what the tools returned.`

// buildPrompt assembles the per-step prompt: instruction, answer schema,
// action protocol, the offered tool specs, and all prior observations.
func buildPrompt(mode Mode, specs []tools.Spec, transcript []Step) string {
	var buf bytes.Buffer
	buf.WriteString(mode.Instruction)
	buf.WriteString("\n\n[ANSWER SCHEMA]\n")
	buf.WriteString(mode.Schema)
	buf.WriteString("\n\n[PROTOCOL]\n")
	buf.WriteString(actionProtocol)
	buf.WriteString("\n\n[TOOLS]\n")
	buf.WriteString(encodeBlock(specs))
	if len(transcript) > 0 {
		buf.WriteString("\n[TOOL_RESULTS]\n")
		buf.WriteString(encodeBlock(transcriptView(transcript)))
	}
	return buf.String()
}

type stepView struct {
	Name   string          `json:"name,omitempty"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
	Text   string          `json:"text,omitempty"`
}

func transcriptView(transcript []Step) []stepView {
	out := make([]stepView, 0, len(transcript))
	for _, s := range transcript {
		out = append(out, stepView{
			Name:   s.ToolName,
			Input:  s.Input,
			Output: s.Output,
			Error:  s.Err,
			Text:   s.Text,
		})
	}
	return out
}

func encodeBlock(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return buf.String()
}
