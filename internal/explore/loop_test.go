package explore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repolens/internal/events"
	"repolens/internal/identity"
	"repolens/internal/tools"
)

type fakeLLM struct {
	responses []json.RawMessage
	prompts   []string
	err       error
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Close() error { return nil }
func (f *fakeLLM) GenerateJSON(_ context.Context, prompt string, _ any) (json.RawMessage, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return json.RawMessage(`{"action":"final","final":"nothing more to say"}`), nil
	}
	out := f.responses[0]
	f.responses = f.responses[1:]
	return out, nil
}

func testID(t *testing.T) identity.Identity {
	t.Helper()
	id, err := identity.New("acme", "widgets")
	require.NoError(t, err)
	return id
}

func snapshotFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg.json"), []byte(`{"name":"widgets"}`), 0o644))
	return root
}

func TestRun_ToolStepsThenTerminalAnswer(t *testing.T) {
	llm := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"repo.overview","tool_input":{}}`),
		json.RawMessage(`{"action":"tool","tool_name":"file.excerpt","tool_input":{"path":"pkg.json"}}`),
		json.RawMessage(`{"action":"tool","tool_name":"final.answer","tool_input":{"summary":"a widget toolkit","key_files":["pkg.json"],"features":["Login"]}}`),
	}}
	loop := &Loop{LLM: llm, Bus: events.NewBus()}

	res, err := loop.Run(context.Background(), testID(t), snapshotFixture(t), FirstPass)
	require.NoError(t, err)

	assert.Equal(t, "a widget toolkit", res.Summary)
	assert.Equal(t, []string{"pkg.json"}, res.KeyFiles)
	assert.Equal(t, []string{"Login"}, res.Features)
	assert.Empty(t, res.FallbackNote)
	assert.Len(t, llm.prompts, 3, "each step sees the accumulated transcript")
	assert.Contains(t, llm.prompts[2], "pkg.json", "observations feed the next prompt")
}

func TestRun_FallbackWhenTerminalToolNeverFires(t *testing.T) {
	llm := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"repo.overview","tool_input":{}}`),
		json.RawMessage(`{"action":"final","final":"looks like a CLI for managing widgets"}`),
	}}
	loop := &Loop{LLM: llm}

	res, err := loop.Run(context.Background(), testID(t), snapshotFixture(t), FirstPass)
	require.NoError(t, err)

	assert.Equal(t, "looks like a CLI for managing widgets", res.Summary,
		"string fragments are unquoted before salvage")
	assert.Equal(t, FallbackNote, res.FallbackNote)
	assert.Empty(t, res.Features)
}

func TestRun_MalformedAnswerDegradesToRawSummary(t *testing.T) {
	raw := `here is some prose, definitely not the schema`
	llm := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"final.answer","tool_input":"` + raw + `"}`),
	}}
	loop := &Loop{LLM: llm}

	res, err := loop.Run(context.Background(), testID(t), snapshotFixture(t), General)
	require.NoError(t, err)

	assert.Contains(t, res.Summary, "not the schema")
	assert.Empty(t, res.KeyFiles)
	assert.Empty(t, res.Dependencies)
	assert.Empty(t, res.UserStories)
	assert.Empty(t, res.Pages)
}

func TestRun_StepBudgetTerminates(t *testing.T) {
	llm := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"repo.overview","tool_input":{}}`),
		json.RawMessage(`{"action":"tool","tool_name":"repo.overview","tool_input":{}}`),
		json.RawMessage(`{"action":"tool","tool_name":"repo.overview","tool_input":{}}`),
	}}
	loop := &Loop{LLM: llm, MaxSteps: 2}

	res, err := loop.Run(context.Background(), testID(t), snapshotFixture(t), FirstPass)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Summary, "budget exhaustion still yields a usable result")
	assert.Equal(t, FallbackNote, res.FallbackNote)
	assert.Len(t, llm.prompts, 2)
}

func TestRun_FailedToolCallBecomesObservation(t *testing.T) {
	llm := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"file.excerpt","tool_input":{"path":""}}`),
		json.RawMessage(`{"action":"tool","tool_name":"final.answer","tool_input":{"summary":"recovered"}}`),
	}}
	loop := &Loop{LLM: llm}

	res, err := loop.Run(context.Background(), testID(t), snapshotFixture(t), FirstPass)
	require.NoError(t, err)

	assert.Equal(t, "recovered", res.Summary)
	assert.Contains(t, llm.prompts[1], "failed", "the failure reached the model as an observation")
}

func TestRun_CompletionFailureIsHard(t *testing.T) {
	llm := &fakeLLM{err: errors.New("model unavailable")}
	loop := &Loop{LLM: llm}

	_, err := loop.Run(context.Background(), testID(t), snapshotFixture(t), FirstPass)
	assert.Error(t, err)
}

func TestFirstPassOmitsSearchTool(t *testing.T) {
	reg := tools.NewDefaultRegistry(tools.Host{Snapshot: t.TempDir()})
	specs := reg.Subset(FirstPass.Tools...).Specs()

	for _, spec := range specs {
		assert.NotEqual(t, "text.search", spec.Name)
	}
	assert.False(t, FirstPass.AllowsTool("text.search"))
	assert.True(t, General.AllowsTool("text.search"))
}

func TestRun_SessionEventsPublished(t *testing.T) {
	bus := events.NewBus()
	id := testID(t)
	var got []events.Type
	unsub := bus.Subscribe(id, func(ev events.Event) { got = append(got, ev.Type) })
	defer unsub()

	llm := &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"repo.overview","tool_input":{}}`),
		json.RawMessage(`{"action":"tool","tool_name":"final.answer","tool_input":{"summary":"ok"}}`),
	}}
	loop := &Loop{LLM: llm, Bus: bus}

	_, err := loop.Run(context.Background(), id, snapshotFixture(t), FirstPass)
	require.NoError(t, err)

	assert.Equal(t, []events.Type{events.TypeExplorationStarted, events.TypeExplorationProgress}, got)
}

func TestParseResult_RoundTripDegradation(t *testing.T) {
	res := parseResult(json.RawMessage(`not json at all`))
	assert.Equal(t, "not json at all", res.Summary)
	assert.Empty(t, res.KeyFiles)

	res = parseResult(json.RawMessage(`{"summary":"fine","key_files":["a"]}`))
	assert.Equal(t, "fine", res.Summary)
	assert.Equal(t, []string{"a"}, res.KeyFiles)
	assert.NotNil(t, res.Features)
}

func TestModeByName(t *testing.T) {
	for _, name := range []string{"first_pass", "general", "services"} {
		m, ok := ModeByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, m.Name)
		assert.NotEmpty(t, m.Instruction)
		assert.NotEmpty(t, m.Schema)
		assert.Positive(t, m.ExcerptLines)
		assert.Contains(t, m.Tools, tools.FinalToolName)
	}
	_, ok := ModeByName("nope")
	assert.False(t, ok)
}
