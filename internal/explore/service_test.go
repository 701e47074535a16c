package explore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repolens/internal/clone"
	"repolens/internal/events"
	"repolens/internal/identity"
	"repolens/internal/store"
)

// serviceFixture wires a Service over a pre-materialized snapshot so no
// git subprocess is ever involved.
func serviceFixture(t *testing.T, llm *fakeLLM) (*Service, identity.Identity, store.ExplorationStore) {
	t.Helper()
	id := testID(t)

	base := t.TempDir()
	path := id.ClonePath(base)
	require.NoError(t, os.MkdirAll(filepath.Join(path, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "pkg.json"), []byte(`{"name":"widgets"}`), 0o644))

	bus := events.NewBus()
	st := store.NewFileStore(t.TempDir())
	svc := &Service{
		Clones: clone.NewOrchestrator(base, bus),
		Loop:   &Loop{LLM: llm, Bus: bus},
		Store:  st,
		Bus:    bus,
	}
	return svc, id, st
}

func generalAnswer() *fakeLLM {
	return &fakeLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"repo.overview","tool_input":{}}`),
		json.RawMessage(`{"action":"tool","tool_name":"file.excerpt","tool_input":{"path":"pkg.json"}}`),
		json.RawMessage(`{"action":"tool","tool_name":"final.answer","tool_input":{"summary":"widget toolkit","key_files":["pkg.json"],"dependencies":["react"]}}`),
	}}
}

func TestExplore_RunsAndPersists(t *testing.T) {
	svc, id, st := serviceFixture(t, generalAnswer())
	sessionStart := time.Now().Unix()

	res, err := svc.Explore(context.Background(), id, General, false)
	require.NoError(t, err)
	assert.Equal(t, "widget toolkit", res.Summary)
	assert.Equal(t, []string{"pkg.json"}, res.KeyFiles)

	rec, ok, err := st.Load(id, General.Name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.GreaterOrEqual(t, rec.Timestamp, sessionStart)
	assert.Equal(t, store.SchemaVersion, rec.Version)

	var stored Result
	require.NoError(t, json.Unmarshal(rec.Result, &stored))
	assert.Equal(t, res.Summary, stored.Summary)
}

func TestExplore_ReusesRecentRecord(t *testing.T) {
	llm := generalAnswer()
	svc, id, _ := serviceFixture(t, llm)

	_, err := svc.Explore(context.Background(), id, General, false)
	require.NoError(t, err)
	callsAfterFirst := len(llm.prompts)

	res, err := svc.Explore(context.Background(), id, General, false)
	require.NoError(t, err)
	assert.Equal(t, "widget toolkit", res.Summary)
	assert.Len(t, llm.prompts, callsAfterFirst, "a recent record short-circuits the session")
}

func TestExplore_ForceRerunsSession(t *testing.T) {
	llm := generalAnswer()
	svc, id, _ := serviceFixture(t, llm)

	_, err := svc.Explore(context.Background(), id, General, false)
	require.NoError(t, err)
	callsAfterFirst := len(llm.prompts)

	llm.responses = []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"final.answer","tool_input":{"summary":"rechecked"}}`),
	}
	res, err := svc.Explore(context.Background(), id, General, true)
	require.NoError(t, err)
	assert.Equal(t, "rechecked", res.Summary)
	assert.Greater(t, len(llm.prompts), callsAfterFirst)
}

func TestExplore_CompletionEventCarriesResult(t *testing.T) {
	svc, id, _ := serviceFixture(t, generalAnswer())

	var completed []events.Event
	unsub := svc.Bus.Subscribe(id, func(ev events.Event) {
		if ev.Type == events.TypeExplorationCompleted {
			completed = append(completed, ev)
		}
	})
	defer unsub()

	_, err := svc.Explore(context.Background(), id, General, false)
	require.NoError(t, err)

	require.Len(t, completed, 1)
	assert.Equal(t, General.Name, completed[0].Mode)
	assert.NotNil(t, completed[0].Data)
}

// brokenStore fails every write, to exercise the hard-error path.
type brokenStore struct{}

func (brokenStore) Save(identity.Identity, string, json.RawMessage) (store.Stored, error) {
	return store.Stored{}, errors.New("disk full")
}
func (brokenStore) Load(identity.Identity, string) (store.Stored, bool, error) {
	return store.Stored{}, false, nil
}
func (brokenStore) HasRecent(identity.Identity, string, float64) bool { return false }
func (brokenStore) SaveBasic(identity.Identity, json.RawMessage) error {
	return errors.New("disk full")
}
func (brokenStore) LoadBasic(identity.Identity) (json.RawMessage, bool, error) {
	return nil, false, nil
}

func TestExplore_StoreWriteFailureIsHard(t *testing.T) {
	svc, id, _ := serviceFixture(t, generalAnswer())
	svc.Store = brokenStore{}

	var failed []events.Event
	unsub := svc.Bus.Subscribe(id, func(ev events.Event) {
		if ev.Type == events.TypeExplorationFailed {
			failed = append(failed, ev)
		}
	})
	defer unsub()

	_, err := svc.Explore(context.Background(), id, General, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.Len(t, failed, 1)
	assert.Equal(t, General.Name, failed[0].Mode)
}
