package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repolens/internal/clone"
	"repolens/internal/events"
	"repolens/internal/explore"
	"repolens/internal/identity"
	"repolens/internal/store"
)

type scriptedLLM struct {
	responses []json.RawMessage
}

func (s *scriptedLLM) Name() string { return "scripted" }

func (s *scriptedLLM) GenerateJSON(_ context.Context, _ string, _ any) (json.RawMessage, error) {
	if len(s.responses) == 0 {
		return json.RawMessage(`{"action":"final","final":{"summary":"out of script"}}`), nil
	}
	out := s.responses[0]
	s.responses = s.responses[1:]
	return out, nil
}

func (s *scriptedLLM) Close() error { return nil }

// testServer wires a full Server over a pre-materialized snapshot and a
// scripted model, so handlers exercise the real core without subprocesses
// or network.
func testServer(t *testing.T, llm *scriptedLLM) (*Server, identity.Identity) {
	t.Helper()
	id, err := identity.New("acme", "widgets")
	require.NoError(t, err)

	base := t.TempDir()
	path := id.ClonePath(base)
	require.NoError(t, os.MkdirAll(filepath.Join(path, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "main.go"), []byte("package main\n"), 0o644))

	bus := events.NewBus()
	st := store.NewFileStore(t.TempDir())
	srv := &Server{
		Bus:    bus,
		Clones: clone.NewOrchestrator(base, bus),
		Explorer: &explore.Service{
			Clones: clone.NewOrchestrator(base, bus),
			Loop:   &explore.Loop{LLM: llm, Bus: bus},
			Store:  st,
			Bus:    bus,
		},
		Store: st,
	}
	return srv, id
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t, &scriptedLLM{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestExplore_UnknownModeRejected(t *testing.T) {
	srv, _ := testServer(t, &scriptedLLM{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/repos/acme/widgets/explore?mode=nonsense", nil)
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown mode")
}

func TestExplore_DefaultsToGeneralMode(t *testing.T) {
	llm := &scriptedLLM{responses: []json.RawMessage{
		json.RawMessage(`{"action":"tool","tool_name":"final.answer","tool_input":{"summary":"widget toolkit","key_files":["main.go"]}}`),
	}}
	srv, _ := testServer(t, llm)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/repos/acme/widgets/explore", nil)
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var res explore.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "widget toolkit", res.Summary)
	assert.Equal(t, []string{"main.go"}, res.KeyFiles)
}

func TestExplore_BadIdentityRejected(t *testing.T) {
	srv, _ := testServer(t, &scriptedLLM{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/repos/acme/wid%5Cgets/explore", nil)
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoredExploration_NotFound(t *testing.T) {
	srv, _ := testServer(t, &scriptedLLM{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/repos/acme/widgets/exploration/general", nil)
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoredExploration_ServesRecord(t *testing.T) {
	srv, id := testServer(t, &scriptedLLM{})
	_, err := srv.Store.Save(id, "general", json.RawMessage(`{"summary":"stored"}`))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/repos/acme/widgets/exploration/general", nil)
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got store.Stored
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "general", got.Mode)
	assert.JSONEq(t, `{"summary":"stored"}`, string(got.Result))
}

func TestStoredExploration_UnknownModeRejected(t *testing.T) {
	srv, _ := testServer(t, &scriptedLLM{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/repos/acme/widgets/exploration/bogus", nil)
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsSSE_PreambleAndForwarding(t *testing.T) {
	srv, id := testServer(t, &scriptedLLM{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/repos/acme/widgets/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))
	var preamble map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &preamble))
	assert.Equal(t, "connected", preamble["type"])
	assert.Equal(t, "acme", preamble["owner"])

	// The subscription is live once the preamble arrives.
	srv.Bus.Publish(id, events.New(events.TypeCloneStarted, id))

	// Skip the blank separator, then read the forwarded event.
	_, err = reader.ReadString('\n')
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	var ev events.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &ev))
	assert.Equal(t, events.TypeCloneStarted, ev.Type)
}
