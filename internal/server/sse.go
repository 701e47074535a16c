package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"repolens/internal/events"
)

const heartbeatInterval = 15 * time.Second

// handleEventsSSE subscribes the connection to the event bus for one
// identity and forwards each event as a JSON line. The connected preamble
// and the heartbeats exist purely at this transport layer; the core never
// produces them.
func (s *Server) handleEventsSSE(w http.ResponseWriter, r *http.Request) {
	id, err := identityFromRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// A slow consumer drops events rather than blocking publishers.
	ch := make(chan events.Event, 32)
	unsubscribe := s.Bus.Subscribe(id, func(ev events.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	defer unsubscribe()

	fmt.Fprintf(w, "data: %s\n\n", connectedPayload(id.Owner, id.Name))
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, "data: %s\n\n", heartbeatPayload())
			flusher.Flush()
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func connectedPayload(owner, repo string) []byte {
	data, _ := json.Marshal(map[string]any{
		"type":      "connected",
		"owner":     owner,
		"repo":      repo,
		"timestamp": time.Now().Unix(),
	})
	return data
}

func heartbeatPayload() []byte {
	data, _ := json.Marshal(map[string]any{
		"type":      "heartbeat",
		"timestamp": time.Now().Unix(),
	})
	return data
}
