package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/agentcore/turnengine/internal/event"
)

// sseHeartbeatInterval keeps idle connections from being reaped by
// intermediate proxies.
const sseHeartbeatInterval = 30 * time.Second

// sdkEvent is the wire shape every SSE frame carries: a type tag plus its
// typed payload, so a thin frontend can dispatch on Type without knowing
// every Go struct.
type sdkEvent struct {
	Type event.Type `json:"type"`
	Data any        `json:"data"`
}

// events handles GET /event: a single SSE stream of every bus event. It is
// not filtered by session; a frame is dropped if the client's 64-frame
// buffer is full.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	frames := make(chan sdkEvent, 64)
	unsubscribe := event.SubscribeAll(func(e event.Event) {
		select {
		case frames <- sdkEvent{Type: e.Type, Data: e.Data}:
		default:
		}
	})
	defer unsubscribe()

	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case f := <-frames:
			data, err := json.Marshal(f.Data)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Type, data)
			flusher.Flush()
		}
	}
}
