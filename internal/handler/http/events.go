package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/sse"
)

type RunEventsHandler interface {
	Stream(w http.ResponseWriter, r *http.Request)
}

type runEventsHandlerImpl struct {
	hub               *sse.Hub
	keepaliveInterval time.Duration
}

func NewRunEventsHandler(hub *sse.Hub) RunEventsHandler {
	return &runEventsHandlerImpl{hub: hub, keepaliveInterval: 30 * time.Second}
}

// Stream pushes run lifecycle events over SSE. ?entity= narrows the stream to
// one legal entity.
func (h *runEventsHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	entity := r.URL.Query().Get("entity")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	runEvents, cleanup := h.hub.Subscribe(entity)
	defer cleanup()

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(h.keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-runEvents:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
