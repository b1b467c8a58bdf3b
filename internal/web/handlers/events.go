package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/events"
)

// EventSource hands out attendance event subscriptions.
type EventSource interface {
	AddListener() chan events.Event
	RemoveListener(ch chan events.Event)
	ListenerCount() int
}

// EventsHandler streams attendance events as server-sent events
type EventsHandler struct {
	source EventSource
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(source EventSource) *EventsHandler {
	return &EventsHandler{source: source}
}

// Stream sends every attendance event until the client disconnects
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := setupSSEConnection(w)
	if !ok {
		return
	}

	ch := h.source.AddListener()
	defer h.source.RemoveListener(ch)

	sendSSEEvent(w, flusher, "connected", map[string]int{"listeners": h.source.ListenerCount()})

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}

// setupSSEConnection sets the SSE headers and returns the flusher.
// On failure it writes an error response and returns false.
func setupSSEConnection(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return flusher, true
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
