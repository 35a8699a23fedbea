package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stepwise-ai/stepwise/internal/service"
)

type EventsHandler struct {
	sseMan *service.SSEManager
}

func NewEventsHandler(sseMan *service.SSEManager) *EventsHandler {
	return &EventsHandler{sseMan: sseMan}
}

// GET /v1/events?since_seq=0
// SSE stream of decomposition and settings activity. Standard SSE reconnect
// is supported: the browser's Last-Event-ID header takes precedence over the
// since_seq query param.
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sinceSeq, _ := strconv.Atoi(r.URL.Query().Get("since_seq"))
	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		if v, err := strconv.Atoi(lastEventID); err == nil {
			sinceSeq = v
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	ch, cancel := h.sseMan.Subscribe(ctx, service.TopicActivity, sinceSeq)
	defer cancel()

	// Send headers right away so clients see the stream is open.
	flusher.Flush()

	// Keepalive ticker
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			fmt.Fprintf(w, ":keepalive\n\n")
			flusher.Flush()

		case event, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "id: %d\n", event.Seq)
			fmt.Fprintf(w, "event: %s\n", event.Type)
			fmt.Fprintf(w, "data: %s\n\n", event.PayloadJSON)
			flusher.Flush()
		}
	}
}
