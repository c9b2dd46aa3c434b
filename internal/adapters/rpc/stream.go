package rpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lightning-worker/go-backend/internal/events"
)

const streamHeartbeat = 20 * time.Second

type eventNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  eventParams `json:"params"`
}

type eventParams struct {
	Version   int       `json:"version"`
	Channel   string    `json:"channel"`
	Kind      string    `json:"kind"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// handleRPCStream serves a hub as server-sent events. A cursor replays the
// retained history after that sequence number before live events follow.
func (s *Server) handleRPCStream(w http.ResponseWriter, r *http.Request) {
	if !s.preflight(w, r, http.MethodGet) {
		return
	}
	// Only the configured channel is created on demand; any other name must
	// already have a publisher.
	var hub *events.Hub
	channel := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channel == "" || channel == s.eventChan {
		hub = s.events.Hub(s.eventChan)
	} else {
		hub = s.events.Lookup(channel)
	}
	if hub == nil {
		http.Error(w, "event channel is not configured", http.StatusNotFound)
		return
	}
	var cursor int64
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = v
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming is not supported", http.StatusInternalServerError)
		return
	}
	release, ok := s.streams.acquire(clientKey(r, s.extractRPCToken(r)))
	if !ok {
		http.Error(w, "too many stream subscriptions", http.StatusTooManyRequests)
		return
	}
	defer release()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	replay, live, cancel := hub.Subscribe(cursor)
	defer cancel()
	for _, evt := range replay {
		if err := writeEvent(w, evt); err != nil {
			return
		}
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-live:
			if !ok {
				return
			}
			if err := writeEvent(w, evt); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w io.Writer, evt events.Event) error {
	data, err := json.Marshal(eventNotification{
		JSONRPC: "2.0",
		Method:  "ln_event",
		Params: eventParams{
			Version:   notificationVersion,
			Channel:   evt.Channel,
			Kind:      evt.Kind,
			Seq:       evt.Seq,
			Timestamp: evt.Timestamp,
			Payload:   evt.Payload,
		},
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\ndata: %s\n\n", evt.Seq, data)
	return err
}
