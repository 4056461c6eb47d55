package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/service"
	"github.com/allinone-studio/remote-support-server/internal/sse"
)

// EventsHandler streams session events over SSE. Events are advisory hints;
// signaling payloads still flow through the polling endpoint.
type EventsHandler struct {
	broker         *sse.Broker
	sessionService *service.SessionService
}

func NewEventsHandler(broker *sse.Broker, sessionService *service.SessionService) *EventsHandler {
	return &EventsHandler{
		broker:         broker,
		sessionService: sessionService,
	}
}

// GET /api/remote/events?code=&from=host|client
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	from := model.Role(r.URL.Query().Get("from"))
	if !from.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from must be host or client"})
		return
	}

	// Reject unknown codes before holding a stream open.
	session, err := h.sessionService.Get(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(session.Code)
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("code", session.Code).
		Str("from", string(from)).
		Msg("sse connection established")

	h.sendEvent(w, flusher, "connected", map[string]any{
		"sessionId": session.ID,
		"status":    session.Status,
	})

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("code", session.Code).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("code", session.Code).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("code", session.Code).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
