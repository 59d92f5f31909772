package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/reelmates/match-server-go/internal/errors"
	"github.com/reelmates/match-server-go/internal/middleware"
	"github.com/reelmates/match-server-go/internal/relay"
	"github.com/reelmates/match-server-go/internal/service"
)

type EventsHandler struct {
	streamer       *relay.Streamer
	sessionService *service.SessionService
}

func NewEventsHandler(streamer *relay.Streamer, sessionService *service.SessionService) *EventsHandler {
	return &EventsHandler{
		streamer:       streamer,
		sessionService: sessionService,
	}
}

// GET /v1/events
//
// Streams the caller's active session as server-sent events. Events
// older than the subscribe call are never replayed; catch-up state
// comes from GET /v1/sessions/current.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	sessionCode, err := h.sessionService.ActiveSessionCode(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	if sessionCode == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	log.Info().
		Str("session", sessionCode).
		Str("user", user.ID).
		Msg("sse connection established")

	h.sendConnected(w, flusher, sessionCode)

	if err := h.streamer.Run(r.Context(), w, flusher, sessionCode); err != nil {
		log.Debug().Err(err).Str("session", sessionCode).Msg("sse stream ended")
	}

	log.Info().
		Str("session", sessionCode).
		Str("user", user.ID).
		Msg("sse connection closed")
}

func (h *EventsHandler) sendConnected(w http.ResponseWriter, flusher http.Flusher, sessionCode string) {
	payload, _ := json.Marshal(map[string]string{"sessionCode": sessionCode})
	fmt.Fprintf(w, "event: connected\ndata: %s\n\n", payload)
	flusher.Flush()
}
