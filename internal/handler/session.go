package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/reelmates/match-server-go/internal/errors"
	"github.com/reelmates/match-server-go/internal/middleware"
	"github.com/reelmates/match-server-go/internal/service"
	"github.com/reelmates/match-server-go/internal/util"
)

type SessionHandler struct {
	sessionService *service.SessionService
}

func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateSession)
	r.Get("/current", h.GetCurrentSession)
	r.Post("/leave", h.LeaveSession)
	r.Post("/{code}/join", h.JoinSession)
	r.Patch("/{code}/settings", h.UpdateSettings)
	r.Patch("/{code}/filters", h.UpdateFilters)

	return r
}

// POST /v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		ProviderConfig json.RawMessage `json:"providerConfig"`
		Settings       json.RawMessage `json:"settings"`
		Filters        json.RawMessage `json:"filters"`
		MemberSettings json.RawMessage `json:"memberSettings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	status, err := h.sessionService.Create(r.Context(), user, service.CreateSessionInput{
		ProviderConfig: req.ProviderConfig,
		Settings:       req.Settings,
		Filters:        req.Filters,
		MemberSettings: req.MemberSettings,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, status)
}

// POST /v1/sessions/{code}/join
func (h *SessionHandler) JoinSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	code, ok := sessionCodeParam(w, r)
	if !ok {
		return
	}

	var req struct {
		MemberSettings json.RawMessage `json:"memberSettings"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, apperrors.ValidationError("invalid request body"))
			return
		}
	}

	status, err := h.sessionService.Join(r.Context(), user, code, req.MemberSettings)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// POST /v1/sessions/leave
func (h *SessionHandler) LeaveSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	left, err := h.sessionService.Leave(r.Context(), user)
	if err != nil {
		log.Error().Err(err).Str("user", user.ID).Msg("failed to leave session")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"left": left})
}

// GET /v1/sessions/current
func (h *SessionHandler) GetCurrentSession(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	status, err := h.sessionService.CurrentStatus(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	if status == nil {
		writeJSON(w, http.StatusOK, map[string]any{"session": nil})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session": status})
}

// PATCH /v1/sessions/{code}/settings
func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	code, ok := sessionCodeParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Settings json.RawMessage `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Settings) == 0 {
		writeError(w, apperrors.MissingRequired("settings"))
		return
	}

	status, err := h.sessionService.UpdateSettings(r.Context(), user, code, service.UpdateSettingsInput{
		Settings: req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// PATCH /v1/sessions/{code}/filters
func (h *SessionHandler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	code, ok := sessionCodeParam(w, r)
	if !ok {
		return
	}

	var req struct {
		Filters json.RawMessage `json:"filters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Filters) == 0 {
		writeError(w, apperrors.MissingRequired("filters"))
		return
	}

	status, err := h.sessionService.UpdateFilters(r.Context(), user, code, req.Filters)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Codes are matched case-insensitively so users can type them as shown
// or lowercased.
func sessionCodeParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	if !util.IsValidSessionCode(code) {
		writeError(w, apperrors.InvalidInput("code", "must be a 4-character session code"))
		return "", false
	}
	return code, true
}
