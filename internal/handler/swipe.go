package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/reelmates/match-server-go/internal/errors"
	"github.com/reelmates/match-server-go/internal/middleware"
	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/service"
	"github.com/reelmates/match-server-go/internal/util"
)

type SwipeHandler struct {
	swipeService *service.SwipeService
}

func NewSwipeHandler(swipeService *service.SwipeService) *SwipeHandler {
	return &SwipeHandler{
		swipeService: swipeService,
	}
}

func (h *SwipeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Swipe)
	r.Delete("/{itemId}", h.Unswipe)

	return r
}

// POST /v1/swipes
func (h *SwipeHandler) Swipe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		ItemID      string           `json:"itemId"`
		Direction   string           `json:"direction"`
		SessionCode *string          `json:"sessionCode"`
		Item        *json.RawMessage `json:"item"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	if req.ItemID == "" {
		writeError(w, apperrors.MissingRequired("itemId"))
		return
	}
	direction := model.SwipeDirection(req.Direction)
	if !direction.Valid() {
		writeError(w, apperrors.InvalidInput("direction", "must be 'right' or 'left'"))
		return
	}
	sessionCode, err := normalizeSessionCode(req.SessionCode)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.swipeService.Swipe(r.Context(), user, sessionCode, req.ItemID, direction, req.Item)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// DELETE /v1/swipes/{itemId}?sessionCode=ABCD
func (h *SwipeHandler) Unswipe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	itemID := chi.URLParam(r, "itemId")
	if itemID == "" {
		writeError(w, apperrors.MissingRequired("itemId"))
		return
	}

	var sessionCode *string
	if raw := r.URL.Query().Get("sessionCode"); raw != "" {
		var err error
		sessionCode, err = normalizeSessionCode(&raw)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	result, err := h.swipeService.Unswipe(r.Context(), user, sessionCode, itemID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// normalizeSessionCode folds an optional client-supplied code to its
// canonical uppercase form. nil means the solo scope.
func normalizeSessionCode(code *string) (*string, error) {
	if code == nil {
		return nil, nil
	}
	upper := strings.ToUpper(*code)
	if !util.IsValidSessionCode(upper) {
		return nil, apperrors.InvalidInput("sessionCode", "must be a 4-character session code")
	}
	return &upper, nil
}
