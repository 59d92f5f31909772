package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/reelmates/match-server-go/internal/audit"
	"github.com/reelmates/match-server-go/internal/repository"
	"github.com/reelmates/match-server-go/internal/util"
)

type AdminHandler struct {
	stats        repository.StatsRepository
	passwordHash string
}

func NewAdminHandler(stats repository.StatsRepository, passwordHash string) *AdminHandler {
	return &AdminHandler{
		stats:        stats,
		passwordHash: passwordHash,
	}
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(h.requirePassword)
	r.Get("/stats", h.Stats)

	return r
}

// The admin surface is a single operator endpoint; a password header
// checked against a bcrypt hash from config stands in for a full
// login flow.
func (h *AdminHandler) requirePassword(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.passwordHash == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
			return
		}

		password := r.Header.Get("X-Admin-Password")
		if password == "" || !util.CheckPasswordHash(password, h.passwordHash) {
			audit.LogFromRequest(r, audit.EventAdminAccess, "", map[string]interface{}{
				"allowed": false,
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}

		audit.LogFromRequest(r, audit.EventAdminAccess, "", map[string]interface{}{
			"allowed": true,
		})
		next.ServeHTTP(w, r)
	})
}

// GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Collect(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to collect stats")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
