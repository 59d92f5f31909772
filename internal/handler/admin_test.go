package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"

	"github.com/reelmates/match-server-go/internal/repository"
)

type stubStatsRepo struct {
	stats repository.Stats
}

func (m *stubStatsRepo) Collect(ctx context.Context) (*repository.Stats, error) {
	return &m.stats, nil
}

func TestAdminHandler_Stats(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	assert.NoError(t, err)

	stats := &stubStatsRepo{stats: repository.Stats{Sessions: 3, Members: 7}}

	t.Run("404 when no admin password configured", func(t *testing.T) {
		handler := NewAdminHandler(stats, "")
		srv := httptest.NewServer(handler.Routes())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/stats")
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("401 on wrong password", func(t *testing.T) {
		handler := NewAdminHandler(stats, string(hash))
		srv := httptest.NewServer(handler.Routes())
		defer srv.Close()

		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/stats", nil)
		req.Header.Set("X-Admin-Password", "wrong")
		resp, err := http.DefaultClient.Do(req)
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("401 when header missing", func(t *testing.T) {
		handler := NewAdminHandler(stats, string(hash))
		srv := httptest.NewServer(handler.Routes())
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/stats")
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("returns stats with correct password", func(t *testing.T) {
		handler := NewAdminHandler(stats, string(hash))
		srv := httptest.NewServer(handler.Routes())
		defer srv.Close()

		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/stats", nil)
		req.Header.Set("X-Admin-Password", "hunter2")
		resp, err := http.DefaultClient.Do(req)
		assert.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
