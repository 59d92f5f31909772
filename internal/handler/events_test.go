package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/relay"
	"github.com/reelmates/match-server-go/internal/repository"
	"github.com/reelmates/match-server-go/internal/service"
)

type stubMemberRepo struct {
	active *model.SessionMember
}

func (m *stubMemberRepo) Find(ctx context.Context, sessionCode, userID string) (*model.SessionMember, error) {
	return nil, nil
}

func (m *stubMemberRepo) FindActiveByUser(ctx context.Context, userID string) (*model.SessionMember, error) {
	return m.active, nil
}

func (m *stubMemberRepo) Insert(ctx context.Context, sessionCode, userID string, settings json.RawMessage) (bool, error) {
	return false, nil
}

func (m *stubMemberRepo) ListBySession(ctx context.Context, sessionCode string) ([]model.SessionMember, error) {
	return nil, nil
}

func (m *stubMemberRepo) ListProfiles(ctx context.Context, sessionCode string) ([]model.MemberProfile, error) {
	return nil, nil
}

func (m *stubMemberRepo) Count(ctx context.Context, sessionCode string) (int, error) {
	return 0, nil
}

func (m *stubMemberRepo) Delete(ctx context.Context, sessionCode, userID string) (bool, error) {
	return false, nil
}

func (m *stubMemberRepo) WithTx(tx *sqlx.Tx) repository.MemberRepository {
	return m
}

type stubEventRepo struct {
	maxID  int64
	events []model.SessionEvent
}

func (m *stubEventRepo) Append(ctx context.Context, sessionCode, eventType string, payload json.RawMessage) (*model.SessionEvent, error) {
	return nil, nil
}

func (m *stubEventRepo) ListAfter(ctx context.Context, sessionCode string, afterID int64, limit int) ([]model.SessionEvent, error) {
	var out []model.SessionEvent
	for _, e := range m.events {
		if e.ID > afterID && (e.SessionCode == sessionCode || e.SessionCode == repository.GlobalScope) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *stubEventRepo) MaxID(ctx context.Context) (int64, error) {
	return m.maxID, nil
}

func (m *stubEventRepo) DeleteBySession(ctx context.Context, sessionCode string) error {
	return nil
}

func (m *stubEventRepo) WithTx(tx *sqlx.Tx) repository.EventRepository {
	return m
}

func sessionServiceWithMembers(members repository.MemberRepository) *service.SessionService {
	return service.NewSessionService(nil, nil, members, nil, nil, nil, nil, "")
}

func TestEventsHandler_NoActiveSession(t *testing.T) {
	handler := NewEventsHandler(nil, sessionServiceWithMembers(&stubMemberRepo{}))

	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	req = req.WithContext(withUser(req.Context(), testUser()))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestEventsHandler_StreamsSessionEvents(t *testing.T) {
	members := &stubMemberRepo{active: &model.SessionMember{SessionCode: "AB2D", UserID: testUser().ID}}
	events := &stubEventRepo{
		maxID: 5,
		events: []model.SessionEvent{
			{ID: 6, SessionCode: "AB2D", Type: model.EventItemLiked, Payload: json.RawMessage(`{"itemId":"movie-1"}`)},
			{ID: 7, SessionCode: "ZZZZ", Type: model.EventItemLiked, Payload: json.RawMessage(`{"itemId":"other"}`)},
			{ID: 8, SessionCode: repository.GlobalScope, Type: model.EventSessionEnded, Payload: json.RawMessage(`{"code":"QQQQ"}`)},
		},
	}

	streamer := relay.NewStreamer(events, 10*time.Millisecond)
	handler := NewEventsHandler(streamer, sessionServiceWithMembers(members))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	req = req.WithContext(withUser(ctx, testUser()))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, `data: {"sessionCode":"AB2D"}`)
	assert.Contains(t, body, "event: item_liked\n")
	assert.Contains(t, body, `data: {"itemId":"movie-1"}`)
	// Events for session AB2D plus the global scope, nothing else.
	assert.Contains(t, body, "event: session_ended\n")
	assert.NotContains(t, body, "other")
	// History before the subscribe cursor is never replayed.
	assert.NotContains(t, body, "id: 5")
}

func TestEventsHandler_SendConnected(t *testing.T) {
	handler := &EventsHandler{}
	rec := httptest.NewRecorder()

	handler.sendConnected(rec, rec, "AB2D")

	body := rec.Body.String()
	assert.Contains(t, body, "event: connected\n")
	assert.Contains(t, body, "AB2D")
	assert.Contains(t, body, "\n\n")
}
