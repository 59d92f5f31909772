package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/repository"
)

type fakeEventRepo struct {
	mu      sync.Mutex
	nextID  int64
	rows    []model.SessionEvent
	listErr error
}

func (f *fakeEventRepo) add(sessionCode, eventType, payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.rows = append(f.rows, model.SessionEvent{
		ID:          f.nextID,
		SessionCode: sessionCode,
		Type:        eventType,
		Payload:     json.RawMessage(payload),
	})
}

func (f *fakeEventRepo) Append(ctx context.Context, sessionCode, eventType string, payload json.RawMessage) (*model.SessionEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) ListAfter(ctx context.Context, sessionCode string, afterID int64, limit int) ([]model.SessionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.SessionEvent
	for _, row := range f.rows {
		if row.ID <= afterID {
			continue
		}
		if row.SessionCode != sessionCode && row.SessionCode != repository.GlobalScope {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEventRepo) MaxID(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextID, nil
}

func (f *fakeEventRepo) DeleteBySession(ctx context.Context, sessionCode string) error {
	return nil
}

func (f *fakeEventRepo) WithTx(tx *sqlx.Tx) repository.EventRepository {
	return f
}

func TestStreamer_DeliversOnlyNewEvents(t *testing.T) {
	repo := &fakeEventRepo{}
	repo.add("AB2D", model.EventItemLiked, `{"itemId":"old"}`)

	streamer := NewStreamer(repo, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- streamer.Run(ctx, rec, rec, "AB2D")
	}()

	// Appended after subscribe: must be delivered.
	time.Sleep(20 * time.Millisecond)
	repo.add("AB2D", model.EventItemMatched, `{"itemId":"movie-1"}`)
	repo.add("ZZZZ", model.EventItemLiked, `{"itemId":"foreign"}`)
	repo.add(repository.GlobalScope, model.EventSessionEnded, `{"code":"QQQQ"}`)

	time.Sleep(50 * time.Millisecond)
	cancel()

	require.NoError(t, <-done)

	body := rec.Body.String()
	assert.NotContains(t, body, "old")
	assert.Contains(t, body, "event: item_matched\n")
	assert.Contains(t, body, `data: {"itemId":"movie-1"}`)
	assert.Contains(t, body, "event: session_ended\n")
	assert.NotContains(t, body, "foreign")
}

func TestStreamer_SurvivesTransientFetchErrors(t *testing.T) {
	repo := &fakeEventRepo{listErr: errors.New("connection reset")}
	streamer := NewStreamer(repo, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- streamer.Run(ctx, rec, rec, "AB2D")
	}()

	time.Sleep(30 * time.Millisecond)

	// Store recovers; events queued during the outage still arrive.
	repo.mu.Lock()
	repo.listErr = nil
	repo.mu.Unlock()
	repo.add("AB2D", model.EventItemLiked, `{"itemId":"movie-1"}`)

	time.Sleep(50 * time.Millisecond)
	cancel()

	require.NoError(t, <-done)
	assert.Contains(t, rec.Body.String(), `data: {"itemId":"movie-1"}`)
}

func TestWriteEvent(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteEvent(rec, rec, model.SessionEvent{
		Type:    model.EventItemLiked,
		Payload: json.RawMessage(`{"itemId":"movie-1"}`),
	})

	require.NoError(t, err)
	assert.Equal(t, "event: item_liked\ndata: {\"itemId\":\"movie-1\"}\n\n", rec.Body.String())
}

func TestWriteComment(t *testing.T) {
	rec := httptest.NewRecorder()

	err := WriteComment(rec, rec, "keepalive")

	require.NoError(t, err)
	assert.Equal(t, ": keepalive\n\n", rec.Body.String())
}
