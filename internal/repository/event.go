package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/reelmates/match-server-go/internal/model"
)

// GlobalScope is the reserved session code meaning "broadcast to all
// connected clients regardless of session".
const GlobalScope = "*"

type EventRepository interface {
	// Append writes one event row. Callers append within the same
	// transaction as the mutation the event describes.
	Append(ctx context.Context, sessionCode, eventType string, payload json.RawMessage) (*model.SessionEvent, error)
	// ListAfter returns events for the session or the global scope with
	// id strictly greater than afterID, in ascending id order.
	ListAfter(ctx context.Context, sessionCode string, afterID int64, limit int) ([]model.SessionEvent, error)
	// MaxID returns the current highest event id; subscribers capture it
	// at connect time so history predating the connection is never replayed.
	MaxID(ctx context.Context) (int64, error)
	DeleteBySession(ctx context.Context, sessionCode string) error
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) EventRepository
}

type eventDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type eventRepo struct {
	db eventDB
}

func NewEventRepository(db *sqlx.DB) EventRepository {
	return &eventRepo{db: db}
}

func (r *eventRepo) WithTx(tx *sqlx.Tx) EventRepository {
	return &eventRepo{db: tx}
}

func (r *eventRepo) Append(ctx context.Context, sessionCode, eventType string, payload json.RawMessage) (*model.SessionEvent, error) {
	if payload == nil {
		payload = json.RawMessage(`{}`)
	}
	var event model.SessionEvent
	err := r.db.GetContext(ctx, &event, `
		INSERT INTO session_events (session_code, type, payload)
		VALUES ($1, $2, $3)
		RETURNING *
	`, sessionCode, eventType, payload)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *eventRepo) ListAfter(ctx context.Context, sessionCode string, afterID int64, limit int) ([]model.SessionEvent, error) {
	events := []model.SessionEvent{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM session_events
		WHERE session_code IN ($1, $2) AND id > $3
		ORDER BY id ASC
		LIMIT $4
	`, sessionCode, GlobalScope, afterID, limit)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepo) MaxID(ctx context.Context) (int64, error) {
	var maxID int64
	err := r.db.GetContext(ctx, &maxID, `
		SELECT COALESCE(MAX(id), 0) FROM session_events
	`)
	return maxID, err
}

func (r *eventRepo) DeleteBySession(ctx context.Context, sessionCode string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM session_events WHERE session_code = $1
	`, sessionCode)
	return err
}
