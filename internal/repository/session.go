package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reelmates/match-server-go/internal/model"
)

type SessionRepository interface {
	FindByCode(ctx context.Context, code string) (*model.Session, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	UpdateSettings(ctx context.Context, code string, settings json.RawMessage) error
	UpdateFilters(ctx context.Context, code string, filters json.RawMessage) error
	UpdateLending(ctx context.Context, code string, accessTokenEnc, deviceIDEnc *string) error
	Delete(ctx context.Context, code string) error
	ListCodesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
	ListLending(ctx context.Context) ([]model.Session, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type sessionRepo struct {
	db sessionDB
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByCode(ctx context.Context, code string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE code = $1
	`, code)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (code, host_user_id, host_access_token_enc, host_device_id_enc,
			provider, provider_config, filters, settings, random_seed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *
	`, params.Code, params.HostUserID, params.HostAccessTokenEnc, params.HostDeviceIDEnc,
		params.Provider, params.ProviderConfig, params.Filters, params.Settings, params.RandomSeed)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) UpdateSettings(ctx context.Context, code string, settings json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET settings = $2 WHERE code = $1
	`, code, settings)
	return err
}

func (r *sessionRepo) UpdateFilters(ctx context.Context, code string, filters json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET filters = $2 WHERE code = $1
	`, code, filters)
	return err
}

// UpdateLending swaps the encrypted host credential snapshot. Passing
// nils disables guest lending; guests detect that on their next
// credential resolution.
func (r *sessionRepo) UpdateLending(ctx context.Context, code string, accessTokenEnc, deviceIDEnc *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET host_access_token_enc = $2, host_device_id_enc = $3 WHERE code = $1
	`, code, accessTokenEnc, deviceIDEnc)
	return err
}

func (r *sessionRepo) Delete(ctx context.Context, code string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE code = $1
	`, code)
	return err
}

func (r *sessionRepo) ListCodesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	codes := []string{}
	err := r.db.SelectContext(ctx, &codes, `
		SELECT code FROM sessions WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *sessionRepo) ListLending(ctx context.Context) ([]model.Session, error) {
	sessions := []model.Session{}
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions WHERE host_access_token_enc IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
