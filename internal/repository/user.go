package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/reelmates/match-server-go/internal/model"
)

type CreateUserParams struct {
	TokenHash   string
	DisplayName string
	AvatarURL   *string
	Provider    string
	ServerURL   *string
	AccessToken *string
	DeviceID    *string
	IsGuest     bool
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error)
	Create(ctx context.Context, params CreateUserParams) (*model.User, error)
	Delete(ctx context.Context, id string) error
	DeleteStaleGuests(ctx context.Context, before time.Time) (int64, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) UserRepository
}

type userDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type userRepo struct {
	db userDB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepo{db: tx}
}

func (r *userRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE id = $1
	`, id)
	return HandleNotFound(&user, err)
}

func (r *userRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&user, err)
}

func (r *userRepo) Create(ctx context.Context, params CreateUserParams) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		INSERT INTO users (token_hash, display_name, avatar_url, provider, server_url, access_token, device_id, is_guest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, params.TokenHash, params.DisplayName, params.AvatarURL, params.Provider,
		params.ServerURL, params.AccessToken, params.DeviceID, params.IsGuest)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM users WHERE id = $1
	`, id)
	return err
}

// DeleteStaleGuests removes guest identities that are no longer in any
// session and predate the cutoff. Their likes and hidden rows cascade.
func (r *userRepo) DeleteStaleGuests(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM users
		WHERE is_guest = TRUE
		AND created_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM session_members m WHERE m.user_id = users.id
		)
	`, before)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
