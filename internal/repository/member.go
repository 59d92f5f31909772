package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/reelmates/match-server-go/internal/model"
)

type MemberRepository interface {
	Find(ctx context.Context, sessionCode, userID string) (*model.SessionMember, error)
	// FindActiveByUser returns the user's current session membership, or
	// nil when the user is not in any session.
	FindActiveByUser(ctx context.Context, userID string) (*model.SessionMember, error)
	// Insert adds a member; returns false when the (session, user) pair
	// already exists (idempotent re-join).
	Insert(ctx context.Context, sessionCode, userID string, settings json.RawMessage) (bool, error)
	ListBySession(ctx context.Context, sessionCode string) ([]model.SessionMember, error)
	ListProfiles(ctx context.Context, sessionCode string) ([]model.MemberProfile, error)
	Count(ctx context.Context, sessionCode string) (int, error)
	// Delete removes a membership; returns false when it did not exist.
	Delete(ctx context.Context, sessionCode, userID string) (bool, error)
	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) MemberRepository
}

type memberDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type memberRepo struct {
	db memberDB
}

func NewMemberRepository(db *sqlx.DB) MemberRepository {
	return &memberRepo{db: db}
}

func (r *memberRepo) WithTx(tx *sqlx.Tx) MemberRepository {
	return &memberRepo{db: tx}
}

func (r *memberRepo) Find(ctx context.Context, sessionCode, userID string) (*model.SessionMember, error) {
	var member model.SessionMember
	err := r.db.GetContext(ctx, &member, `
		SELECT * FROM session_members WHERE session_code = $1 AND user_id = $2
	`, sessionCode, userID)
	return HandleNotFound(&member, err)
}

func (r *memberRepo) FindActiveByUser(ctx context.Context, userID string) (*model.SessionMember, error) {
	var member model.SessionMember
	err := r.db.GetContext(ctx, &member, `
		SELECT * FROM session_members
		WHERE user_id = $1
		ORDER BY joined_at DESC
		LIMIT 1
	`, userID)
	return HandleNotFound(&member, err)
}

func (r *memberRepo) Insert(ctx context.Context, sessionCode, userID string, settings json.RawMessage) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO session_members (session_code, user_id, settings)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_code, user_id) DO NOTHING
	`, sessionCode, userID, settings)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *memberRepo) ListBySession(ctx context.Context, sessionCode string) ([]model.SessionMember, error) {
	members := []model.SessionMember{}
	err := r.db.SelectContext(ctx, &members, `
		SELECT * FROM session_members
		WHERE session_code = $1
		ORDER BY joined_at ASC
	`, sessionCode)
	if err != nil {
		return nil, err
	}
	return members, nil
}

// ListProfiles resolves member display identities for status responses.
func (r *memberRepo) ListProfiles(ctx context.Context, sessionCode string) ([]model.MemberProfile, error) {
	profiles := []model.MemberProfile{}
	err := r.db.SelectContext(ctx, &profiles, `
		SELECT u.id AS user_id, u.display_name, u.avatar_url, u.is_guest, m.joined_at
		FROM session_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.session_code = $1
		ORDER BY m.joined_at ASC
	`, sessionCode)
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *memberRepo) Count(ctx context.Context, sessionCode string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM session_members WHERE session_code = $1
	`, sessionCode)
	return count, err
}

func (r *memberRepo) Delete(ctx context.Context, sessionCode, userID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM session_members WHERE session_code = $1 AND user_id = $2
	`, sessionCode, userID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}
