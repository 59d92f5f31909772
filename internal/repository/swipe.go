package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/reelmates/match-server-go/internal/model"
)

type InsertSwipeParams struct {
	ItemID      string
	UserID      string
	SessionCode *string
	Item        *json.RawMessage
}

// SwipeRepository persists likes and hidden rows. All lookups use
// IS NOT DISTINCT FROM on session_code so the nil (solo) scope and the
// session scope stay separate uniqueness domains, matching the partial
// unique indexes.
type SwipeRepository interface {
	FindLike(ctx context.Context, itemID, userID string, sessionCode *string) (*model.Like, error)
	// InsertLike records a like. A nil result with a nil error means a
	// concurrent duplicate won the insert race; the conflict is skipped
	// server-side so the surrounding transaction stays usable.
	InsertLike(ctx context.Context, params InsertSwipeParams) (*model.Like, error)
	TouchLike(ctx context.Context, id int64, item *json.RawMessage) error
	DeleteLike(ctx context.Context, itemID, userID string, sessionCode *string) (bool, error)
	// DeleteLikesByMember removes a member's session likes, returning
	// the affected item ids so their matches can be re-evaluated.
	DeleteLikesByMember(ctx context.Context, sessionCode, userID string) ([]string, error)
	CountLikes(ctx context.Context, sessionCode, userID string) (int, error)
	ListLikers(ctx context.Context, sessionCode, itemID string) ([]model.Liker, error)
	SetMatch(ctx context.Context, sessionCode, itemID string, isMatch bool) error
	IsMatched(ctx context.Context, sessionCode, itemID string) (bool, error)
	CountMatchedItems(ctx context.Context, sessionCode string) (int, error)
	ListMatchedItems(ctx context.Context, sessionCode string) ([]string, error)

	FindHidden(ctx context.Context, itemID, userID string, sessionCode *string) (*model.Hidden, error)
	// InsertHidden mirrors InsertLike: nil, nil on a lost insert race.
	InsertHidden(ctx context.Context, params InsertSwipeParams) (*model.Hidden, error)
	TouchHidden(ctx context.Context, id int64, item *json.RawMessage) error
	DeleteHidden(ctx context.Context, itemID, userID string, sessionCode *string) (bool, error)
	DeleteHiddenByMember(ctx context.Context, sessionCode, userID string) error
	CountHidden(ctx context.Context, sessionCode, userID string) (int, error)

	// WithTx returns a new repository that uses the given transaction
	WithTx(tx *sqlx.Tx) SwipeRepository
}

type swipeDB interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type swipeRepo struct {
	db swipeDB
}

func NewSwipeRepository(db *sqlx.DB) SwipeRepository {
	return &swipeRepo{db: db}
}

func (r *swipeRepo) WithTx(tx *sqlx.Tx) SwipeRepository {
	return &swipeRepo{db: tx}
}

func (r *swipeRepo) FindLike(ctx context.Context, itemID, userID string, sessionCode *string) (*model.Like, error) {
	var like model.Like
	err := r.db.GetContext(ctx, &like, `
		SELECT * FROM likes
		WHERE item_id = $1 AND user_id = $2 AND session_code IS NOT DISTINCT FROM $3
	`, itemID, userID, sessionCode)
	return HandleNotFound(&like, err)
}

func (r *swipeRepo) InsertLike(ctx context.Context, params InsertSwipeParams) (*model.Like, error) {
	var like model.Like
	err := r.db.GetContext(ctx, &like, `
		INSERT INTO likes (item_id, user_id, session_code, item)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING *
	`, params.ItemID, params.UserID, params.SessionCode, params.Item)
	return HandleNotFound(&like, err)
}

// TouchLike bumps created_at so a re-liked item resurfaces at the top
// of the likes ordering without creating a second row.
func (r *swipeRepo) TouchLike(ctx context.Context, id int64, item *json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE likes SET created_at = NOW(), item = COALESCE($2, item) WHERE id = $1
	`, id, item)
	return err
}

func (r *swipeRepo) DeleteLike(ctx context.Context, itemID, userID string, sessionCode *string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM likes
		WHERE item_id = $1 AND user_id = $2 AND session_code IS NOT DISTINCT FROM $3
	`, itemID, userID, sessionCode)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *swipeRepo) DeleteLikesByMember(ctx context.Context, sessionCode, userID string) ([]string, error) {
	itemIDs := []string{}
	err := r.db.SelectContext(ctx, &itemIDs, `
		DELETE FROM likes
		WHERE session_code = $1 AND user_id = $2
		RETURNING item_id
	`, sessionCode, userID)
	if err != nil {
		return nil, err
	}
	return itemIDs, nil
}

func (r *swipeRepo) CountLikes(ctx context.Context, sessionCode, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM likes WHERE session_code = $1 AND user_id = $2
	`, sessionCode, userID)
	return count, err
}

// ListLikers resolves display identities of everyone who liked an item,
// restricted to current session members.
func (r *swipeRepo) ListLikers(ctx context.Context, sessionCode, itemID string) ([]model.Liker, error) {
	likers := []model.Liker{}
	err := r.db.SelectContext(ctx, &likers, `
		SELECT u.id AS user_id, u.display_name, u.avatar_url
		FROM likes l
		JOIN users u ON u.id = l.user_id
		JOIN session_members m ON m.session_code = l.session_code AND m.user_id = l.user_id
		WHERE l.session_code = $1 AND l.item_id = $2
		ORDER BY l.created_at ASC
	`, sessionCode, itemID)
	if err != nil {
		return nil, err
	}
	return likers, nil
}

func (r *swipeRepo) SetMatch(ctx context.Context, sessionCode, itemID string, isMatch bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE likes SET is_match = $3 WHERE session_code = $1 AND item_id = $2
	`, sessionCode, itemID, isMatch)
	return err
}

func (r *swipeRepo) IsMatched(ctx context.Context, sessionCode, itemID string) (bool, error) {
	var matched bool
	err := r.db.GetContext(ctx, &matched, `
		SELECT EXISTS (
			SELECT 1 FROM likes
			WHERE session_code = $1 AND item_id = $2 AND is_match = TRUE
		)
	`, sessionCode, itemID)
	return matched, err
}

func (r *swipeRepo) CountMatchedItems(ctx context.Context, sessionCode string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(DISTINCT item_id) FROM likes
		WHERE session_code = $1 AND is_match = TRUE
	`, sessionCode)
	return count, err
}

func (r *swipeRepo) ListMatchedItems(ctx context.Context, sessionCode string) ([]string, error) {
	itemIDs := []string{}
	err := r.db.SelectContext(ctx, &itemIDs, `
		SELECT DISTINCT item_id FROM likes
		WHERE session_code = $1 AND is_match = TRUE
	`, sessionCode)
	if err != nil {
		return nil, err
	}
	return itemIDs, nil
}

func (r *swipeRepo) FindHidden(ctx context.Context, itemID, userID string, sessionCode *string) (*model.Hidden, error) {
	var hidden model.Hidden
	err := r.db.GetContext(ctx, &hidden, `
		SELECT * FROM hidden
		WHERE item_id = $1 AND user_id = $2 AND session_code IS NOT DISTINCT FROM $3
	`, itemID, userID, sessionCode)
	return HandleNotFound(&hidden, err)
}

func (r *swipeRepo) InsertHidden(ctx context.Context, params InsertSwipeParams) (*model.Hidden, error) {
	var hidden model.Hidden
	err := r.db.GetContext(ctx, &hidden, `
		INSERT INTO hidden (item_id, user_id, session_code, item)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING
		RETURNING *
	`, params.ItemID, params.UserID, params.SessionCode, params.Item)
	return HandleNotFound(&hidden, err)
}

func (r *swipeRepo) TouchHidden(ctx context.Context, id int64, item *json.RawMessage) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE hidden SET created_at = NOW(), item = COALESCE($2, item) WHERE id = $1
	`, id, item)
	return err
}

func (r *swipeRepo) DeleteHidden(ctx context.Context, itemID, userID string, sessionCode *string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM hidden
		WHERE item_id = $1 AND user_id = $2 AND session_code IS NOT DISTINCT FROM $3
	`, itemID, userID, sessionCode)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *swipeRepo) DeleteHiddenByMember(ctx context.Context, sessionCode, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM hidden WHERE session_code = $1 AND user_id = $2
	`, sessionCode, userID)
	return err
}

func (r *swipeRepo) CountHidden(ctx context.Context, sessionCode, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM hidden WHERE session_code = $1 AND user_id = $2
	`, sessionCode, userID)
	return count, err
}
