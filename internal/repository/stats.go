package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Stats is a point-in-time glance at table sizes for the admin surface.
type Stats struct {
	Users        int64 `db:"users" json:"users"`
	GuestUsers   int64 `db:"guest_users" json:"guestUsers"`
	Sessions     int64 `db:"sessions" json:"sessions"`
	Members      int64 `db:"members" json:"members"`
	Likes        int64 `db:"likes" json:"likes"`
	MatchedItems int64 `db:"matched_items" json:"matchedItems"`
	Events       int64 `db:"events" json:"events"`
}

type StatsRepository interface {
	Collect(ctx context.Context) (*Stats, error)
}

type statsRepo struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepo{db: db}
}

func (r *statsRepo) Collect(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM users WHERE is_guest) AS guest_users,
			(SELECT COUNT(*) FROM sessions) AS sessions,
			(SELECT COUNT(*) FROM session_members) AS members,
			(SELECT COUNT(*) FROM likes) AS likes,
			(SELECT COUNT(DISTINCT (session_code, item_id)) FROM likes WHERE is_match) AS matched_items,
			(SELECT COUNT(*) FROM session_events) AS events
	`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
