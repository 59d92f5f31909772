package model

import (
	"encoding/json"
	"time"
)

type SwipeDirection string

const (
	SwipeRight SwipeDirection = "right"
	SwipeLeft  SwipeDirection = "left"
)

func (d SwipeDirection) Valid() bool {
	return d == SwipeRight || d == SwipeLeft
}

// Opposite returns the other direction. Committing a swipe always
// removes the opposite-direction record first, so a like and a hide for
// the same (item, user, scope) never coexist.
func (d SwipeDirection) Opposite() SwipeDirection {
	if d == SwipeRight {
		return SwipeLeft
	}
	return SwipeRight
}

// Like is a right-swipe record. SessionCode is nil for solo likes;
// session-scoped and solo likes live in disjoint uniqueness domains.
// IsMatch is denormalized state: it reflects the evaluator's verdict as
// of the last recomputation, not a historical fact.
type Like struct {
	ID          int64            `db:"id" json:"-"`
	ItemID      string           `db:"item_id" json:"itemId"`
	UserID      string           `db:"user_id" json:"userId"`
	SessionCode *string          `db:"session_code" json:"sessionCode,omitempty"`
	Item        *json.RawMessage `db:"item" json:"item,omitempty"`
	IsMatch     bool             `db:"is_match" json:"isMatch"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// Hidden is a left-swipe record: same shape as Like, no match semantics.
type Hidden struct {
	ID          int64            `db:"id" json:"-"`
	ItemID      string           `db:"item_id" json:"itemId"`
	UserID      string           `db:"user_id" json:"userId"`
	SessionCode *string          `db:"session_code" json:"sessionCode,omitempty"`
	Item        *json.RawMessage `db:"item" json:"item,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// Liker is a resolved display identity of someone who liked an item,
// returned so the caller can render avatars without a second round trip.
type Liker struct {
	UserID      string  `db:"user_id" json:"userId"`
	DisplayName string  `db:"display_name" json:"displayName"`
	AvatarURL   *string `db:"avatar_url" json:"avatarUrl,omitempty"`
}
