package model

import (
	"encoding/json"
	"time"
)

// Event types appended to the session event log.
const (
	EventMemberJoined    = "member_joined"
	EventMemberLeft      = "member_left"
	EventSessionEnded    = "session_ended"
	EventSettingsUpdated = "settings_updated"
	EventFiltersUpdated  = "filters_updated"
	EventLendingChanged  = "lending_changed"
	EventItemLiked       = "item_liked"
	EventItemUnliked     = "item_unliked"
	EventItemHidden      = "item_hidden"
	EventItemMatched     = "item_matched"
	EventMatchRevoked    = "match_revoked"
	EventMatchBlocked    = "match_blocked"
)

// SessionEvent is one row of the append-only durable log the relay
// replays from. IDs are bigserial, so within a session delivery order
// is total.
type SessionEvent struct {
	ID          int64           `db:"id" json:"id"`
	SessionCode string          `db:"session_code" json:"sessionCode"`
	Type        string          `db:"type" json:"type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
}
