package model

import (
	"encoding/json"
	"time"
)

// Session is a shared swiping context identified by a 4-character code.
// The encrypted host credential columns are non-null only while the
// host has guest lending enabled.
type Session struct {
	Code               string          `db:"code" json:"code"`
	HostUserID         string          `db:"host_user_id" json:"hostUserId"`
	HostAccessTokenEnc *string         `db:"host_access_token_enc" json:"-"`
	HostDeviceIDEnc    *string         `db:"host_device_id_enc" json:"-"`
	Provider           string          `db:"provider" json:"provider"`
	ProviderConfig     json.RawMessage `db:"provider_config" json:"providerConfig"`
	Filters            json.RawMessage `db:"filters" json:"filters"`
	Settings           json.RawMessage `db:"settings" json:"settings"`
	RandomSeed         int64           `db:"random_seed" json:"randomSeed"`
	CreatedAt          time.Time       `db:"created_at" json:"createdAt"`
}

// LendingEnabled reports whether guests may currently borrow the host's
// credentials.
func (s *Session) LendingEnabled() bool {
	return s.HostAccessTokenEnc != nil
}

type CreateSessionParams struct {
	Code               string
	HostUserID         string
	HostAccessTokenEnc *string
	HostDeviceIDEnc    *string
	Provider           string
	ProviderConfig     json.RawMessage
	Filters            json.RawMessage
	Settings           json.RawMessage
	RandomSeed         int64
}

// MemberProfile is a member's resolved display identity.
type MemberProfile struct {
	UserID      string    `db:"user_id" json:"userId"`
	DisplayName string    `db:"display_name" json:"displayName"`
	AvatarURL   *string   `db:"avatar_url" json:"avatarUrl,omitempty"`
	IsGuest     bool      `db:"is_guest" json:"isGuest"`
	JoinedAt    time.Time `db:"joined_at" json:"joinedAt"`
}

// ProviderConfig is the opaque blob needed to reach the upstream
// catalog. Only serverUrl is interpreted here, for the join-time server
// identity check; everything else passes through untouched.
type ProviderConfig struct {
	ServerURL string `json:"serverUrl"`
}

func ParseProviderConfig(raw json.RawMessage) ProviderConfig {
	var cfg ProviderConfig
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &cfg)
	}
	return cfg
}

// SessionMember is current occupancy: its absence for a (session, user)
// pair means "not in the session". Settings holds a per-member snapshot
// copied in at join time.
type SessionMember struct {
	ID          int64           `db:"id" json:"-"`
	SessionCode string          `db:"session_code" json:"sessionCode"`
	UserID      string          `db:"user_id" json:"userId"`
	Settings    json.RawMessage `db:"settings" json:"settings"`
	JoinedAt    time.Time       `db:"joined_at" json:"joinedAt"`
}
