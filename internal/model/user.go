package model

import "time"

// User is the identity record the auth middleware resolves from a
// bearer token. Identity issuance itself happens upstream; this table
// only mirrors what the engine needs: who the user is, which catalog
// provider/server they belong to, and their own upstream credentials.
type User struct {
	ID          string    `db:"id" json:"id"`
	TokenHash   string    `db:"token_hash" json:"-"`
	DisplayName string    `db:"display_name" json:"displayName"`
	AvatarURL   *string   `db:"avatar_url" json:"avatarUrl,omitempty"`
	Provider    string    `db:"provider" json:"provider"`
	ServerURL   *string   `db:"server_url" json:"serverUrl,omitempty"`
	AccessToken *string   `db:"access_token" json:"-"`
	DeviceID    *string   `db:"device_id" json:"-"`
	IsGuest     bool      `db:"is_guest" json:"isGuest"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Credentials is what the credential delegate resolves for upstream
// catalog calls: the user's own credentials, or the session host's for
// guests.
type Credentials struct {
	AccessToken string `json:"accessToken"`
	DeviceID    string `json:"deviceId"`
	UserID      string `json:"userId"`
	ServerURL   string `json:"serverUrl"`
	Provider    string `json:"provider"`
}
