package database

import (
	"context"
	"fmt"
)

// The partial unique indexes on likes/hidden are load-bearing: a
// session-scoped swipe and a solo swipe for the same (item, user) live
// in two disjoint uniqueness domains, and insert races serialize on
// these constraints instead of explicit locks.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		token_hash TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		avatar_url TEXT,
		provider TEXT NOT NULL,
		server_url TEXT,
		access_token TEXT,
		device_id TEXT,
		is_guest BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS sessions (
		code TEXT PRIMARY KEY,
		host_user_id UUID NOT NULL REFERENCES users(id),
		host_access_token_enc TEXT,
		host_device_id_enc TEXT,
		provider TEXT NOT NULL,
		provider_config JSONB NOT NULL DEFAULT '{}',
		filters JSONB NOT NULL DEFAULT '{}',
		settings JSONB NOT NULL DEFAULT '{}',
		random_seed BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT sessions_code_format CHECK (code ~ '^[A-Z0-9]{4}$')
	)`,

	`CREATE TABLE IF NOT EXISTS session_members (
		id BIGSERIAL PRIMARY KEY,
		session_code TEXT NOT NULL REFERENCES sessions(code) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		settings JSONB NOT NULL DEFAULT '{}',
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT session_members_unique UNIQUE (session_code, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS likes (
		id BIGSERIAL PRIMARY KEY,
		item_id TEXT NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_code TEXT REFERENCES sessions(code) ON DELETE CASCADE,
		item JSONB,
		is_match BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS likes_session_unique
		ON likes (item_id, user_id, session_code) WHERE session_code IS NOT NULL`,

	`CREATE UNIQUE INDEX IF NOT EXISTS likes_solo_unique
		ON likes (item_id, user_id) WHERE session_code IS NULL`,

	`CREATE INDEX IF NOT EXISTS likes_session_item
		ON likes (session_code, item_id) WHERE session_code IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS hidden (
		id BIGSERIAL PRIMARY KEY,
		item_id TEXT NOT NULL,
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		session_code TEXT REFERENCES sessions(code) ON DELETE CASCADE,
		item JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS hidden_session_unique
		ON hidden (item_id, user_id, session_code) WHERE session_code IS NOT NULL`,

	`CREATE UNIQUE INDEX IF NOT EXISTS hidden_solo_unique
		ON hidden (item_id, user_id) WHERE session_code IS NULL`,

	// No FK on session_code: the reserved global scope has no session
	// row. Session cascade deletes these rows explicitly in the same
	// transaction as the session delete.
	`CREATE TABLE IF NOT EXISTS session_events (
		id BIGSERIAL PRIMARY KEY,
		session_code TEXT NOT NULL,
		type TEXT NOT NULL,
		payload JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS session_events_code_id
		ON session_events (session_code, id)`,
}

// Migrate applies the schema. Statements are idempotent so this runs
// unconditionally at startup.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
