package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberRepository_InsertIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	createTestSession(t, db, "AB2D", alice.ID)

	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, "AB2D", bob.ID, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, "AB2D", bob.ID, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := repo.Count(ctx, "AB2D")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMemberRepository_FindActiveByUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	alice := createTestUser(t, db, "alice")
	createTestSession(t, db, "AB2D", alice.ID)

	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	member, err := repo.FindActiveByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, "AB2D", member.SessionCode)

	t.Run("most recent join wins", func(t *testing.T) {
		time.Sleep(10 * time.Millisecond)
		createTestSession(t, db, "WXYZ", alice.ID)

		member, err := repo.FindActiveByUser(ctx, alice.ID)
		require.NoError(t, err)
		require.NotNil(t, member)
		assert.Equal(t, "WXYZ", member.SessionCode)
	})

	t.Run("nil when not a member anywhere", func(t *testing.T) {
		bob := createTestUser(t, db, "bob")
		member, err := repo.FindActiveByUser(ctx, bob.ID)
		require.NoError(t, err)
		assert.Nil(t, member)
	})
}

func TestMemberRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	alice := createTestUser(t, db, "alice")
	createTestSession(t, db, "AB2D", alice.ID)

	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	deleted, err := repo.Delete(ctx, "AB2D", alice.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, "AB2D", alice.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestMemberRepository_ListProfiles(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	createTestSession(t, db, "AB2D", alice.ID)

	repo := NewMemberRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Insert(ctx, "AB2D", bob.ID, json.RawMessage(`{}`))
	require.NoError(t, err)

	profiles, err := repo.ListProfiles(ctx, "AB2D")
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "alice", profiles[0].DisplayName)
	assert.Equal(t, "bob", profiles[1].DisplayName)
}
