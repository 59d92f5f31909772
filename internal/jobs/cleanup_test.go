package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"

	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/repository"
)

type mockSessionRepo struct {
	staleCodes []string
}

func (m *mockSessionRepo) FindByCode(ctx context.Context, code string) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) UpdateSettings(ctx context.Context, code string, settings json.RawMessage) error {
	return nil
}

func (m *mockSessionRepo) UpdateFilters(ctx context.Context, code string, filters json.RawMessage) error {
	return nil
}

func (m *mockSessionRepo) UpdateLending(ctx context.Context, code string, accessTokenEnc, deviceIDEnc *string) error {
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, code string) error {
	return nil
}

func (m *mockSessionRepo) ListCodesOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	return m.staleCodes, nil
}

func (m *mockSessionRepo) ListLending(ctx context.Context) ([]model.Session, error) {
	return nil, nil
}

func (m *mockSessionRepo) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return m
}

type mockUserRepo struct {
	staleGuestCount int64
	deletedBefore   time.Time
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, params repository.CreateUserParams) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	return nil
}

func (m *mockUserRepo) DeleteStaleGuests(ctx context.Context, before time.Time) (int64, error) {
	m.deletedBefore = before
	return m.staleGuestCount, nil
}

func (m *mockUserRepo) WithTx(tx *sqlx.Tx) repository.UserRepository {
	return m
}

func TestCleanupJob_StartStop(t *testing.T) {
	sessions := &mockSessionRepo{}
	users := &mockUserRepo{staleGuestCount: 2}

	job := NewCleanupJob(sessions, users, nil, 24*time.Hour, 100*time.Millisecond)

	job.Start()
	time.Sleep(50 * time.Millisecond)
	job.Stop()
}

func TestCleanupJob_GuestCutoff(t *testing.T) {
	sessions := &mockSessionRepo{}
	users := &mockUserRepo{}

	job := NewCleanupJob(sessions, users, nil, 24*time.Hour, time.Hour)
	job.cleanup()

	expected := time.Now().Add(-24 * time.Hour)
	assert.WithinDuration(t, expected, users.deletedBefore, 5*time.Second)
}
