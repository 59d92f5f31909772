package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/reelmates/match-server-go/internal/audit"
	apperrors "github.com/reelmates/match-server-go/internal/errors"
	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/repository"
	"github.com/reelmates/match-server-go/internal/util"
)

// CredentialService resolves which upstream catalog credentials apply
// to a request: the user's own, or for guests the session host's
// snapshot, held AES-256-GCM encrypted while lending is enabled.
type CredentialService struct {
	sessions      repository.SessionRepository
	members       repository.MemberRepository
	users         repository.UserRepository
	encryptionKey string
}

func NewCredentialService(
	sessions repository.SessionRepository,
	members repository.MemberRepository,
	users repository.UserRepository,
	encryptionKey string,
) *CredentialService {
	return &CredentialService{
		sessions:      sessions,
		members:       members,
		users:         users,
		encryptionKey: encryptionKey,
	}
}

// Resolve returns the credentials the user should present upstream.
// For guests, a missing session or a nulled credential snapshot both
// surface as GuestKicked: the caller must drop the guest locally, not
// retry.
func (s *CredentialService) Resolve(ctx context.Context, user *model.User) (*model.Credentials, error) {
	if !user.IsGuest {
		if user.AccessToken == nil || *user.AccessToken == "" {
			return nil, apperrors.Unauthorized("No stored catalog credentials")
		}
		return &model.Credentials{
			AccessToken: *user.AccessToken,
			DeviceID:    deref(user.DeviceID),
			UserID:      user.ID,
			ServerURL:   deref(user.ServerURL),
			Provider:    user.Provider,
		}, nil
	}

	member, err := s.members.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if member == nil {
		return nil, apperrors.GuestKicked()
	}

	session, err := s.sessions.FindByCode(ctx, member.SessionCode)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil || !session.LendingEnabled() {
		audit.Log(ctx, audit.Event{
			Type:        audit.EventGuestKicked,
			UserID:      user.ID,
			SessionCode: member.SessionCode,
		})
		return nil, apperrors.GuestKicked()
	}

	if s.encryptionKey == "" {
		return nil, apperrors.Internal("Credential decryption is not configured")
	}

	accessToken, err := util.Decrypt(s.encryptionKey, *session.HostAccessTokenEnc)
	if err != nil {
		return nil, apperrors.Internal("Failed to decrypt host credentials").WithCause(err)
	}
	deviceID := ""
	if session.HostDeviceIDEnc != nil {
		deviceID, err = util.Decrypt(s.encryptionKey, *session.HostDeviceIDEnc)
		if err != nil {
			return nil, apperrors.Internal("Failed to decrypt host credentials").WithCause(err)
		}
	}

	host, err := s.users.FindByID(ctx, session.HostUserID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	serverURL := model.ParseProviderConfig(session.ProviderConfig).ServerURL
	if serverURL == "" && host != nil {
		serverURL = deref(host.ServerURL)
	}

	return &model.Credentials{
		AccessToken: accessToken,
		DeviceID:    deviceID,
		UserID:      session.HostUserID,
		ServerURL:   serverURL,
		Provider:    session.Provider,
	}, nil
}

// MigrateLegacyCredentials upgrades host credential snapshots written
// before encryption at rest existed. Runs once at startup; steady-state
// resolution never rewrites rows.
func (s *CredentialService) MigrateLegacyCredentials(ctx context.Context) (int, error) {
	if s.encryptionKey == "" {
		return 0, nil
	}

	sessions, err := s.sessions.ListLending(ctx)
	if err != nil {
		return 0, err
	}

	migrated := 0
	for _, session := range sessions {
		if util.IsEncrypted(*session.HostAccessTokenEnc) {
			continue
		}

		tokenEnc, err := encryptCredential(s.encryptionKey, *session.HostAccessTokenEnc)
		if err != nil {
			return migrated, err
		}
		deviceEnc := session.HostDeviceIDEnc
		if deviceEnc != nil && !util.IsEncrypted(*deviceEnc) {
			deviceEnc, err = encryptCredential(s.encryptionKey, *deviceEnc)
			if err != nil {
				return migrated, err
			}
		}

		if err := s.sessions.UpdateLending(ctx, session.Code, tokenEnc, deviceEnc); err != nil {
			return migrated, err
		}
		migrated++
		log.Info().Str("sessionCode", session.Code).Msg("re-encrypted legacy host credentials")
	}
	return migrated, nil
}

func encryptCredential(key, plaintext string) (*string, error) {
	encrypted, err := util.Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	return &encrypted, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
