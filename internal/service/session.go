package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/reelmates/match-server-go/internal/audit"
	"github.com/reelmates/match-server-go/internal/database"
	apperrors "github.com/reelmates/match-server-go/internal/errors"
	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/repository"
)

const (
	// O, I, 0, 1 are excluded so codes survive being read aloud.
	sessionCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	sessionCodeLength = 4
	maxCodeAttempts   = 5
)

// SessionStatus is the full session view returned by create/join/status.
type SessionStatus struct {
	Code           string                `json:"code"`
	HostUserID     string                `json:"hostUserId"`
	Provider       string                `json:"provider"`
	Settings       model.SessionSettings `json:"settings"`
	Filters        model.SessionFilters  `json:"filters"`
	Members        []model.MemberProfile `json:"members"`
	MatchedItemIDs []string              `json:"matchedItemIds"`
	CreatedAt      string                `json:"createdAt"`
}

type CreateSessionInput struct {
	ProviderConfig json.RawMessage
	Settings       json.RawMessage
	Filters        json.RawMessage
	MemberSettings json.RawMessage
}

type UpdateSettingsInput struct {
	Settings json.RawMessage
}

// SessionService drives the session lifecycle:
// nonexistent -> active -> (lending enabled|disabled) -> nonexistent.
type SessionService struct {
	db            *database.DB
	sessions      repository.SessionRepository
	members       repository.MemberRepository
	swipes        repository.SwipeRepository
	events        repository.EventRepository
	users         repository.UserRepository
	evaluator     *MatchEvaluator
	encryptionKey string
}

func NewSessionService(
	db *database.DB,
	sessions repository.SessionRepository,
	members repository.MemberRepository,
	swipes repository.SwipeRepository,
	events repository.EventRepository,
	users repository.UserRepository,
	evaluator *MatchEvaluator,
	encryptionKey string,
) *SessionService {
	return &SessionService{
		db:            db,
		sessions:      sessions,
		members:       members,
		swipes:        swipes,
		events:        events,
		users:         users,
		evaluator:     evaluator,
		encryptionKey: encryptionKey,
	}
}

type memberEventPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// Create mints a session owned by host. When the requested settings
// enable guest lending, the host's upstream credentials are snapshotted
// encrypted so guests can borrow them.
func (s *SessionService) Create(ctx context.Context, host *model.User, input CreateSessionInput) (*SessionStatus, error) {
	if host.IsGuest {
		return nil, apperrors.Forbidden("Guests cannot host sessions")
	}

	settings, err := model.ParseSettings(input.Settings)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}
	filters, err := model.ParseFilters(input.Filters)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}
	settingsRaw, err := settings.Marshal()
	if err != nil {
		return nil, apperrors.Internal("Failed to encode settings").WithCause(err)
	}
	filtersRaw, err := filters.Marshal()
	if err != nil {
		return nil, apperrors.Internal("Failed to encode filters").WithCause(err)
	}

	var tokenEnc, deviceEnc *string
	if settings.AllowGuests {
		tokenEnc, deviceEnc, err = s.encryptHostCredentials(host)
		if err != nil {
			return nil, err
		}
	}

	providerConfig := input.ProviderConfig
	if len(providerConfig) == 0 {
		providerConfig = json.RawMessage(`{}`)
	}

	// Hosting a new session implies leaving the current one.
	if err := s.leaveCurrent(ctx, host, ""); err != nil {
		return nil, err
	}

	var session *model.Session
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateSessionCode()
		if err != nil {
			return nil, apperrors.Internal("Failed to generate session code").WithCause(err)
		}

		err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
			created, err := s.sessions.WithTx(tx).Create(ctx, model.CreateSessionParams{
				Code:               code,
				HostUserID:         host.ID,
				HostAccessTokenEnc: tokenEnc,
				HostDeviceIDEnc:    deviceEnc,
				Provider:           host.Provider,
				ProviderConfig:     providerConfig,
				Filters:            filtersRaw,
				Settings:           settingsRaw,
				RandomSeed:         randomSeed(),
			})
			if err != nil {
				return err
			}
			session = created

			if _, err := s.members.WithTx(tx).Insert(ctx, code, host.ID, memberSettingsOrEmpty(input.MemberSettings)); err != nil {
				return err
			}
			return s.appendMemberEvent(ctx, tx, code, model.EventMemberJoined, host)
		})
		if err == nil {
			break
		}
		if repository.IsUniqueViolation(err) {
			// Code collision; the space is large so this is rare.
			session = nil
			continue
		}
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.Internal("Could not allocate a unique session code")
	}

	audit.Log(ctx, audit.Event{
		Type:        audit.EventSessionCreate,
		UserID:      host.ID,
		SessionCode: session.Code,
	})
	log.Info().
		Str("sessionCode", session.Code).
		Str("hostUserId", host.ID).
		Bool("lending", settings.AllowGuests).
		Msg("session created")

	return s.status(ctx, session)
}

// Join adds a user to a session. Non-guests must belong to the same
// provider and catalog server the session was created against; guests
// bypass the identity check and instead require lending to be enabled.
// Re-joining is idempotent; joining a different session leaves the
// current one first.
func (s *SessionService) Join(ctx context.Context, user *model.User, code string, memberSettings json.RawMessage) (*SessionStatus, error) {
	session, err := s.findSession(ctx, code)
	if err != nil {
		return nil, err
	}
	settings, err := model.ParseSettings(session.Settings)
	if err != nil {
		return nil, apperrors.Internal("Session settings are unreadable").WithCause(err)
	}

	if user.IsGuest {
		if !settings.AllowGuests || !session.LendingEnabled() {
			return nil, apperrors.Forbidden("Guest access is disabled for this session")
		}
	} else {
		if user.Provider != session.Provider {
			return nil, apperrors.ProviderMismatch(session.Provider)
		}
		sessionServer := model.ParseProviderConfig(session.ProviderConfig).ServerURL
		if sessionServer != "" && (user.ServerURL == nil || *user.ServerURL != sessionServer) {
			return nil, apperrors.ServerMismatch()
		}
	}

	if err := s.leaveCurrent(ctx, user, session.Code); err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		inserted, err := s.members.WithTx(tx).Insert(ctx, session.Code, user.ID, memberSettingsOrEmpty(memberSettings))
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		if err := s.appendMemberEvent(ctx, tx, session.Code, model.EventMemberJoined, user); err != nil {
			return err
		}

		// Membership growth is a match trigger too: an allMembers match
		// no longer holds once someone who hasn't liked the item joins.
		matched, err := s.swipes.WithTx(tx).ListMatchedItems(ctx, session.Code)
		if err != nil {
			return err
		}
		return s.evaluator.RecomputeItems(ctx, tx, session, settings, matched)
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:        audit.EventSessionJoin,
		UserID:      user.ID,
		SessionCode: session.Code,
	})

	return s.status(ctx, session)
}

// Leave removes the user's membership, purges their swipes for the
// session, and re-evaluates every item they had liked against the
// shrunken membership. The last member out deletes the session. Calling
// Leave while not in a session is a no-op.
func (s *SessionService) Leave(ctx context.Context, user *model.User) (bool, error) {
	member, err := s.members.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return false, apperrors.Database(err)
	}
	if member == nil {
		return false, nil
	}

	session, err := s.findSession(ctx, member.SessionCode)
	if err != nil {
		return false, err
	}
	if err := s.leaveSession(ctx, user, session); err != nil {
		return false, err
	}

	// Ephemeral guest identities do not outlive their session; deleting
	// the user row also drops the uploaded profile asset reference.
	if user.IsGuest {
		if err := s.users.Delete(ctx, user.ID); err != nil {
			log.Warn().Err(err).Str("userId", user.ID).Msg("failed to purge guest identity")
		}
	}

	return true, nil
}

// leaveSession is the membership teardown shared by Leave and the
// single-session handoff in Create/Join.
func (s *SessionService) leaveSession(ctx context.Context, user *model.User, session *model.Session) error {
	settings, err := model.ParseSettings(session.Settings)
	if err != nil {
		return apperrors.Internal("Session settings are unreadable").WithCause(err)
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		members := s.members.WithTx(tx)
		swipes := s.swipes.WithTx(tx)

		if _, err := members.Delete(ctx, session.Code, user.ID); err != nil {
			return err
		}
		likedItems, err := swipes.DeleteLikesByMember(ctx, session.Code, user.ID)
		if err != nil {
			return err
		}
		if err := swipes.DeleteHiddenByMember(ctx, session.Code, user.ID); err != nil {
			return err
		}

		remaining, err := members.Count(ctx, session.Code)
		if err != nil {
			return err
		}

		if remaining == 0 {
			// Full cascade: the event log for this session goes with it.
			if err := s.events.WithTx(tx).DeleteBySession(ctx, session.Code); err != nil {
				return err
			}
			return s.sessions.WithTx(tx).Delete(ctx, session.Code)
		}

		if err := s.appendMemberEvent(ctx, tx, session.Code, model.EventMemberLeft, user); err != nil {
			return err
		}
		return s.evaluator.RecomputeItems(ctx, tx, session, settings, likedItems)
	})
	if err != nil {
		return apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{
		Type:        audit.EventSessionLeave,
		UserID:      user.ID,
		SessionCode: session.Code,
	})
	return nil
}

// leaveCurrent tears down the user's existing membership, if any, so
// entering a new session never strands the old row. A user holds at
// most one membership at a time.
func (s *SessionService) leaveCurrent(ctx context.Context, user *model.User, keepCode string) error {
	current, err := s.members.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return apperrors.Database(err)
	}
	if current == nil || current.SessionCode == keepCode {
		return nil
	}
	previous, err := s.findSession(ctx, current.SessionCode)
	if err != nil {
		return err
	}
	return s.leaveSession(ctx, user, previous)
}

// UpdateSettings mutates match strategy, quotas and guest lending.
// These are host-only, decided by comparing the acting user's id to
// hostUserId: host identity transfer is deliberately unsupported.
func (s *SessionService) UpdateSettings(ctx context.Context, user *model.User, code string, input UpdateSettingsInput) (*SessionStatus, error) {
	session, err := s.findSession(ctx, code)
	if err != nil {
		return nil, err
	}
	if session.HostUserID != user.ID {
		return nil, apperrors.Forbidden("Only the session host can change settings")
	}

	oldSettings, err := model.ParseSettings(session.Settings)
	if err != nil {
		return nil, apperrors.Internal("Session settings are unreadable").WithCause(err)
	}
	newSettings, err := model.ParseSettings(input.Settings)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}
	settingsRaw, err := newSettings.Marshal()
	if err != nil {
		return nil, apperrors.Internal("Failed to encode settings").WithCause(err)
	}

	var tokenEnc, deviceEnc *string
	if newSettings.AllowGuests && !oldSettings.AllowGuests {
		tokenEnc, deviceEnc, err = s.encryptHostCredentials(user)
		if err != nil {
			return nil, err
		}
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		sessions := s.sessions.WithTx(tx)
		events := s.events.WithTx(tx)

		if err := sessions.UpdateSettings(ctx, session.Code, settingsRaw); err != nil {
			return err
		}

		if newSettings.AllowGuests != oldSettings.AllowGuests {
			// Disabling lending nulls the encrypted snapshot; guests
			// discover this as GuestKicked on their next credential
			// resolution.
			if err := sessions.UpdateLending(ctx, session.Code, tokenEnc, deviceEnc); err != nil {
				return err
			}
			payload, err := json.Marshal(map[string]bool{"enabled": newSettings.AllowGuests})
			if err != nil {
				return err
			}
			if _, err := events.Append(ctx, session.Code, model.EventLendingChanged, payload); err != nil {
				return err
			}
		}

		if _, err := events.Append(ctx, session.Code, model.EventSettingsUpdated, settingsRaw); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	if !newSettings.AllowGuests && oldSettings.AllowGuests {
		audit.Log(ctx, audit.Event{
			Type:        audit.EventLendingDisabled,
			UserID:      user.ID,
			SessionCode: session.Code,
		})
	}

	session.Settings = settingsRaw
	if newSettings.AllowGuests != oldSettings.AllowGuests {
		session.HostAccessTokenEnc = tokenEnc
		session.HostDeviceIDEnc = deviceEnc
	}
	return s.status(ctx, session)
}

// UpdateFilters mutates the catalog filters. Any current member may do
// this.
func (s *SessionService) UpdateFilters(ctx context.Context, user *model.User, code string, rawFilters json.RawMessage) (*SessionStatus, error) {
	session, err := s.findSession(ctx, code)
	if err != nil {
		return nil, err
	}

	member, err := s.members.Find(ctx, session.Code, user.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if member == nil {
		return nil, apperrors.NotInSession()
	}

	filters, err := model.ParseFilters(rawFilters)
	if err != nil {
		return nil, apperrors.ValidationError(err.Error())
	}
	filtersRaw, err := filters.Marshal()
	if err != nil {
		return nil, apperrors.Internal("Failed to encode filters").WithCause(err)
	}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.sessions.WithTx(tx).UpdateFilters(ctx, session.Code, filtersRaw); err != nil {
			return err
		}
		_, err := s.events.WithTx(tx).Append(ctx, session.Code, model.EventFiltersUpdated, filtersRaw)
		return err
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	session.Filters = filtersRaw
	return s.status(ctx, session)
}

// CurrentStatus returns the session the user is currently in, or nil.
func (s *SessionService) CurrentStatus(ctx context.Context, user *model.User) (*SessionStatus, error) {
	member, err := s.members.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if member == nil {
		return nil, nil
	}
	session, err := s.findSession(ctx, member.SessionCode)
	if err != nil {
		return nil, err
	}
	return s.status(ctx, session)
}

// ActiveSessionCode returns the code of the user's current session, or
// empty. The event stream handshake uses this to short-circuit
// non-subscribers.
func (s *SessionService) ActiveSessionCode(ctx context.Context, user *model.User) (string, error) {
	member, err := s.members.FindActiveByUser(ctx, user.ID)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if member == nil {
		return "", nil
	}
	return member.SessionCode, nil
}

// DeleteCascade removes a session and its event log in one transaction,
// announcing the end on the global scope first so connected members
// learn why their session vanished. Used by the stale-session reaper.
func (s *SessionService) DeleteCascade(ctx context.Context, code string) error {
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		payload, err := json.Marshal(map[string]string{"sessionCode": code})
		if err != nil {
			return err
		}
		events := s.events.WithTx(tx)
		if _, err := events.Append(ctx, repository.GlobalScope, model.EventSessionEnded, payload); err != nil {
			return err
		}
		if err := events.DeleteBySession(ctx, code); err != nil {
			return err
		}
		return s.sessions.WithTx(tx).Delete(ctx, code)
	})
}

func (s *SessionService) findSession(ctx context.Context, code string) (*model.Session, error) {
	session, err := s.sessions.FindByCode(ctx, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		return nil, apperrors.NotFound("Session")
	}
	return session, nil
}

func (s *SessionService) status(ctx context.Context, session *model.Session) (*SessionStatus, error) {
	settings, err := model.ParseSettings(session.Settings)
	if err != nil {
		return nil, apperrors.Internal("Session settings are unreadable").WithCause(err)
	}
	filters, err := model.ParseFilters(session.Filters)
	if err != nil {
		return nil, apperrors.Internal("Session filters are unreadable").WithCause(err)
	}
	members, err := s.members.ListProfiles(ctx, session.Code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	matched, err := s.swipes.ListMatchedItems(ctx, session.Code)
	if err != nil {
		return nil, apperrors.Database(err)
	}

	return &SessionStatus{
		Code:           session.Code,
		HostUserID:     session.HostUserID,
		Provider:       session.Provider,
		Settings:       settings,
		Filters:        filters,
		Members:        members,
		MatchedItemIDs: matched,
		CreatedAt:      session.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

func (s *SessionService) appendMemberEvent(ctx context.Context, tx *sqlx.Tx, code, eventType string, user *model.User) error {
	payload, err := json.Marshal(memberEventPayload{UserID: user.ID, DisplayName: user.DisplayName})
	if err != nil {
		return err
	}
	_, err = s.events.WithTx(tx).Append(ctx, code, eventType, payload)
	return err
}

func (s *SessionService) encryptHostCredentials(host *model.User) (*string, *string, error) {
	if s.encryptionKey == "" {
		return nil, nil, apperrors.ValidationError("Guest lending requires ENCRYPTION_KEY to be configured")
	}
	if host.AccessToken == nil || *host.AccessToken == "" {
		return nil, nil, apperrors.ValidationError("Host has no stored credentials to lend")
	}

	tokenEnc, err := encryptCredential(s.encryptionKey, *host.AccessToken)
	if err != nil {
		return nil, nil, apperrors.Internal("Failed to encrypt host credentials").WithCause(err)
	}

	var deviceEnc *string
	if host.DeviceID != nil && *host.DeviceID != "" {
		deviceEnc, err = encryptCredential(s.encryptionKey, *host.DeviceID)
		if err != nil {
			return nil, nil, apperrors.Internal("Failed to encrypt host credentials").WithCause(err)
		}
	}
	return tokenEnc, deviceEnc, nil
}

func memberSettingsOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return raw
}

func generateSessionCode() (string, error) {
	code := make([]byte, sessionCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(sessionCodeChars))))
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		code[i] = sessionCodeChars[n.Int64()]
	}
	return string(code), nil
}

// randomSeed is the session's stable shuffle seed: every member sees
// the catalog in the same order.
func randomSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(buf[:]) >> 1)
}
