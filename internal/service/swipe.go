package service

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/reelmates/match-server-go/internal/audit"
	"github.com/reelmates/match-server-go/internal/database"
	apperrors "github.com/reelmates/match-server-go/internal/errors"
	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/repository"
)

// SwipeResult is what a committed swipe reports back to the client.
type SwipeResult struct {
	Success             bool          `json:"success"`
	IsMatch             bool          `json:"isMatch"`
	MatchBlockedByLimit bool          `json:"matchBlockedByLimit,omitempty"`
	LikedBy             []model.Liker `json:"likedBy,omitempty"`
}

// SwipeService validates and commits swipes as idempotent,
// quota-checked transitions. Each call is one transaction: the state
// change, the match recomputation and the event append commit together.
type SwipeService struct {
	db        *database.DB
	sessions  repository.SessionRepository
	members   repository.MemberRepository
	swipes    repository.SwipeRepository
	events    repository.EventRepository
	evaluator *MatchEvaluator
}

func NewSwipeService(
	db *database.DB,
	sessions repository.SessionRepository,
	members repository.MemberRepository,
	swipes repository.SwipeRepository,
	events repository.EventRepository,
	evaluator *MatchEvaluator,
) *SwipeService {
	return &SwipeService{
		db:        db,
		sessions:  sessions,
		members:   members,
		swipes:    swipes,
		events:    events,
		evaluator: evaluator,
	}
}

type swipeEventPayload struct {
	ItemID string `json:"itemId"`
	UserID string `json:"userId"`
}

// Swipe commits one like or hide. Re-swiping the same direction is an
// idempotent refresh; the opposite direction atomically displaces any
// prior record. Quotas apply to new session-scoped rows only.
func (s *SwipeService) Swipe(
	ctx context.Context,
	user *model.User,
	sessionCode *string,
	itemID string,
	direction model.SwipeDirection,
	item *json.RawMessage,
) (*SwipeResult, error) {
	session, settings, err := s.resolveScope(ctx, user, sessionCode)
	if err != nil {
		return nil, err
	}

	result := &SwipeResult{Success: true}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if direction == model.SwipeRight {
			return s.commitLike(ctx, tx, user, session, settings, itemID, item, result)
		}
		return s.commitHide(ctx, tx, user, session, settings, itemID, item, result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unswipe removes a prior like. Removing a like that does not exist is
// a no-op success.
func (s *SwipeService) Unswipe(ctx context.Context, user *model.User, sessionCode *string, itemID string) (*SwipeResult, error) {
	session, settings, err := s.resolveScope(ctx, user, sessionCode)
	if err != nil {
		return nil, err
	}

	result := &SwipeResult{Success: true}

	err = s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		swipes := s.swipes.WithTx(tx)

		removed, err := swipes.DeleteLike(ctx, itemID, user.ID, sessionCode)
		if err != nil {
			return err
		}
		if !removed || session == nil {
			return nil
		}

		if err := s.appendSwipeEvent(ctx, tx, session.Code, model.EventItemUnliked, itemID, user.ID); err != nil {
			return err
		}
		// Dropping a liker can revoke the item's match and free a
		// maxMatches slot for a later evaluation.
		_, err = s.evaluator.RecomputeItemMatch(ctx, tx, session, settings, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveScope loads and authorizes the session scope. A nil session
// means a solo swipe: no quotas, no matching, no events.
func (s *SwipeService) resolveScope(ctx context.Context, user *model.User, sessionCode *string) (*model.Session, model.SessionSettings, error) {
	if sessionCode == nil {
		return nil, model.SessionSettings{}, nil
	}

	session, err := s.sessions.FindByCode(ctx, *sessionCode)
	if err != nil {
		return nil, model.SessionSettings{}, apperrors.Database(err)
	}
	if session == nil {
		return nil, model.SessionSettings{}, apperrors.NotFound("Session")
	}

	member, err := s.members.Find(ctx, session.Code, user.ID)
	if err != nil {
		return nil, model.SessionSettings{}, apperrors.Database(err)
	}
	if member == nil {
		return nil, model.SessionSettings{}, apperrors.NotInSession()
	}

	settings, err := model.ParseSettings(session.Settings)
	if err != nil {
		return nil, model.SessionSettings{}, apperrors.Internal("Session settings are unreadable").WithCause(err)
	}
	return session, settings, nil
}

func (s *SwipeService) commitLike(
	ctx context.Context,
	tx *sqlx.Tx,
	user *model.User,
	session *model.Session,
	settings model.SessionSettings,
	itemID string,
	item *json.RawMessage,
	result *SwipeResult,
) error {
	swipes := s.swipes.WithTx(tx)
	sessionCode := scopeOf(session)

	// A like and a hide for the same item are mutually exclusive.
	if _, err := swipes.DeleteHidden(ctx, itemID, user.ID, sessionCode); err != nil {
		return err
	}

	existing, err := swipes.FindLike(ctx, itemID, user.ID, sessionCode)
	if err != nil {
		return err
	}

	if existing != nil {
		// Idempotent refresh: bump created_at so the item resurfaces,
		// never a duplicate row, never a quota charge.
		if err := swipes.TouchLike(ctx, existing.ID, item); err != nil {
			return err
		}
	} else {
		if session != nil && settings.MaxRightSwipes > 0 {
			count, err := swipes.CountLikes(ctx, session.Code, user.ID)
			if err != nil {
				return err
			}
			if count >= settings.MaxRightSwipes {
				audit.Log(ctx, audit.Event{
					Type:        audit.EventLimitReached,
					UserID:      user.ID,
					SessionCode: session.Code,
					Details:     map[string]interface{}{"kind": "like", "limit": settings.MaxRightSwipes},
				})
				return apperrors.LimitReached(settings.MaxRightSwipes)
			}
		}

		inserted, err := swipes.InsertLike(ctx, repository.InsertSwipeParams{
			ItemID:      itemID,
			UserID:      user.ID,
			SessionCode: sessionCode,
			Item:        item,
		})
		if err != nil {
			return err
		}
		if inserted == nil {
			// Lost the insert race to a concurrent duplicate. The row
			// that landed is authoritative, report as if ours did; the
			// skipped insert leaves the transaction usable for the event
			// append and recompute below.
			log.Debug().
				Str("itemId", itemID).
				Str("userId", user.ID).
				Msg("like insert lost race, treating as success")
		}
	}

	if session == nil {
		return nil
	}

	if err := s.appendSwipeEvent(ctx, tx, session.Code, model.EventItemLiked, itemID, user.ID); err != nil {
		return err
	}

	eval, err := s.evaluator.RecomputeItemMatch(ctx, tx, session, settings, itemID)
	if err != nil {
		return err
	}
	result.IsMatch = eval.IsMatch
	result.MatchBlockedByLimit = eval.BlockedByLimit
	result.LikedBy = eval.LikedBy
	return nil
}

func (s *SwipeService) commitHide(
	ctx context.Context,
	tx *sqlx.Tx,
	user *model.User,
	session *model.Session,
	settings model.SessionSettings,
	itemID string,
	item *json.RawMessage,
	result *SwipeResult,
) error {
	swipes := s.swipes.WithTx(tx)
	sessionCode := scopeOf(session)

	likeRemoved, err := swipes.DeleteLike(ctx, itemID, user.ID, sessionCode)
	if err != nil {
		return err
	}

	existing, err := swipes.FindHidden(ctx, itemID, user.ID, sessionCode)
	if err != nil {
		return err
	}

	if existing != nil {
		if err := swipes.TouchHidden(ctx, existing.ID, item); err != nil {
			return err
		}
	} else {
		if session != nil && settings.MaxLeftSwipes > 0 {
			count, err := swipes.CountHidden(ctx, session.Code, user.ID)
			if err != nil {
				return err
			}
			if count >= settings.MaxLeftSwipes {
				audit.Log(ctx, audit.Event{
					Type:        audit.EventLimitReached,
					UserID:      user.ID,
					SessionCode: session.Code,
					Details:     map[string]interface{}{"kind": "hide", "limit": settings.MaxLeftSwipes},
				})
				return apperrors.LimitReached(settings.MaxLeftSwipes)
			}
		}

		inserted, err := swipes.InsertHidden(ctx, repository.InsertSwipeParams{
			ItemID:      itemID,
			UserID:      user.ID,
			SessionCode: sessionCode,
			Item:        item,
		})
		if err != nil {
			return err
		}
		if inserted == nil {
			log.Debug().
				Str("itemId", itemID).
				Str("userId", user.ID).
				Msg("hide insert lost race, treating as success")
		}
	}

	if session == nil {
		return nil
	}

	if err := s.appendSwipeEvent(ctx, tx, session.Code, model.EventItemHidden, itemID, user.ID); err != nil {
		return err
	}

	if likeRemoved {
		// Removing a liker can break the match for everyone else; the
		// hide is not complete until the remaining likers are re-checked.
		if _, err := s.evaluator.RecomputeItemMatch(ctx, tx, session, settings, itemID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SwipeService) appendSwipeEvent(ctx context.Context, tx *sqlx.Tx, sessionCode, eventType, itemID, userID string) error {
	payload, err := json.Marshal(swipeEventPayload{ItemID: itemID, UserID: userID})
	if err != nil {
		return err
	}
	_, err = s.events.WithTx(tx).Append(ctx, sessionCode, eventType, payload)
	return err
}

func scopeOf(session *model.Session) *string {
	if session == nil {
		return nil
	}
	return &session.Code
}
