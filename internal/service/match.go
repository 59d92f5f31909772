package service

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/repository"
)

// Evaluation is the outcome of recomputing one item's match state.
type Evaluation struct {
	IsMatch        bool
	BlockedByLimit bool
	LikedBy        []model.Liker
}

// MatchEvaluator re-derives the denormalized is_match flag on likes.
// RecomputeItemMatch is the single recompute operation: every trigger
// (like, unlike, hide that removed a like, membership change) goes
// through it rather than duplicating the strategy logic inline.
type MatchEvaluator struct {
	swipes  repository.SwipeRepository
	members repository.MemberRepository
	events  repository.EventRepository
}

func NewMatchEvaluator(
	swipes repository.SwipeRepository,
	members repository.MemberRepository,
	events repository.EventRepository,
) *MatchEvaluator {
	return &MatchEvaluator{swipes: swipes, members: members, events: events}
}

// strategySatisfied is the pure match decision over current likers and
// current membership at evaluation time. It is order-independent and
// carries no history: a match is whatever holds right now.
func strategySatisfied(strategy model.MatchStrategy, likerCount, memberCount int) bool {
	switch strategy {
	case model.StrategyAllMembers:
		return memberCount > 0 && likerCount == memberCount
	default: // atLeastTwo
		return likerCount >= 2
	}
}

type matchEventPayload struct {
	ItemID  string        `json:"itemId"`
	LikedBy []model.Liker `json:"likedBy,omitempty"`
}

// RecomputeItemMatch re-evaluates one item inside the caller's
// transaction and appends match transition events to the same unit of
// work. The maxMatches ceiling suppresses new matches (the like stays
// recorded) but never revokes existing ones.
func (e *MatchEvaluator) RecomputeItemMatch(
	ctx context.Context,
	tx *sqlx.Tx,
	session *model.Session,
	settings model.SessionSettings,
	itemID string,
) (*Evaluation, error) {
	swipes := e.swipes.WithTx(tx)
	members := e.members.WithTx(tx)
	events := e.events.WithTx(tx)

	likers, err := swipes.ListLikers(ctx, session.Code, itemID)
	if err != nil {
		return nil, err
	}
	memberCount, err := members.Count(ctx, session.Code)
	if err != nil {
		return nil, err
	}

	wasMatch, err := swipes.IsMatched(ctx, session.Code, itemID)
	if err != nil {
		return nil, err
	}

	satisfied := strategySatisfied(settings.MatchStrategy, len(likers), memberCount)
	blocked := false

	if satisfied && !wasMatch && settings.MaxMatches > 0 {
		matchedCount, err := swipes.CountMatchedItems(ctx, session.Code)
		if err != nil {
			return nil, err
		}
		if matchedCount >= settings.MaxMatches {
			satisfied = false
			blocked = true
		}
	}

	if satisfied != wasMatch {
		if err := swipes.SetMatch(ctx, session.Code, itemID, satisfied); err != nil {
			return nil, err
		}

		eventType := model.EventItemMatched
		if !satisfied {
			eventType = model.EventMatchRevoked
		}
		payload, err := json.Marshal(matchEventPayload{ItemID: itemID, LikedBy: likers})
		if err != nil {
			return nil, err
		}
		if _, err := events.Append(ctx, session.Code, eventType, payload); err != nil {
			return nil, err
		}

		log.Info().
			Str("sessionCode", session.Code).
			Str("itemId", itemID).
			Int("likers", len(likers)).
			Int("members", memberCount).
			Bool("isMatch", satisfied).
			Msg("match state changed")
	} else if blocked {
		payload, err := json.Marshal(matchEventPayload{ItemID: itemID})
		if err != nil {
			return nil, err
		}
		if _, err := events.Append(ctx, session.Code, model.EventMatchBlocked, payload); err != nil {
			return nil, err
		}
	}

	return &Evaluation{IsMatch: satisfied, BlockedByLimit: blocked, LikedBy: likers}, nil
}

// RecomputeItems re-evaluates a set of items after a membership change.
// Leave re-checks everything the departing member had liked against the
// shrunken membership; join re-checks currently-matched items, which
// revokes an allMembers match when the newcomer has not liked it yet.
func (e *MatchEvaluator) RecomputeItems(
	ctx context.Context,
	tx *sqlx.Tx,
	session *model.Session,
	settings model.SessionSettings,
	itemIDs []string,
) error {
	for _, itemID := range itemIDs {
		if _, err := e.RecomputeItemMatch(ctx, tx, session, settings, itemID); err != nil {
			return err
		}
	}
	return nil
}
