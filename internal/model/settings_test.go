package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	t.Run("empty blob yields defaults", func(t *testing.T) {
		settings, err := ParseSettings(nil)
		require.NoError(t, err)
		assert.Equal(t, StrategyAtLeastTwo, settings.MatchStrategy)
		assert.Equal(t, 0, settings.MaxRightSwipes)
		assert.Equal(t, 0, settings.MaxMatches)
		assert.False(t, settings.AllowGuests)
	})

	t.Run("parses full settings", func(t *testing.T) {
		raw := json.RawMessage(`{"version":1,"matchStrategy":"allMembers","maxRightSwipes":5,"maxLeftSwipes":10,"maxMatches":1,"allowGuests":true}`)
		settings, err := ParseSettings(raw)
		require.NoError(t, err)
		assert.Equal(t, StrategyAllMembers, settings.MatchStrategy)
		assert.Equal(t, 5, settings.MaxRightSwipes)
		assert.Equal(t, 10, settings.MaxLeftSwipes)
		assert.Equal(t, 1, settings.MaxMatches)
		assert.True(t, settings.AllowGuests)
	})

	t.Run("missing strategy falls back to default", func(t *testing.T) {
		settings, err := ParseSettings(json.RawMessage(`{"maxRightSwipes":3}`))
		require.NoError(t, err)
		assert.Equal(t, StrategyAtLeastTwo, settings.MatchStrategy)
		assert.Equal(t, 1, settings.Version)
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		_, err := ParseSettings(json.RawMessage(`{"matchStrategy":"majority"}`))
		assert.Error(t, err)
	})

	t.Run("rejects future version", func(t *testing.T) {
		_, err := ParseSettings(json.RawMessage(`{"version":99}`))
		assert.Error(t, err)
	})

	t.Run("rejects negative limits", func(t *testing.T) {
		_, err := ParseSettings(json.RawMessage(`{"maxRightSwipes":-1}`))
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ParseSettings(json.RawMessage(`{`))
		assert.Error(t, err)
	})

	t.Run("round trips through Marshal", func(t *testing.T) {
		original := SessionSettings{
			MatchStrategy:  StrategyAllMembers,
			MaxRightSwipes: 7,
			AllowGuests:    true,
		}
		raw, err := original.Marshal()
		require.NoError(t, err)

		parsed, err := ParseSettings(raw)
		require.NoError(t, err)
		assert.Equal(t, StrategyAllMembers, parsed.MatchStrategy)
		assert.Equal(t, 7, parsed.MaxRightSwipes)
		assert.True(t, parsed.AllowGuests)
	})
}

func TestParseFilters(t *testing.T) {
	t.Run("empty blob yields zero filters", func(t *testing.T) {
		filters, err := ParseFilters(nil)
		require.NoError(t, err)
		assert.Empty(t, filters.Genres)
	})

	t.Run("parses genre and year filters", func(t *testing.T) {
		raw := json.RawMessage(`{"genres":["comedy","horror"],"yearFrom":1990,"yearTo":2004,"unwatched":true}`)
		filters, err := ParseFilters(raw)
		require.NoError(t, err)
		assert.Equal(t, []string{"comedy", "horror"}, filters.Genres)
		assert.Equal(t, 1990, filters.YearFrom)
		assert.True(t, filters.Unwatched)
	})

	t.Run("rejects inverted year range", func(t *testing.T) {
		_, err := ParseFilters(json.RawMessage(`{"yearFrom":2010,"yearTo":2000}`))
		assert.Error(t, err)
	})
}

func TestSwipeDirection(t *testing.T) {
	assert.True(t, SwipeRight.Valid())
	assert.True(t, SwipeLeft.Valid())
	assert.False(t, SwipeDirection("up").Valid())
	assert.Equal(t, SwipeLeft, SwipeRight.Opposite())
	assert.Equal(t, SwipeRight, SwipeLeft.Opposite())
}

func TestSessionLendingEnabled(t *testing.T) {
	enc := "ciphertext"
	assert.True(t, (&Session{HostAccessTokenEnc: &enc}).LendingEnabled())
	assert.False(t, (&Session{}).LendingEnabled())
}
