package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLog redirects the global logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestLog(t *testing.T) {
	t.Run("emits structured fields", func(t *testing.T) {
		buf := captureLog(t)

		Log(context.Background(), Event{
			Type:        EventSessionJoin,
			UserID:      "user-1",
			SessionCode: "AB2D",
			Details:     map[string]interface{}{"extra": "value"},
		})

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "security", entry["audit"])
		assert.Equal(t, "session_join", entry["event_type"])
		assert.Equal(t, "user-1", entry["user_id"])
		assert.Equal(t, "AB2D", entry["session_code"])
		assert.Equal(t, "value", entry["extra"])
		assert.Equal(t, "info", entry["level"])
	})

	t.Run("suspicious events emit at warn", func(t *testing.T) {
		buf := captureLog(t)

		Log(context.Background(), Event{Type: EventAuthFailure})

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warn", entry["level"])
	})
}

func TestLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, Level(EventAuthFailure))
	assert.Equal(t, zerolog.WarnLevel, Level(EventRateLimitExceed))
	assert.Equal(t, zerolog.WarnLevel, Level(EventGuestKicked))
	assert.Equal(t, zerolog.InfoLevel, Level(EventSessionCreate))
	assert.Equal(t, zerolog.InfoLevel, Level(EventAdminAccess))
}
