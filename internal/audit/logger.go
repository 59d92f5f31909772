package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventAuthFailure     EventType = "auth_failure"
	EventRateLimitExceed EventType = "rate_limit_exceeded"
	EventSessionCreate   EventType = "session_create"
	EventSessionJoin     EventType = "session_join"
	EventSessionLeave    EventType = "session_leave"
	EventSessionReaped   EventType = "session_reaped"
	EventLendingDisabled EventType = "lending_disabled"
	EventGuestKicked     EventType = "guest_kicked"
	EventLimitReached    EventType = "limit_reached"
	EventAdminAccess     EventType = "admin_access"
)

type Event struct {
	Type        EventType
	UserID      string
	SessionCode string
	IP          string
	UserAgent   string
	Details     map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.SessionCode != "" {
		logger = logger.With().Str("session_code", event.SessionCode).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.WithLevel(Level(event.Type))
	if event.Details != nil {
		logEvent = logEvent.Fields(map[string]interface{}(event.Details))
	}
	logEvent.Msg("security audit event")
}

// LogFromRequest records an audit event with request metadata attached.
func LogFromRequest(r *http.Request, eventType EventType, userID string, details map[string]interface{}) {
	Log(r.Context(), Event{
		Type:      eventType,
		UserID:    userID,
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
		Details:   details,
	})
}

// Level maps an audit event to its log level: suspicious events emit
// at warn, lifecycle events at info.
func Level(eventType EventType) zerolog.Level {
	switch eventType {
	case EventAuthFailure, EventRateLimitExceed, EventGuestKicked:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
