package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelmates/match-server-go/internal/model"
	"github.com/reelmates/match-server-go/internal/repository"
)

const (
	KeepaliveInterval   = 30 * time.Second
	DefaultPollInterval = time.Second

	// Rows fetched per poll. A full batch triggers an immediate
	// follow-up fetch before idling again.
	eventBatchSize = 100
)

// Streamer delivers session events over a long-lived response by
// polling the durable event log with a per-connection cursor. There is
// no in-memory fan-out: each connected client owns its own loop and its
// own cursor, so restarts and multiple instances never lose a
// subscriber's place.
type Streamer struct {
	events       repository.EventRepository
	pollInterval time.Duration
}

func NewStreamer(events repository.EventRepository, pollInterval time.Duration) *Streamer {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Streamer{events: events, pollInterval: pollInterval}
}

// Run streams events scoped to sessionCode (plus the global scope)
// until ctx is cancelled. Only events appended after the call are
// delivered; history predating the connection is never replayed.
// Transient store errors are logged and retried on the next cycle
// rather than terminating the stream.
func (s *Streamer) Run(ctx context.Context, w io.Writer, flusher http.Flusher, sessionCode string) error {
	cursor, err := s.events.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("capture event cursor: %w", err)
	}

	keepalive := time.NewTicker(KeepaliveInterval)
	defer keepalive.Stop()

	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().
				Str("sessionCode", sessionCode).
				Int64("cursor", cursor).
				Msg("event stream closed by client")
			return nil

		case <-keepalive.C:
			if err := WriteComment(w, flusher, "keepalive"); err != nil {
				return err
			}

		case <-poll.C:
			next, err := s.deliverPending(ctx, w, flusher, sessionCode, cursor)
			if err != nil {
				return err
			}
			cursor = next
		}
	}
}

// deliverPending drains all rows past the cursor, returning the new
// cursor position. Fetch errors leave the cursor untouched so the rows
// are retried next cycle; write errors mean the client is gone.
func (s *Streamer) deliverPending(ctx context.Context, w io.Writer, flusher http.Flusher, sessionCode string, cursor int64) (int64, error) {
	for {
		events, err := s.events.ListAfter(ctx, sessionCode, cursor, eventBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return cursor, nil
			}
			log.Warn().Err(err).
				Str("sessionCode", sessionCode).
				Msg("event poll failed, retrying next cycle")
			return cursor, nil
		}

		for _, event := range events {
			if err := WriteEvent(w, flusher, event); err != nil {
				return cursor, err
			}
			cursor = event.ID
		}

		if len(events) < eventBatchSize {
			return cursor, nil
		}
	}
}

// WriteEvent emits one framed SSE message: `event: <type>\ndata: <json>\n\n`.
func WriteEvent(w io.Writer, flusher http.Flusher, event model.SessionEvent) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// WriteComment emits a comment-only frame. Type-unaware consumers must
// ignore these; they exist to defeat idle-connection timeouts on
// intermediary proxies.
func WriteComment(w io.Writer, flusher http.Flusher, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
