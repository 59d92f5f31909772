package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reelmates/match-server-go/internal/audit"
	"github.com/reelmates/match-server-go/internal/repository"
	"github.com/reelmates/match-server-go/internal/service"
)

type CleanupJob struct {
	sessions  repository.SessionRepository
	users     repository.UserRepository
	sessionSv *service.SessionService
	maxAge    time.Duration
	interval  time.Duration
	done      chan struct{}
}

func NewCleanupJob(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	sessionSv *service.SessionService,
	maxAge time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		sessions:  sessions,
		users:     users,
		sessionSv: sessionSv,
		maxAge:    maxAge,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("max_age", j.maxAge).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.maxAge)

	codes, err := j.sessions.ListCodesOlderThan(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to list stale sessions")
	} else {
		reaped := 0
		for _, code := range codes {
			if err := j.sessionSv.DeleteCascade(ctx, code); err != nil {
				log.Error().Err(err).Str("session", code).Msg("failed to reap session")
				continue
			}
			audit.Log(ctx, audit.Event{
				Type:        audit.EventSessionReaped,
				SessionCode: code,
			})
			reaped++
		}
		if reaped > 0 {
			log.Info().Int("count", reaped).Msg("reaped stale sessions")
		}
	}

	// Guest accounts go away with their session; this catches the orphans.
	count, err := j.users.DeleteStaleGuests(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup stale guests")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up stale guests")
	}
}
