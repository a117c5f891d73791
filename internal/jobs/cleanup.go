package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dcmshq/dcms-server-go/internal/repository"
)

// CleanupJob periodically deletes session rows that have been revoked
// or expired for longer than the retention window. Liveness never
// depends on it; dead rows are already unreachable.
type CleanupJob struct {
	sessionRepo repository.SessionRepository
	interval    time.Duration
	retention   time.Duration
	done        chan struct{}
}

func NewCleanupJob(sessionRepo repository.SessionRepository, interval, retention time.Duration) *CleanupJob {
	return &CleanupJob{
		sessionRepo: sessionRepo,
		interval:    interval,
		retention:   retention,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("session cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("session cleanup job stopped")
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

	cutoff := time.Now().Add(-j.retention)
	count, err := j.sessionRepo.DeleteDefunct(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to clean up defunct sessions")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up defunct sessions")
	}
}
