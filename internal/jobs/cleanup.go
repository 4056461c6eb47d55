package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/allinone-studio/remote-support-server/internal/metrics"
	"github.com/allinone-studio/remote-support-server/internal/model"
	"github.com/allinone-studio/remote-support-server/internal/store"
)

// CleanupJob reaps sessions past their expiry window. Abandoned sessions
// otherwise live forever, since no caller is obliged to end them.
type CleanupJob struct {
	store    store.SessionStore
	interval time.Duration
	done     chan struct{}
}

func NewCleanupJob(st store.SessionStore, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		store:    st,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
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

	count, err := j.store.DeleteExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup expired sessions")
		return
	}
	if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up expired sessions")
	}

	sessions, err := j.store.List(ctx)
	if err != nil {
		return
	}
	active := 0
	for _, sess := range sessions {
		if sess.Status != model.SessionStatusEnded {
			active++
		}
	}
	metrics.ActiveSessions.Set(float64(active))
}
