package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// EventPruner deletes events created before a cutoff.
type EventPruner interface {
	PruneEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron      *cron.Cron
	events    EventPruner
	retention time.Duration
	now       func() time.Time
}

// New creates a scheduler that prunes events older than retention on the
// given cron schedule (five-field expression or a descriptor like @daily).
func New(events EventPruner, retention time.Duration, schedule string) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		events:    events,
		retention: retention,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.pruneEvents); err != nil {
		return nil, fmt.Errorf("invalid event retention schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	log.Info().Dur("retention", s.retention).Msg("Starting background scheduler")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	log.Info().Msg("Stopping background scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		log.Warn().Msg("Scheduler jobs still running at shutdown")
	}
}

func (s *Scheduler) pruneEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := s.now().Add(-s.retention)
	removed, err := s.events.PruneEvents(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("Scheduler: failed to prune events")
		return
	}
	log.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Scheduler: pruned old events")
}
