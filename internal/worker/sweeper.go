// Package worker runs periodic maintenance for the content caches.
package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"rgehrsitz/nest/internal/cache"
	"rgehrsitz/nest/internal/metrics"
)

// DefaultInterval is how often expired entries are swept when none is set.
const DefaultInterval = 5 * time.Minute

// Sweeper removes expired entries from registered caches on a schedule.
// Nothing runs until Start, and Stop halts the schedule.
type Sweeper struct {
	scheduler gocron.Scheduler
	interval  time.Duration

	mu      sync.Mutex
	targets map[string]cache.Sweeper
	job     gocron.Job
}

// NewSweeper creates a stopped sweeper.
func NewSweeper(interval time.Duration) (*Sweeper, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Sweeper{
		scheduler: scheduler,
		interval:  interval,
		targets:   make(map[string]cache.Sweeper),
	}, nil
}

// Register adds a cache to sweep. Registering a name again replaces it.
func (s *Sweeper) Register(name string, target cache.Sweeper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[name] = target
}

// Start schedules RunOnce every interval. ctx is passed to each Cleanup.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.job != nil {
		return nil
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.RunOnce(ctx)
		}),
		gocron.WithName("cache-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	s.job = job
	s.scheduler.Start()

	log.Info().Dur("interval", s.interval).Int("caches", len(s.targets)).Msg("cache sweeper started")
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *Sweeper) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop cache sweeper: %w", err)
	}
	log.Info().Msg("cache sweeper stopped")
	return nil
}

// RunOnce sweeps every registered cache in name order. A failing cache is
// logged and does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.targets))
	for name := range s.targets {
		names = append(names, name)
	}
	targets := make(map[string]cache.Sweeper, len(s.targets))
	for name, t := range s.targets {
		targets[name] = t
	}
	s.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		if err := targets[name].Cleanup(ctx); err != nil {
			metrics.Sweeps.WithLabelValues(name, "error").Inc()
			log.Error().Err(err).Str("cache", name).Msg("cache sweep failed")
			continue
		}
		metrics.Sweeps.WithLabelValues(name, "ok").Inc()
		log.Debug().Str("cache", name).Msg("cache swept")
	}
}
