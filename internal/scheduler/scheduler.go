package scheduler

import (
	"context"
	"fmt"
	"time"

	"assetbook/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is one run of a periodic job.
type JobFunc func(ctx context.Context) error

// Scheduler runs named jobs on cron expressions (seconds precision, UTC).
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zerolog.Logger
}

func New(logger *zerolog.Logger) *Scheduler {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithSeconds(),
	)
	return &Scheduler{
		cron:    c,
		timeout: 10 * time.Minute,
		logger:  logger,
	}
}

// Add registers fn under spec. An empty spec disables the job.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	if spec == "" {
		s.logger.Info().Str("job", name).Msg("Job disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, fn) }); err != nil {
		return fmt.Errorf("register job %s: %w", name, err)
	}
	s.logger.Info().Str("job", name).Str("schedule", spec).Msg("Job registered")
	return nil
}

// RunNow executes a job synchronously, outside of its schedule.
func (s *Scheduler) RunNow(name string, fn JobFunc) error {
	return s.run(name, fn)
}

func (s *Scheduler) run(name string, fn JobFunc) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	metrics.IncJob(name, err)
	if err != nil {
		s.logger.Error().Err(err).Str("job", name).Msg("Job failed")
		return err
	}
	s.logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("Job finished")
	return nil
}

func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting scheduler")
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler stop timed out")
	}
}
