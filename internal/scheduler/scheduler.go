// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/okian/medblog/pkg/logger"
	"github.com/okian/medblog/pkg/metrics"
)

// ErrInvalidSchedule is returned for a spec cron cannot parse.
var ErrInvalidSchedule = errors.New("invalid schedule")

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Scheduler runs a named job on a cron spec. Overlapping runs are skipped.
type Scheduler struct {
	name string
	job  Job
	cron *cron.Cron
	log  logger.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
}

// New parses spec (standard 5-field cron or descriptors like "@every 1m").
func New(name, spec string, job Job) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("%s %q: %v: %w", name, spec, err, ErrInvalidSchedule)
	}
	s := &Scheduler{
		name: name,
		job:  job,
		log:  logger.Named("scheduler").With(logger.String("job", name)),
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("%s %q: %v: %w", name, spec, err, ErrInvalidSchedule)
	}
	return s, nil
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.RunNow(ctx); err != nil {
		s.log.Error(ctx, "scheduled job failed", logger.Error(err))
	}
}

// RunNow runs the job once on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context) error {
	start := time.Now()
	err := s.job(ctx)
	metrics.RecordJobRun(s.name, err != nil)
	s.log.Debug(ctx, "job finished", logger.Duration("took", time.Since(start)), logger.Bool("failed", err != nil))
	return err
}

// Start begins scheduling. Runs receive a context cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.Start()
	s.log.Info(ctx, "scheduler started")
}

// Stop halts scheduling and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for %s: %w", s.name, ctx.Err())
	}
}
