package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

// Scheduler runs background jobs on cron schedules. A job never overlaps
// with itself.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
	ctx  context.Context
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		logger: logger,
		jobs:   make(map[string]*job),
		ctx:    context.Background(),
	}
}

// Add registers run under name. An empty spec disables the job and is not
// an error.
func (s *Scheduler) Add(name, spec string, run func(ctx context.Context) error) error {
	if spec == "" {
		s.logger.Info("scheduled job disabled", "job", name)
		return nil
	}

	j := &job{name: name, spec: spec, run: run}
	if _, err := s.cron.AddFunc(spec, func() { s.execute(j) }); err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}

	s.mu.Lock()
	s.jobs[name] = j
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Trigger runs a registered job now, outside its schedule.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.execute(j)
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", s.Len())
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) execute(j *job) error {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	if err := j.run(ctx); err != nil {
		s.logger.Error("scheduled job failed", "job", j.name, "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Info("scheduled job completed", "job", j.name, "duration", time.Since(start))
	return nil
}
