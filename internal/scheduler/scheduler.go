// Package scheduler runs a task on a cron schedule. It drives the periodic
// HEAD exchanges of the watch command.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

// parser accepts five-field cron expressions and descriptors such as
// "@every 30s" or "@hourly".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Scheduler runs a task on a cron schedule. A run that is still in
// progress when the next one is due causes that next run to be skipped.
type Scheduler struct {
	mu sync.Mutex

	name     string
	schedule string
	task     Task
	logger   *slog.Logger

	// runOnStart triggers one run as soon as Start is called.
	runOnStart bool

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that runs task on schedule.
func NewScheduler(name, schedule string, task Task) (*Scheduler, error) {
	if err := ValidateCron(schedule); err != nil {
		return nil, err
	}
	return &Scheduler{
		name:     name,
		schedule: schedule,
		task:     task,
		logger:   slog.Default(),
	}, nil
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// WithRunOnStart runs the task once as soon as Start is called.
func (s *Scheduler) WithRunOnStart(enabled bool) *Scheduler {
	s.runOnStart = enabled
	return s
}

// Start begins scheduling. Runs stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return ErrAlreadyStarted
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	logAdapter := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logAdapter),
		cron.WithChain(cron.Recover(logAdapter), cron.SkipIfStillRunning(logAdapter)),
	)

	runCtx := s.ctx
	job := cron.FuncJob(func() { s.run(runCtx) })
	if _, err := s.cron.AddJob(s.schedule, job); err != nil {
		s.cancel()
		s.ctx, s.cancel = nil, nil
		return fmt.Errorf("scheduling %s: %w", s.name, err)
	}
	s.cron.Start()

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run(runCtx)
		}()
	}

	s.logger.Info("scheduler started",
		slog.String("task", s.name),
		slog.String("schedule", s.schedule))

	return nil
}

// Stop stops scheduling and waits for running tasks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	c := s.cron
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.cron = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped", slog.String("task", s.name))
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.task(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "scheduled task failed",
			slog.String("task", s.name),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return
	}

	s.logger.DebugContext(ctx, "scheduled task completed",
		slog.String("task", s.name),
		slog.Duration("duration", time.Since(start)))
}

// ParseCron validates a cron expression and returns the next run time.
func ParseCron(expr string) (time.Time, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(time.Now()), nil
}

// ValidateCron validates a cron expression.
func ValidateCron(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{slog.String("error", err.Error())}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
