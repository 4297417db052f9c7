// Package scheduler runs the periodic maintenance jobs: purging settled
// notification jobs per the retention policy and producing appointment
// reminder notifications as their send window opens.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/config"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/zapflow/internal/observability/metrics"
	"github.com/smallbiznis/zapflow/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"

	appointmentdomain "github.com/smallbiznis/zapflow/internal/appointment/domain"
)

const (
	jobRetention = "notification_retention"
	jobReminder  = "appointment_reminders"

	leaderKey = "scheduler:leader"
	jobBudget = 30 * time.Second
)

// ReminderProducer is the slice of the appointment service the scheduler
// depends on.
type ReminderProducer interface {
	ScanDueReminders(ctx context.Context, horizon time.Duration) (int, error)
}

type Params struct {
	fx.In

	Log          *zap.Logger
	Clock        clock.Clock
	Runtime      *config.RuntimeConfigHolder
	Queue        notificationdomain.Queue
	Appointments appointmentdomain.Service
	// Limiter carries the redis locker used for leader election; absent in
	// single-instance deployments, where every pass runs unconditionally.
	Limiter *ratelimit.WebhookLimiter `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	clock        clock.Clock
	runtime      *config.RuntimeConfigHolder
	queue        notificationdomain.Queue
	appointments ReminderProducer
	locker       *ratelimit.Locker
	metrics      *obsmetrics.WorkerMetrics

	lastRetention time.Time
	lastReminder  time.Time
}

func New(p Params) *Scheduler {
	s := &Scheduler{
		log:          p.Log.Named("scheduler"),
		clock:        p.Clock,
		runtime:      p.Runtime,
		queue:        p.Queue,
		appointments: p.Appointments,
		metrics:      obsmetrics.Worker(),
	}
	if p.Limiter != nil {
		s.locker = p.Limiter.Locker()
	}
	return s
}

// RunOnce executes every job whose interval has elapsed since its last run.
// With a locker present only the current leader executes the pass.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if s.locker != nil {
		token, acquired, err := s.locker.TryLock(ctx, leaderKey, 2*s.loopInterval())
		if err != nil {
			// Redis trouble must not stall maintenance; run the pass anyway.
			s.log.Warn("leader lock unavailable", zap.Error(err))
		} else if !acquired {
			return nil
		} else {
			defer func() {
				if relErr := s.locker.Release(context.WithoutCancel(ctx), leaderKey, token); relErr != nil {
					s.log.Warn("leader lock release failed", zap.Error(relErr))
				}
			}()
		}
	}

	cfg := s.runtime.Get()
	now := s.clock.Now()
	var err error

	if s.due(s.lastRetention, cfg.Retention.CleanInterval, now) {
		err = errors.Join(err, s.runJob(ctx, jobRetention, jobBudget, s.RetentionJob))
		s.lastRetention = now
	}
	if s.due(s.lastReminder, cfg.Reminder.ScanInterval, now) {
		err = errors.Join(err, s.runJob(ctx, jobReminder, jobBudget, s.ReminderJob))
		s.lastReminder = now
	}
	return err
}

// RunForever loops until ctx is cancelled.
func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.loopInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(interval)

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			s.metrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler pass failed", zap.Error(err))
		}
		nextRun = nextRun.Add(interval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RetentionJob purges settled notification jobs past their retention window.
func (s *Scheduler) RetentionJob(ctx context.Context) error {
	cfg := s.runtime.Get().Retention
	now := s.clock.Now()

	completed, err := s.queue.PurgeCompletedBefore(ctx, now.Add(-cfg.Success))
	if err != nil {
		return fmt.Errorf("purge completed: %w", err)
	}
	failed, ferr := s.queue.PurgeFailedBefore(ctx, now.Add(-cfg.Failure))
	if ferr != nil {
		return fmt.Errorf("purge failed: %w", ferr)
	}
	if completed+failed > 0 {
		s.log.Info("retention purge",
			zap.Int64("completed_purged", completed),
			zap.Int64("failed_purged", failed),
		)
	}
	return nil
}

// ReminderJob enqueues reminder notifications for appointments entering
// their send window.
func (s *Scheduler) ReminderJob(ctx context.Context) error {
	horizon := s.runtime.Get().Reminder.Horizon
	produced, err := s.appointments.ScanDueReminders(ctx, horizon)
	if err != nil {
		return fmt.Errorf("reminder scan: %w", err)
	}
	if produced > 0 {
		s.log.Info("reminders enqueued", zap.Int("count", produced))
	}
	return nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	s.metrics.IncJobRun(name)
	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(name)
		s.log.Warn("job timed out", zap.String("job", name), zap.Duration("timeout", timeout), zap.Error(err))
		return nil
	}
	s.metrics.IncJobError(name, err)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) due(last time.Time, interval time.Duration, now time.Time) bool {
	if last.IsZero() {
		return true
	}
	if interval <= 0 {
		return true
	}
	return !now.Before(last.Add(interval))
}

// loopInterval ticks at the shortest configured job interval so no job
// waits longer than its own schedule.
func (s *Scheduler) loopInterval() time.Duration {
	cfg := s.runtime.Get()
	interval := cfg.Reminder.ScanInterval
	if cfg.Retention.CleanInterval > 0 && (interval <= 0 || cfg.Retention.CleanInterval < interval) {
		interval = cfg.Retention.CleanInterval
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return interval
}
