// Package worker drains the notification queue: claim, render, deliver,
// retry with exponential backoff, terminal-fail after the attempt budget.
package worker

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/cloudmetrics"
	"github.com/smallbiznis/zapflow/internal/config"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/zapflow/internal/observability/metrics"
	"github.com/smallbiznis/zapflow/internal/session"
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	"github.com/smallbiznis/zapflow/internal/template/render"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jobName = "notification_delivery"

// retryableError wraps transient delivery failures so classification stays
// in one place; anything else terminal-fails the job.
type retryableError struct {
	reason string
	err    error
}

func (e *retryableError) Error() string { return e.reason + ": " + e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

type WorkerParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Runtime   *config.RuntimeConfigHolder
	Gateway   session.Gateway
	Templates templatedomain.Service
}

type Worker struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	runtime   *config.RuntimeConfigHolder
	gateway   session.Gateway
	templates templatedomain.Service
	metrics   *obsmetrics.WorkerMetrics
}

func NewWorker(p WorkerParam) *Worker {
	return &Worker{
		db:        p.DB,
		log:       p.Log.Named("notification.worker"),
		clock:     p.Clock,
		runtime:   p.Runtime,
		gateway:   p.Gateway,
		templates: p.Templates,
		metrics:   obsmetrics.Worker(),
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		interval := w.runtime.Get().Queue.PollInterval
		if interval <= 0 {
			interval = 2 * time.Second
		}

		processed, err := w.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error("delivery pass failed", zap.Error(err))
		}
		if processed > 0 {
			// Drain the backlog before sleeping again.
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// RunOnce claims one batch of due jobs and processes it on the configured
// concurrency. Returns how many jobs were claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	cfg := w.runtime.Get().Queue
	start := time.Now()
	w.metrics.IncJobRun(jobName)
	defer func() { w.metrics.ObserveJobDuration(jobName, time.Since(start)) }()

	jobs, claimErr := w.claimBatch(ctx, cfg)
	if claimErr != nil {
		w.metrics.IncJobError(jobName, claimErr)
		// Jobs claimed before the error are already active; they must still
		// be processed or they would sit on a dead lease until reclaim.
		if len(jobs) == 0 {
			return 0, claimErr
		}
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := range jobs {
		job := jobs[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			w.processJob(ctx, job, cfg)
		}()
	}
	wg.Wait()

	w.metrics.AddBatchProcessed(jobName, "notification_jobs", len(jobs))
	return len(jobs), claimErr
}

// claimBatch selects due waiting jobs and claims each one with a
// compare-and-swap on status, so concurrent workers never double-deliver.
// A claim is a lease: the claim stamp on updated_at expires after
// cfg.ClaimLease, and expired active jobs are picked up again. That is what
// recovers jobs whose worker died between claim and delivery.
func (w *Worker) claimBatch(ctx context.Context, cfg config.QueueConfig) ([]*notificationdomain.NotificationJob, error) {
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 10
	}
	lease := cfg.ClaimLease
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	now := w.clock.Now()
	leaseExpiry := now.Add(-lease)

	var candidates []*notificationdomain.NotificationJob
	err := w.db.WithContext(ctx).
		Where("(status = ? AND next_attempt_at <= ?) OR (status = ? AND updated_at <= ?)",
			notificationdomain.JobStatusWaiting, now,
			notificationdomain.JobStatusActive, leaseExpiry).
		Order("next_attempt_at ASC").
		Limit(batchSize).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]*notificationdomain.NotificationJob, 0, len(candidates))
	for _, job := range candidates {
		query := w.db.WithContext(ctx).Model(&notificationdomain.NotificationJob{})
		if job.Status == notificationdomain.JobStatusActive {
			query = query.Where("id = ? AND status = ? AND updated_at <= ?",
				job.ID, notificationdomain.JobStatusActive, leaseExpiry)
		} else {
			query = query.Where("id = ? AND status = ?", job.ID, notificationdomain.JobStatusWaiting)
		}
		res := query.Updates(map[string]any{
			"status":     notificationdomain.JobStatusActive,
			"updated_at": now,
		})
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected == 0 {
			w.metrics.IncBatchDeferred(jobName, "claim_lost")
			continue
		}
		if job.Status == notificationdomain.JobStatusActive {
			w.log.Warn("reclaimed job with expired lease",
				zap.String("job_id", job.ID.String()),
				zap.Time("claimed_at", job.UpdatedAt),
			)
		}
		job.Status = notificationdomain.JobStatusActive
		claimed = append(claimed, job)
	}
	return claimed, nil
}

func (w *Worker) processJob(ctx context.Context, job *notificationdomain.NotificationJob, cfg config.QueueConfig) {
	tenantLabel := strconv.FormatInt(int64(job.TenantID), 10)
	log := w.log.With(
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", tenantLabel),
		zap.String("template_key", job.TemplateKey),
		zap.Int("attempt", job.AttemptCount+1),
	)

	err := w.attempt(ctx, job)
	if err == nil {
		if markErr := w.markCompleted(ctx, job); markErr != nil {
			log.Error("job delivered but completion mark failed", zap.Error(markErr))
			return
		}
		cloudmetrics.RecordNotificationOutcome(tenantLabel, "delivered")
		log.Info("notification delivered")
		return
	}

	var transient *retryableError
	if !errors.As(err, &transient) {
		// Permanent business outcome: terminate without consuming a retry
		// attempt, with its own log signature.
		if markErr := w.markFailed(ctx, job, err.Error(), false); markErr != nil {
			log.Error("terminal mark failed", zap.Error(markErr))
		}
		cloudmetrics.RecordNotificationOutcome(tenantLabel, "disabled")
		log.Warn("notification terminated", zap.String("reason", err.Error()))
		return
	}

	attempts := job.AttemptCount + 1
	if attempts >= cfg.MaxAttempts {
		if markErr := w.markFailed(ctx, job, transient.Error(), true); markErr != nil {
			log.Error("failure mark failed", zap.Error(markErr))
		}
		cloudmetrics.RecordNotificationOutcome(tenantLabel, "failed")
		log.Error("notification terminally failed",
			zap.String("reason", transient.reason),
			zap.Int("attempts", attempts),
		)
		return
	}

	delay := backoff(cfg.BackoffBase, cfg.BackoffMax, attempts)
	if markErr := w.markRetry(ctx, job, transient.Error(), attempts, delay); markErr != nil {
		log.Error("retry mark failed", zap.Error(markErr))
		return
	}
	cloudmetrics.RecordNotificationOutcome(tenantLabel, "retried")
	log.Warn("notification retry scheduled",
		zap.String("reason", transient.reason),
		zap.Duration("delay", delay),
	)
}

// attempt performs one delivery try: session check, template resolution,
// render, send.
func (w *Worker) attempt(ctx context.Context, job *notificationdomain.NotificationJob) error {
	tenantID := int64(job.TenantID)

	connected, err := w.gateway.IsConnected(ctx, tenantID)
	if err != nil {
		return &retryableError{reason: notificationdomain.ReasonSessionNotConnected, err: err}
	}
	if !connected {
		return &retryableError{reason: notificationdomain.ReasonSessionNotConnected, err: session.ErrSessionNotConnected}
	}

	tmpl, err := w.templates.Resolve(ctx, tenantID, job.TemplateKey)
	if err != nil {
		if errors.Is(err, templatedomain.ErrTemplateDisabled) || errors.Is(err, templatedomain.ErrUnknownKey) {
			return errors.New(notificationdomain.ReasonTemplateDisabled)
		}
		return &retryableError{reason: notificationdomain.ReasonSendFailed, err: err}
	}

	text := render.Render(tmpl.Content, job.StringVariables())

	if err := w.gateway.SendText(ctx, tenantID, job.RecipientAddress, text); err != nil {
		return &retryableError{reason: notificationdomain.ReasonSendFailed, err: err}
	}
	return nil
}

func (w *Worker) markCompleted(ctx context.Context, job *notificationdomain.NotificationJob) error {
	now := w.clock.Now()
	return w.db.WithContext(ctx).
		Model(&notificationdomain.NotificationJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":        notificationdomain.JobStatusCompleted,
			"attempt_count": job.AttemptCount + 1,
			"last_error":    "",
			"completed_at":  now,
			"updated_at":    now,
		}).Error
}

func (w *Worker) markFailed(ctx context.Context, job *notificationdomain.NotificationJob, lastError string, consumeAttempt bool) error {
	now := w.clock.Now()
	attempts := job.AttemptCount
	if consumeAttempt {
		attempts++
	}
	return w.db.WithContext(ctx).
		Model(&notificationdomain.NotificationJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":        notificationdomain.JobStatusFailed,
			"attempt_count": attempts,
			"last_error":    lastError,
			"failed_at":     now,
			"updated_at":    now,
		}).Error
}

func (w *Worker) markRetry(ctx context.Context, job *notificationdomain.NotificationJob, lastError string, attempts int, delay time.Duration) error {
	now := w.clock.Now()
	return w.db.WithContext(ctx).
		Model(&notificationdomain.NotificationJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"status":          notificationdomain.JobStatusWaiting,
			"attempt_count":   attempts,
			"last_error":      lastError,
			"next_attempt_at": now.Add(delay),
			"updated_at":      now,
		}).Error
}

// backoff doubles the base delay per consumed attempt, capped at max.
func backoff(base, max time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	delay := base << (attempts - 1)
	if max > 0 && delay > max {
		return max
	}
	return delay
}
