// Package queue persists outbound notification requests. It is the only
// producer-facing surface; delivery belongs to the worker.
package queue

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/zapflow/internal/clock"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	"github.com/smallbiznis/zapflow/pkg/db/option"
	"github.com/smallbiznis/zapflow/pkg/log/ctxlogger"
	"github.com/smallbiznis/zapflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QueueParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
}

type Queue struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  repository.Repository[notificationdomain.NotificationJob]
}

func NewQueue(p QueueParam) notificationdomain.Queue {
	return &Queue{
		db:    p.DB,
		log:   p.Log.Named("notification.queue"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  repository.ProvideStore[notificationdomain.NotificationJob](p.DB),
	}
}

func (q *Queue) Enqueue(ctx context.Context, req notificationdomain.EnqueueRequest) (*notificationdomain.NotificationJob, error) {
	recipient := strings.TrimSpace(req.RecipientAddress)
	if recipient == "" {
		return nil, notificationdomain.ErrInvalidRecipient
	}
	key := strings.TrimSpace(req.TemplateKey)
	if key == "" {
		return nil, notificationdomain.ErrInvalidTemplateKey
	}

	variables := make(datatypes.JSONMap, len(req.Variables))
	for k, v := range req.Variables {
		variables[k] = v
	}

	var appointmentID *snowflake.ID
	if req.AppointmentID != nil {
		id := snowflake.ID(*req.AppointmentID)
		appointmentID = &id
	}

	now := q.clock.Now()
	job := &notificationdomain.NotificationJob{
		ID:               q.genID.Generate(),
		TenantID:         snowflake.ID(req.TenantID),
		RecipientAddress: recipient,
		TemplateKey:      key,
		Variables:        variables,
		AppointmentID:    appointmentID,
		Status:           notificationdomain.JobStatusWaiting,
		NextAttemptAt:    now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := q.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	ctxlogger.WithContext(ctx, q.log).Info("notification enqueued",
		zap.Int64("tenant_id", req.TenantID),
		zap.String("job_id", job.ID.String()),
		zap.String("template_key", key),
	)
	return job, nil
}

func (q *Queue) ListByStatus(ctx context.Context, tenantID int64, status notificationdomain.JobStatus, limit int) ([]notificationdomain.NotificationJob, error) {
	if limit < 1 || limit > 250 {
		limit = 50
	}

	rows, err := q.repo.Find(ctx, &notificationdomain.NotificationJob{
		TenantID: snowflake.ID(tenantID),
		Status:   status,
	}, option.WithOrderBy("id DESC"), option.WithLimit(limit))
	if err != nil {
		return nil, err
	}

	jobs := make([]notificationdomain.NotificationJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, *row)
	}
	return jobs, nil
}

func (q *Queue) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return q.purge(ctx, notificationdomain.JobStatusCompleted, "completed_at", cutoff)
}

func (q *Queue) PurgeFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return q.purge(ctx, notificationdomain.JobStatusFailed, "failed_at", cutoff)
}

func (q *Queue) purge(ctx context.Context, status notificationdomain.JobStatus, column string, cutoff time.Time) (int64, error) {
	res := q.db.WithContext(ctx).
		Where("status = ? AND "+column+" < ?", status, cutoff).
		Delete(&notificationdomain.NotificationJob{})
	return res.RowsAffected, res.Error
}
