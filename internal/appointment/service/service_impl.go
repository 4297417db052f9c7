package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	appointmentdomain "github.com/smallbiznis/zapflow/internal/appointment/domain"
	"github.com/smallbiznis/zapflow/internal/clock"
	notificationdomain "github.com/smallbiznis/zapflow/internal/notification/domain"
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	"github.com/smallbiznis/zapflow/pkg/db/option"
	"github.com/smallbiznis/zapflow/pkg/log/ctxlogger"
	"github.com/smallbiznis/zapflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	dateLayout        = "2006-01-02"
	timeLayout        = "15:04"
	displayDateLayout = "02/01/2006"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
	Queue notificationdomain.Queue
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	queue notificationdomain.Queue
	repo  repository.Repository[appointmentdomain.Appointment]
}

func NewService(p ServiceParam) appointmentdomain.Service {
	return &Service{
		log:   p.Log.Named("appointment.service"),
		clock: p.Clock,
		genID: p.GenID,
		queue: p.Queue,
		repo:  repository.ProvideStore[appointmentdomain.Appointment](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req appointmentdomain.CreateRequest) (*appointmentdomain.Appointment, error) {
	startsAt, err := parseSchedule(req.Date, req.Time)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	appt := &appointmentdomain.Appointment{
		ID:               s.genID.Generate(),
		TenantID:         snowflake.ID(req.TenantID),
		ConversationID:   snowflake.ID(req.ConversationID),
		ServiceID:        snowflake.ID(req.ServiceID),
		ServiceName:      req.ServiceName,
		ClientName:       req.ClientName,
		RecipientAddress: req.RecipientAddress,
		Date:             req.Date,
		Time:             req.Time,
		StartsAt:         startsAt,
		Status:           appointmentdomain.StatusScheduled,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, err
	}

	s.enqueueNotice(ctx, appt, templatedomain.KeyBookingConfirmed)

	ctxlogger.WithContext(ctx, s.log).Info("appointment booked",
		zap.Int64("tenant_id", req.TenantID),
		zap.String("appointment_id", appt.ID.String()),
		zap.String("service", appt.ServiceName),
		zap.Time("starts_at", appt.StartsAt),
	)
	return appt, nil
}

func (s *Service) Get(ctx context.Context, tenantID, appointmentID int64) (*appointmentdomain.Appointment, error) {
	appt, err := s.repo.FindOne(ctx, &appointmentdomain.Appointment{
		ID:       snowflake.ID(appointmentID),
		TenantID: snowflake.ID(tenantID),
	})
	if err != nil {
		return nil, err
	}
	if appt == nil {
		return nil, appointmentdomain.ErrAppointmentNotFound
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, tenantID int64, status appointmentdomain.Status, limit int) ([]appointmentdomain.Appointment, error) {
	if limit < 1 || limit > 250 {
		limit = 50
	}

	query := &appointmentdomain.Appointment{TenantID: snowflake.ID(tenantID)}
	if status != "" {
		query.Status = status
	}

	rows, err := s.repo.Find(ctx, query,
		option.WithOrderBy("starts_at ASC"),
		option.WithLimit(limit),
	)
	if err != nil {
		return nil, err
	}

	out := make([]appointmentdomain.Appointment, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, tenantID, appointmentID int64) (*appointmentdomain.Appointment, error) {
	appt, err := s.Get(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == appointmentdomain.StatusCancelled {
		return nil, appointmentdomain.ErrAppointmentCancelled
	}

	now := s.clock.Now()
	appt.Status = appointmentdomain.StatusCancelled
	appt.CancelledAt = &now
	appt.UpdatedAt = now

	if err := s.repo.Update(ctx, appt.ID.String(), map[string]any{
		"status":       appt.Status,
		"cancelled_at": appt.CancelledAt,
		"updated_at":   appt.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	s.enqueueNotice(ctx, appt, templatedomain.KeyAppointmentCancelled)
	return appt, nil
}

func (s *Service) ScanDueReminders(ctx context.Context, horizon time.Duration) (int, error) {
	now := s.clock.Now()

	due, err := s.repo.Find(ctx,
		&appointmentdomain.Appointment{Status: appointmentdomain.StatusScheduled},
		option.WithOrderBy("starts_at ASC"),
		withReminderDue(now, now.Add(horizon)),
	)
	if err != nil {
		return 0, err
	}

	produced := 0
	for _, appt := range due {
		if _, err := s.queue.Enqueue(ctx, notificationdomain.EnqueueRequest{
			TenantID:         int64(appt.TenantID),
			RecipientAddress: appt.RecipientAddress,
			TemplateKey:      templatedomain.KeyAppointmentReminder,
			Variables:        s.noticeVariables(appt),
			AppointmentID:    idRef(appt.ID),
		}); err != nil {
			return produced, err
		}
		if err := s.repo.Update(ctx, appt.ID.String(), map[string]any{
			"reminder_sent_at": now,
			"updated_at":       now,
		}); err != nil {
			return produced, err
		}
		produced++
	}
	return produced, nil
}

// enqueueNotice is best-effort: the booking or cancellation already
// happened, so a queue failure is logged and delivery is dropped rather
// than failing the caller.
func (s *Service) enqueueNotice(ctx context.Context, appt *appointmentdomain.Appointment, templateKey string) {
	_, err := s.queue.Enqueue(ctx, notificationdomain.EnqueueRequest{
		TenantID:         int64(appt.TenantID),
		RecipientAddress: appt.RecipientAddress,
		TemplateKey:      templateKey,
		Variables:        s.noticeVariables(appt),
		AppointmentID:    idRef(appt.ID),
	})
	if err != nil {
		ctxlogger.WithContext(ctx, s.log).Error("notification enqueue failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("template_key", templateKey),
			zap.Error(err),
		)
	}
}

func (s *Service) noticeVariables(appt *appointmentdomain.Appointment) map[string]string {
	return map[string]string{
		"clientName":  appt.ClientName,
		"serviceName": appt.ServiceName,
		"date":        appt.StartsAt.Format(displayDateLayout),
		"time":        appt.Time,
	}
}

func parseSchedule(date, timeOfDay string) (time.Time, error) {
	startsAt, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+timeOfDay, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %s", appointmentdomain.ErrInvalidSchedule, date, timeOfDay)
	}
	return startsAt, nil
}

func idRef(id snowflake.ID) *int64 {
	v := int64(id)
	return &v
}

func withReminderDue(from, until time.Time) option.QueryOption {
	return option.WithWhere("reminder_sent_at IS NULL AND starts_at > ? AND starts_at <= ?", from, until)
}
