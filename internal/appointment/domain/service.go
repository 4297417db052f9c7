package domain

import (
	"context"
	"errors"
	"time"
)

// CreateRequest carries the outcome of a confirmed booking flow.
type CreateRequest struct {
	TenantID         int64
	ConversationID   int64
	ServiceID        int64
	ServiceName      string
	ClientName       string
	RecipientAddress string
	Date             string
	Time             string
}

type Service interface {
	// Create persists the appointment and enqueues the confirmation
	// notification. The appointment is the source of truth; a failed
	// enqueue is logged but does not roll the booking back.
	Create(ctx context.Context, req CreateRequest) (*Appointment, error)

	Get(ctx context.Context, tenantID, appointmentID int64) (*Appointment, error)
	List(ctx context.Context, tenantID int64, status Status, limit int) ([]Appointment, error)

	// Cancel marks the appointment cancelled and enqueues the
	// cancellation notice to the client.
	Cancel(ctx context.Context, tenantID, appointmentID int64) (*Appointment, error)

	// ScanDueReminders enqueues appointment_reminder notifications for
	// scheduled appointments starting within horizon that have not been
	// reminded yet. Returns how many reminders were produced.
	ScanDueReminders(ctx context.Context, horizon time.Duration) (int, error)
}

var (
	ErrAppointmentNotFound  = errors.New("appointment_not_found")
	ErrAppointmentCancelled = errors.New("appointment_already_cancelled")
	ErrInvalidSchedule      = errors.New("invalid_schedule")
)
