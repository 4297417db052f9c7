package domain

import (
	"context"
	"errors"
	"time"
)

// EnqueueRequest is the producer contract. The job is durably recorded
// before Enqueue returns (at-least-once intent).
type EnqueueRequest struct {
	TenantID         int64
	RecipientAddress string
	TemplateKey      string
	Variables        map[string]string
	AppointmentID    *int64
}

type Queue interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*NotificationJob, error)
	// ListByStatus feeds the operator inspection surface, newest first.
	ListByStatus(ctx context.Context, tenantID int64, status JobStatus, limit int) ([]NotificationJob, error)
	// PurgeCompletedBefore and PurgeFailedBefore bound storage growth:
	// successes are kept briefly, terminal failures for the audit window.
	PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var (
	ErrInvalidRecipient   = errors.New("invalid_recipient")
	ErrInvalidTemplateKey = errors.New("invalid_template_key")
)
