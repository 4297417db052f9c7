// Package domain contains the durable outbound notification job.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// JobStatus is the delivery lifecycle: waiting → active → (completed | failed).
type JobStatus string

const (
	JobStatusWaiting   JobStatus = "waiting"
	JobStatusActive    JobStatus = "active"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Failure reasons recorded on the job. The first two are retryable; a
// disabled template is a business outcome and terminates immediately.
const (
	ReasonSessionNotConnected = "SESSION_NOT_CONNECTED"
	ReasonSendFailed          = "SEND_FAILED"
	ReasonTemplateDisabled    = "TEMPLATE_DISABLED"
)

// NotificationJob is one durable unit of outbound work with bounded retry.
// Delivery is at-least-once: a crash between gateway send and completion
// mark can duplicate a message, which we accept rather than layering dedup
// without a gateway idempotency key.
type NotificationJob struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"column:tenant_id;not null;index:ix_notification_jobs_tenant"`

	RecipientAddress string            `gorm:"column:recipient_address;type:text;not null"`
	TemplateKey      string            `gorm:"column:template_key;type:text;not null"`
	Variables        datatypes.JSONMap `gorm:"type:jsonb"`
	AppointmentID    *snowflake.ID     `gorm:"column:appointment_id"`

	Status        JobStatus `gorm:"type:text;not null;default:'waiting';index:ix_notification_jobs_claim,priority:1"`
	AttemptCount  int       `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt time.Time `gorm:"column:next_attempt_at;not null;index:ix_notification_jobs_claim,priority:2"`
	LastError     string    `gorm:"column:last_error;type:text"`

	CompletedAt *time.Time `gorm:"column:completed_at"`
	FailedAt    *time.Time `gorm:"column:failed_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (NotificationJob) TableName() string { return "notification_jobs" }

// StringVariables flattens the jsonb document for template rendering.
func (j NotificationJob) StringVariables() map[string]string {
	vars := make(map[string]string, len(j.Variables))
	for k, v := range j.Variables {
		if s, ok := v.(string); ok {
			vars[k] = s
		}
	}
	return vars
}
