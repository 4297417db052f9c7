package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// Appointment is the booking the conversation flow finalizes against.
// Date and Time keep the wire form shown to the client; StartsAt is the
// resolved instant used by the reminder scan.
type Appointment struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	TenantID       snowflake.ID `gorm:"column:tenant_id;not null;index:ix_appointments_tenant"`
	ConversationID snowflake.ID `gorm:"column:conversation_id;not null;index:ix_appointments_conversation"`

	ServiceID   snowflake.ID `gorm:"column:service_id;not null"`
	ServiceName string       `gorm:"column:service_name;type:text;not null"`
	ClientName  string       `gorm:"column:client_name;type:text"`

	RecipientAddress string `gorm:"column:recipient_address;type:text;not null"`

	Date     string    `gorm:"type:text;not null"`
	Time     string    `gorm:"type:text;not null"`
	StartsAt time.Time `gorm:"column:starts_at;not null;index:ix_appointments_reminder,priority:2"`

	Status         Status     `gorm:"type:text;not null;default:'scheduled';index:ix_appointments_reminder,priority:1"`
	ReminderSentAt *time.Time `gorm:"column:reminder_sent_at"`
	CancelledAt    *time.Time `gorm:"column:cancelled_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Appointment) TableName() string { return "appointments" }
