// Package domain contains persistence models for conversation billing:
// the append-only window ledger and the per-month usage counters.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// BillingWindowEvent is one row per new billable conversation. Immutable
// once created; it is both the window-activity index and the audit ledger.
type BillingWindowEvent struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	TenantID       snowflake.ID `gorm:"column:tenant_id;not null;index:ix_billing_window_events_tenant_month,priority:1"`
	ConversationID snowflake.ID `gorm:"column:conversation_id;not null;index:ix_billing_window_events_conversation"`

	RecipientAddress string    `gorm:"column:recipient_address;type:text;not null"`
	WindowStart      time.Time `gorm:"column:window_start;not null"`
	WindowEnd        time.Time `gorm:"column:window_end;not null"`
	IsExcess         bool      `gorm:"column:is_excess;not null;default:false"`
	// YearMonth is derived from WindowStart at creation and never recomputed.
	YearMonth string `gorm:"column:year_month;type:text;not null;index:ix_billing_window_events_tenant_month,priority:2"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (BillingWindowEvent) TableName() string { return "billing_window_events" }

// MonthlyUsageCounter tracks one tenant's conversation consumption for one
// billing month. ConversationsUsed never exceeds ConversationsLimit; anything
// beyond the limit lands in ExcessConversations instead.
type MonthlyUsageCounter struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"column:tenant_id;not null;uniqueIndex:ux_monthly_usage_tenant_month,priority:1"`

	YearMonth           string     `gorm:"column:year_month;type:text;not null;uniqueIndex:ux_monthly_usage_tenant_month,priority:2"`
	ConversationsUsed   int        `gorm:"column:conversations_used;not null;default:0"`
	ConversationsLimit  int        `gorm:"column:conversations_limit;not null;default:0"`
	ExcessConversations int        `gorm:"column:excess_conversations;not null;default:0"`
	LastConversationAt  *time.Time `gorm:"column:last_conversation_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MonthlyUsageCounter) TableName() string { return "monthly_usage_counters" }

// PercentUsed returns how much of the quota is consumed, 0-100.
func (c MonthlyUsageCounter) PercentUsed() float64 {
	if c.ConversationsLimit <= 0 {
		return 0
	}
	return float64(c.ConversationsUsed) / float64(c.ConversationsLimit) * 100
}
