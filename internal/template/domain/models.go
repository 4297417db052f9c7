// Package domain contains tenant message templates for outbound
// notifications.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MessageTemplate is one tenant's renderable text for a template key.
// Rows are auto-provisioned from built-in defaults on first use.
type MessageTemplate struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"column:tenant_id;not null;uniqueIndex:ux_message_templates_tenant_key,priority:1"`

	Key     string `gorm:"type:text;not null;uniqueIndex:ux_message_templates_tenant_key,priority:2"`
	Content string `gorm:"type:text;not null"`
	Enabled bool   `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (MessageTemplate) TableName() string { return "message_templates" }
