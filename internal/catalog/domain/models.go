// Package domain contains persistence models for the bookable service catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ServiceOffering is one bookable service a tenant exposes in the flow menu.
type ServiceOffering struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"column:tenant_id;not null;index:ix_service_offerings_tenant"`

	Name            string `gorm:"type:text;not null"`
	Description     string `gorm:"type:text"`
	DurationMinutes int    `gorm:"column:duration_minutes;not null;default:30"`
	PriceCents      int64  `gorm:"column:price_cents;not null;default:0"`
	SortOrder       int    `gorm:"column:sort_order;not null;default:0"`
	Active          bool   `gorm:"not null;default:true"`
	Bookable        bool   `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ServiceOffering) TableName() string { return "service_offerings" }
