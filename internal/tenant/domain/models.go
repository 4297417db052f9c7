package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Plan is a subscription tier carrying the monthly conversation quota.
type Plan struct {
	ID   snowflake.ID `gorm:"primaryKey"`
	Code string       `gorm:"type:text;not null;uniqueIndex:ux_plans_code"`
	Name string       `gorm:"type:text;not null"`

	MonthlyConversationLimit int               `gorm:"column:monthly_conversation_limit;not null"`
	PriceCents               int64             `gorm:"column:price_cents;not null;default:0"`
	Active                   bool              `gorm:"not null;default:true"`
	Metadata                 datatypes.JSONMap `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Plan) TableName() string { return "plans" }

// Tenant is one isolated customer account. Every core record is scoped
// by tenant identity.
type Tenant struct {
	ID   snowflake.ID `gorm:"primaryKey"`
	Slug string       `gorm:"type:text;not null;uniqueIndex:ux_tenants_slug"`

	DisplayName string       `gorm:"column:display_name;type:text;not null"`
	Timezone    string       `gorm:"type:text;not null;default:'America/Sao_Paulo'"`
	PlanID      snowflake.ID `gorm:"column:plan_id;not null"`
	Active      bool         `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Tenant) TableName() string { return "tenants" }

// Location resolves the tenant's timezone, falling back to UTC when the
// stored zone is unknown.
func (t Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
