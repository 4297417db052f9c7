// Package domain contains the conversation record and its scripted-flow
// state set.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// State enumerates the scripted booking flow. The set is closed: the flow
// engine dispatches exhaustively and rejects anything else.
type State string

const (
	StateStart         State = "START"
	StateChooseService State = "CHOOSE_SERVICE"
	StateChooseDate    State = "CHOOSE_DATE"
	StateChooseTime    State = "CHOOSE_TIME"
	StateConfirm       State = "CONFIRM"
	StateDone          State = "DONE"
	StateHumanHandoff  State = "HUMAN_HANDOFF"
)

// Valid reports whether s belongs to the closed state set.
func (s State) Valid() bool {
	switch s {
	case StateStart, StateChooseService, StateChooseDate, StateChooseTime,
		StateConfirm, StateDone, StateHumanHandoff:
		return true
	}
	return false
}

// ConversationRecord is the single active conversation per
// (tenant, channel, recipient). Never hard-deleted; history is audit data.
type ConversationRecord struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"column:tenant_id;not null;uniqueIndex:ux_conversations_identity,priority:1"`

	Channel          string `gorm:"type:text;not null;default:'whatsapp';uniqueIndex:ux_conversations_identity,priority:2"`
	RecipientAddress string `gorm:"column:recipient_address;type:text;not null;uniqueIndex:ux_conversations_identity,priority:3"`

	State State `gorm:"type:text;not null;default:'START'"`
	// Context is an opaque versioned document; unknown keys are kept so a
	// newer writer never breaks an older reader.
	Context       datatypes.JSONMap `gorm:"type:jsonb"`
	IsHandedOff   bool              `gorm:"column:is_handed_off;not null;default:false"`
	LastMessageAt *time.Time        `gorm:"column:last_message_at"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ConversationRecord) TableName() string { return "conversations" }
