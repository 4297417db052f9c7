package domain

import (
	"context"
	"errors"
	"time"
)

// DecisionUpdate is what the orchestrator persists after one flow step:
// the next state and the context patch produced by the engine.
type DecisionUpdate struct {
	NextState       State
	Patch           map[string]any
	ClearSelections bool
	HandedOff       bool
	MessageAt       time.Time
}

type Service interface {
	// GetOrCreate returns the active record for the identity tuple,
	// creating it in START on first contact.
	GetOrCreate(ctx context.Context, tenantID int64, channel, recipientAddress string) (*ConversationRecord, error)
	// ApplyDecision merges the context patch into a fresh context value and
	// persists the transition. The input record is not mutated.
	ApplyDecision(ctx context.Context, record *ConversationRecord, update DecisionUpdate) (*ConversationRecord, error)
	Get(ctx context.Context, tenantID, conversationID int64) (*ConversationRecord, error)
}

var (
	ErrInvalidRecipient     = errors.New("invalid_recipient")
	ErrInvalidState         = errors.New("invalid_state")
	ErrConversationNotFound = errors.New("conversation_not_found")
)
