package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/zapflow/pkg/db/pagination"
)

// MessageBillingRequest identifies one inbound message for window
// classification. LastMessageAt covers conversations that predate the
// billing-event ledger.
type MessageBillingRequest struct {
	TenantID         int64
	ConversationID   int64
	RecipientAddress string
	LastMessageAt    *time.Time
}

// MessageBillingResult is the advisory outcome of billing classification.
// ShouldProcess is always true: quota state never blocks a message.
type MessageBillingResult struct {
	ShouldProcess   bool `json:"should_process"`
	NewConversation bool `json:"new_conversation"`
	IsExcess        bool `json:"is_excess"`
	// UsageKnown is false when the store failed and the safe default applied.
	UsageKnown        bool `json:"usage_known"`
	ConversationsUsed int  `json:"conversations_used"`
	ConversationsMax  int  `json:"conversations_max"`
}

// UsageSummary is the read surface consumed by reporting.
type UsageSummary struct {
	YearMonth  string  `json:"year_month"`
	Used       int     `json:"used"`
	Limit      int     `json:"limit"`
	Excess     int     `json:"excess"`
	Percentage float64 `json:"percentage"`
}

type ListEventsRequest struct {
	ConversationID int64
	PageToken      string
	PageSize       int32
}

type ListEventsResponse struct {
	pagination.PageInfo
	Events []BillingWindowEvent `json:"events"`
}

type Tracker interface {
	// ProcessMessageBilling never fails the caller: on any internal error it
	// returns the safe default and logs, so ingestion continues unaffected.
	ProcessMessageBilling(ctx context.Context, req MessageBillingRequest) MessageBillingResult

	CheckActiveWindow(ctx context.Context, conversationID int64, fallbackLastMessageAt *time.Time) (bool, error)
	RegisterNewConversation(ctx context.Context, tenantID, conversationID int64, recipientAddress string) (*BillingWindowEvent, *MonthlyUsageCounter, error)

	CurrentUsage(ctx context.Context, tenantID int64) (*UsageSummary, error)
	UsageHistory(ctx context.Context, tenantID int64, months int) ([]UsageSummary, error)
	ListEvents(ctx context.Context, req ListEventsRequest) (ListEventsResponse, error)
}

var (
	ErrInvalidTenant       = errors.New("invalid_tenant")
	ErrInvalidConversation = errors.New("invalid_conversation")
)
