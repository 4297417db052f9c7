package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/zapflow/internal/billing/domain"
	"github.com/smallbiznis/zapflow/internal/billing/window"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/cloudmetrics"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
	"github.com/smallbiznis/zapflow/pkg/db"
	"github.com/smallbiznis/zapflow/pkg/db/option"
	"github.com/smallbiznis/zapflow/pkg/log/ctxlogger"
	"github.com/smallbiznis/zapflow/pkg/repository"
	"github.com/smallbiznis/zapflow/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	GenID     *snowflake.Node
	TenantSvc tenantdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node

	tenantsvc   tenantdomain.Service
	eventrepo   repository.Repository[billingdomain.BillingWindowEvent]
	counterrepo repository.Repository[billingdomain.MonthlyUsageCounter]
}

func NewService(p ServiceParam) billingdomain.Tracker {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billing.service"),
		clock: p.Clock,
		genID: p.GenID,

		tenantsvc:   p.TenantSvc,
		eventrepo:   repository.ProvideStore[billingdomain.BillingWindowEvent](p.DB),
		counterrepo: repository.ProvideStore[billingdomain.MonthlyUsageCounter](p.DB),
	}
}

// ProcessMessageBilling classifies one inbound message against the 24h
// window rule. Billing is an accounting side-channel: every branch,
// including a failing store, ends with ShouldProcess = true.
func (s *Service) ProcessMessageBilling(ctx context.Context, req billingdomain.MessageBillingRequest) billingdomain.MessageBillingResult {
	log := ctxlogger.WithContext(ctx, s.log).With(
		zap.Int64("tenant_id", req.TenantID),
		zap.Int64("conversation_id", req.ConversationID),
	)

	safe := billingdomain.MessageBillingResult{ShouldProcess: true}

	active, err := s.CheckActiveWindow(ctx, req.ConversationID, req.LastMessageAt)
	if err != nil {
		log.Error("billing window lookup failed, applying safe default", zap.Error(err))
		return safe
	}
	if active {
		log.Debug("billing window reused")
		return billingdomain.MessageBillingResult{ShouldProcess: true, UsageKnown: true}
	}

	event, counter, err := s.RegisterNewConversation(ctx, req.TenantID, req.ConversationID, req.RecipientAddress)
	if err != nil {
		log.Error("billing registration failed, applying safe default", zap.Error(err))
		return safe
	}

	cloudmetrics.RecordConversationStarted(strconv.FormatInt(req.TenantID, 10), event.IsExcess)

	switch {
	case event.IsExcess:
		log.Warn("conversation exceeds monthly quota",
			zap.Int("used", counter.ConversationsUsed),
			zap.Int("limit", counter.ConversationsLimit),
			zap.Int("excess", counter.ExcessConversations),
		)
	case window.ReachesLimit(counter.ConversationsUsed, counter.ConversationsLimit):
		log.Warn("monthly quota reached",
			zap.Int("used", counter.ConversationsUsed),
			zap.Int("limit", counter.ConversationsLimit),
		)
	default:
		log.Info("new billable conversation",
			zap.Int("used", counter.ConversationsUsed),
			zap.Int("limit", counter.ConversationsLimit),
		)
	}

	return billingdomain.MessageBillingResult{
		ShouldProcess:     true,
		NewConversation:   true,
		IsExcess:          event.IsExcess,
		UsageKnown:        true,
		ConversationsUsed: counter.ConversationsUsed,
		ConversationsMax:  counter.ConversationsLimit,
	}
}

// CheckActiveWindow looks for an unexpired BillingWindowEvent for the
// conversation, falling back to the conversation's own last-message time
// for records that predate the ledger.
func (s *Service) CheckActiveWindow(ctx context.Context, conversationID int64, fallbackLastMessageAt *time.Time) (bool, error) {
	if conversationID == 0 {
		return false, billingdomain.ErrInvalidConversation
	}

	latest, err := s.eventrepo.FindOne(ctx,
		&billingdomain.BillingWindowEvent{ConversationID: snowflake.ID(conversationID)},
		option.WithOrderBy("window_start DESC"),
	)
	if err != nil {
		return false, err
	}

	now := s.clock.Now()
	if latest != nil {
		return now.Before(latest.WindowEnd), nil
	}
	if fallbackLastMessageAt != nil {
		return window.Active(*fallbackLastMessageAt, now), nil
	}
	return false, nil
}

// RegisterNewConversation opens a new billable window. The counter read,
// the quota classification, the increment, and the ledger append run in one
// transaction holding a row lock on the tenant's monthly counter, so two
// concurrent messages cannot both see the pre-increment value.
func (s *Service) RegisterNewConversation(ctx context.Context, tenantID, conversationID int64, recipientAddress string) (*billingdomain.BillingWindowEvent, *billingdomain.MonthlyUsageCounter, error) {
	if tenantID == 0 {
		return nil, nil, billingdomain.ErrInvalidTenant
	}
	if conversationID == 0 {
		return nil, nil, billingdomain.ErrInvalidConversation
	}

	now := s.clock.Now()
	yearMonth := window.YearMonth(now)
	windowStart, windowEnd := window.Bounds(now)

	var (
		event   *billingdomain.BillingWindowEvent
		counter *billingdomain.MonthlyUsageCounter
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithTenant(tx, tenantID); err != nil {
			return err
		}
		counters := s.counterrepo.WithTrx(tx)

		row, err := s.lockOrCreateCounter(ctx, tx, tenantID, yearMonth)
		if err != nil {
			return err
		}

		isExcess := window.IsExcess(row.ConversationsUsed, row.ConversationsLimit)
		if isExcess {
			row.ExcessConversations++
		} else {
			row.ConversationsUsed++
		}
		row.LastConversationAt = &now
		row.UpdatedAt = now

		if err := counters.Update(ctx, row.ID.String(), map[string]any{
			"conversations_used":   row.ConversationsUsed,
			"excess_conversations": row.ExcessConversations,
			"last_conversation_at": row.LastConversationAt,
			"updated_at":           row.UpdatedAt,
		}); err != nil {
			return err
		}

		ev := &billingdomain.BillingWindowEvent{
			ID:               s.genID.Generate(),
			TenantID:         snowflake.ID(tenantID),
			ConversationID:   snowflake.ID(conversationID),
			RecipientAddress: recipientAddress,
			WindowStart:      windowStart,
			WindowEnd:        windowEnd,
			IsExcess:         isExcess,
			YearMonth:        yearMonth,
			CreatedAt:        now,
		}
		if err := s.eventrepo.WithTrx(tx).Create(ctx, ev); err != nil {
			return err
		}

		event = ev
		counter = row
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return event, counter, nil
}

// lockOrCreateCounter loads the tenant's counter for yearMonth under a row
// lock, lazily creating it seeded with the plan quota. A duplicate-key error
// on create means a concurrent transaction won the insert; re-lock its row.
func (s *Service) lockOrCreateCounter(ctx context.Context, tx *gorm.DB, tenantID int64, yearMonth string) (*billingdomain.MonthlyUsageCounter, error) {
	counters := s.counterrepo.WithTrx(tx)
	query := &billingdomain.MonthlyUsageCounter{
		TenantID:  snowflake.ID(tenantID),
		YearMonth: yearMonth,
	}

	row, err := counters.FindOne(ctx, query, option.WithLockForUpdate())
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}

	limit, err := s.tenantsvc.ResolveQuota(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	fresh := &billingdomain.MonthlyUsageCounter{
		ID:                 s.genID.Generate(),
		TenantID:           snowflake.ID(tenantID),
		YearMonth:          yearMonth,
		ConversationsLimit: limit,
		CreatedAt:          s.clock.Now(),
		UpdatedAt:          s.clock.Now(),
	}
	if err := counters.Create(ctx, fresh); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return counters.FindOne(ctx, query, option.WithLockForUpdate())
		}
		return nil, err
	}
	return fresh, nil
}

func (s *Service) CurrentUsage(ctx context.Context, tenantID int64) (*billingdomain.UsageSummary, error) {
	if tenantID == 0 {
		return nil, billingdomain.ErrInvalidTenant
	}

	yearMonth := window.YearMonth(s.clock.Now())
	row, err := s.counterrepo.FindOne(ctx, &billingdomain.MonthlyUsageCounter{
		TenantID:  snowflake.ID(tenantID),
		YearMonth: yearMonth,
	})
	if err != nil {
		return nil, err
	}

	if row == nil {
		limit, err := s.tenantsvc.ResolveQuota(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return &billingdomain.UsageSummary{YearMonth: yearMonth, Limit: limit}, nil
	}

	return &billingdomain.UsageSummary{
		YearMonth:  row.YearMonth,
		Used:       row.ConversationsUsed,
		Limit:      row.ConversationsLimit,
		Excess:     row.ExcessConversations,
		Percentage: row.PercentUsed(),
	}, nil
}

func (s *Service) UsageHistory(ctx context.Context, tenantID int64, months int) ([]billingdomain.UsageSummary, error) {
	if tenantID == 0 {
		return nil, billingdomain.ErrInvalidTenant
	}
	if months < 1 {
		months = 1
	}
	if months > 24 {
		months = 24
	}

	rows, err := s.counterrepo.Find(ctx,
		&billingdomain.MonthlyUsageCounter{TenantID: snowflake.ID(tenantID)},
		option.WithOrderBy("year_month DESC"),
		option.WithLimit(months),
	)
	if err != nil {
		return nil, err
	}

	history := make([]billingdomain.UsageSummary, 0, len(rows))
	for _, row := range rows {
		history = append(history, billingdomain.UsageSummary{
			YearMonth:  row.YearMonth,
			Used:       row.ConversationsUsed,
			Limit:      row.ConversationsLimit,
			Excess:     row.ExcessConversations,
			Percentage: row.PercentUsed(),
		})
	}
	return history, nil
}

func (s *Service) ListEvents(ctx context.Context, req billingdomain.ListEventsRequest) (billingdomain.ListEventsResponse, error) {
	if req.ConversationID == 0 {
		return billingdomain.ListEventsResponse{}, billingdomain.ErrInvalidConversation
	}

	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 250 {
		pageSize = 50
	}

	opts := []option.QueryOption{
		option.WithOrderBy("id DESC"),
		option.WithLimit(int(pageSize) + 1),
	}
	if req.PageToken != "" {
		cursor, err := decodeEventCursor(req.PageToken)
		if err != nil {
			return billingdomain.ListEventsResponse{}, err
		}
		opts = append(opts, option.WithIDBefore(cursor))
	}

	rows, err := s.eventrepo.Find(ctx,
		&billingdomain.BillingWindowEvent{ConversationID: snowflake.ID(req.ConversationID)},
		opts...,
	)
	if err != nil {
		return billingdomain.ListEventsResponse{}, err
	}

	pageInfo, rows := paginateEvents(rows, pageSize)

	events := make([]billingdomain.BillingWindowEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, *row)
	}
	return billingdomain.ListEventsResponse{PageInfo: *pageInfo, Events: events}, nil
}

func decodeEventCursor(token string) (int64, error) {
	id, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, errors.New("invalid_page_token")
	}
	return id, nil
}
