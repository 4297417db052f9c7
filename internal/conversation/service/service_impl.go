package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/zapflow/internal/clock"
	conversationdomain "github.com/smallbiznis/zapflow/internal/conversation/domain"
	"github.com/smallbiznis/zapflow/pkg/db"
	"github.com/smallbiznis/zapflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	GenID *snowflake.Node
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  repository.Repository[conversationdomain.ConversationRecord]
}

func NewService(p ServiceParam) conversationdomain.Service {
	return &Service{
		log:   p.Log.Named("conversation.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  repository.ProvideStore[conversationdomain.ConversationRecord](p.DB),
	}
}

func (s *Service) GetOrCreate(ctx context.Context, tenantID int64, channel, recipientAddress string) (*conversationdomain.ConversationRecord, error) {
	recipientAddress = strings.TrimSpace(recipientAddress)
	if recipientAddress == "" {
		return nil, conversationdomain.ErrInvalidRecipient
	}
	if channel == "" {
		channel = "whatsapp"
	}

	query := &conversationdomain.ConversationRecord{
		TenantID:         snowflake.ID(tenantID),
		Channel:          channel,
		RecipientAddress: recipientAddress,
	}

	record, err := s.repo.FindOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	now := s.clock.Now()
	fresh := &conversationdomain.ConversationRecord{
		ID:               s.genID.Generate(),
		TenantID:         snowflake.ID(tenantID),
		Channel:          channel,
		RecipientAddress: recipientAddress,
		State:            conversationdomain.StateStart,
		Context:          datatypes.JSONMap{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, fresh); err != nil {
		// Concurrent first contact: the unique identity index decided the
		// winner, read its row.
		if db.IsDuplicateKeyErr(err) {
			return s.repo.FindOne(ctx, query)
		}
		return nil, err
	}
	return fresh, nil
}

func (s *Service) ApplyDecision(ctx context.Context, record *conversationdomain.ConversationRecord, update conversationdomain.DecisionUpdate) (*conversationdomain.ConversationRecord, error) {
	if record == nil {
		return nil, conversationdomain.ErrConversationNotFound
	}
	if !update.NextState.Valid() {
		return nil, conversationdomain.ErrInvalidState
	}

	now := s.clock.Now()
	messageAt := update.MessageAt
	if messageAt.IsZero() {
		messageAt = now
	}

	next := *record
	next.State = update.NextState
	next.Context = conversationdomain.MergeContext(record.Context, update.Patch, update.ClearSelections)
	next.IsHandedOff = update.HandedOff
	next.LastMessageAt = &messageAt
	next.UpdatedAt = now

	if err := s.repo.Update(ctx, next.ID.String(), map[string]any{
		"state":           next.State,
		"context":         next.Context,
		"is_handed_off":   next.IsHandedOff,
		"last_message_at": next.LastMessageAt,
		"updated_at":      next.UpdatedAt,
	}); err != nil {
		return nil, err
	}
	return &next, nil
}

func (s *Service) Get(ctx context.Context, tenantID, conversationID int64) (*conversationdomain.ConversationRecord, error) {
	record, err := s.repo.FindOne(ctx, &conversationdomain.ConversationRecord{
		ID:       snowflake.ID(conversationID),
		TenantID: snowflake.ID(tenantID),
	})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, conversationdomain.ErrConversationNotFound
	}
	return record, nil
}
