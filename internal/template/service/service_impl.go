package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/zapflow/internal/clock"
	templatedomain "github.com/smallbiznis/zapflow/internal/template/domain"
	"github.com/smallbiznis/zapflow/pkg/db"
	"github.com/smallbiznis/zapflow/pkg/db/option"
	"github.com/smallbiznis/zapflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
	repo  repository.Repository[templatedomain.MessageTemplate]
}

func NewService(p ServiceParam) templatedomain.Service {
	return &Service{
		log:   p.Log.Named("template.service"),
		clock: p.Clock,
		genID: p.GenID,
		repo:  repository.ProvideStore[templatedomain.MessageTemplate](p.DB),
	}
}

func (s *Service) Resolve(ctx context.Context, tenantID int64, key string) (*templatedomain.MessageTemplate, error) {
	key = strings.TrimSpace(key)

	row, err := s.repo.FindOne(ctx, &templatedomain.MessageTemplate{
		TenantID: snowflake.ID(tenantID),
		Key:      key,
	})
	if err != nil {
		return nil, err
	}

	if row == nil {
		return s.provision(ctx, tenantID, key)
	}
	if !row.Enabled {
		return nil, templatedomain.ErrTemplateDisabled
	}
	return row, nil
}

// provision self-heals a missing tenant row from the built-in defaults.
func (s *Service) provision(ctx context.Context, tenantID int64, key string) (*templatedomain.MessageTemplate, error) {
	content, ok := templatedomain.DefaultContent(key)
	if !ok {
		return nil, templatedomain.ErrUnknownKey
	}

	now := s.clock.Now()
	row := &templatedomain.MessageTemplate{
		ID:        s.genID.Generate(),
		TenantID:  snowflake.ID(tenantID),
		Key:       key,
		Content:   content,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return s.Resolve(ctx, tenantID, key)
		}
		return nil, err
	}

	s.log.Info("template auto-provisioned",
		zap.Int64("tenant_id", tenantID),
		zap.String("key", key),
	)
	return row, nil
}

func (s *Service) List(ctx context.Context, tenantID int64) ([]templatedomain.MessageTemplate, error) {
	rows, err := s.repo.Find(ctx,
		&templatedomain.MessageTemplate{TenantID: snowflake.ID(tenantID)},
		option.WithOrderBy("key ASC"),
	)
	if err != nil {
		return nil, err
	}

	templates := make([]templatedomain.MessageTemplate, 0, len(rows))
	for _, row := range rows {
		templates = append(templates, *row)
	}
	return templates, nil
}

func (s *Service) Update(ctx context.Context, tenantID int64, key string, req templatedomain.UpdateRequest) (*templatedomain.MessageTemplate, error) {
	key = strings.TrimSpace(key)
	if _, ok := templatedomain.DefaultContent(key); !ok {
		return nil, templatedomain.ErrUnknownKey
	}

	row, err := s.repo.FindOne(ctx, &templatedomain.MessageTemplate{
		TenantID: snowflake.ID(tenantID),
		Key:      key,
	})
	if err != nil {
		return nil, err
	}
	if row == nil {
		// Customizing a key the tenant never used provisions it first.
		row, err = s.provision(ctx, tenantID, key)
		if err != nil {
			return nil, err
		}
	}

	updates := map[string]any{"updated_at": s.clock.Now()}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, templatedomain.ErrEmptyContent
		}
		row.Content = content
		updates["content"] = content
	}
	if req.Enabled != nil {
		row.Enabled = *req.Enabled
		updates["enabled"] = *req.Enabled
	}

	if err := s.repo.Update(ctx, row.ID.String(), updates); err != nil {
		return nil, err
	}
	return row, nil
}
