package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/zapflow/internal/cache"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
	"github.com/smallbiznis/zapflow/pkg/db/option"
	"github.com/smallbiznis/zapflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	ResolverCache cache.InboundResolverCache
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	tenantrepo    repository.Repository[tenantdomain.Tenant]
	planrepo      repository.Repository[tenantdomain.Plan]
	resolverCache cache.InboundResolverCache
}

func NewService(p ServiceParam) tenantdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("tenant.service"),

		tenantrepo:    repository.ProvideStore[tenantdomain.Tenant](p.DB),
		planrepo:      repository.ProvideStore[tenantdomain.Plan](p.DB),
		resolverCache: p.ResolverCache,
	}
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*tenantdomain.Tenant, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, tenantdomain.ErrInvalidSlug
	}

	if cached, ok := s.resolverCache.GetTenant(slug); ok {
		return cached, nil
	}

	tenant, err := s.tenantrepo.FindOne(ctx, &tenantdomain.Tenant{Slug: slug})
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, tenantdomain.ErrTenantNotFound
	}
	if !tenant.Active {
		return nil, tenantdomain.ErrTenantInactive
	}

	s.resolverCache.SetTenant(slug, tenant)
	return tenant, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*tenantdomain.Tenant, error) {
	tenant, err := s.tenantrepo.FindOne(ctx, &tenantdomain.Tenant{ID: snowflake.ID(id)})
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, tenantdomain.ErrTenantNotFound
	}
	return tenant, nil
}

func (s *Service) ResolveQuota(ctx context.Context, tenantID int64) (int, error) {
	if limit, ok := s.resolverCache.GetQuota(tenantID); ok {
		return limit, nil
	}

	tenant, err := s.GetByID(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	plan, err := s.planrepo.FindOne(ctx, &tenantdomain.Plan{ID: tenant.PlanID})
	if err != nil {
		return 0, err
	}
	if plan == nil {
		return 0, tenantdomain.ErrPlanNotFound
	}

	s.resolverCache.SetQuota(tenantID, plan.MonthlyConversationLimit)
	return plan.MonthlyConversationLimit, nil
}

func (s *Service) ListPlans(ctx context.Context) ([]tenantdomain.Plan, error) {
	rows, err := s.planrepo.Find(ctx, &tenantdomain.Plan{Active: true}, option.WithOrderBy("monthly_conversation_limit ASC"))
	if err != nil {
		return nil, err
	}

	plans := make([]tenantdomain.Plan, 0, len(rows))
	for _, row := range rows {
		plans = append(plans, *row)
	}
	return plans, nil
}
