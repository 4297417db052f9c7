package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/zapflow/internal/catalog/domain"
	"github.com/smallbiznis/zapflow/pkg/db/option"
	"github.com/smallbiznis/zapflow/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	log  *zap.Logger
	repo repository.Repository[catalogdomain.ServiceOffering]
}

func NewService(p ServiceParam) catalogdomain.Service {
	return &Service{
		log:  p.Log.Named("catalog.service"),
		repo: repository.ProvideStore[catalogdomain.ServiceOffering](p.DB),
	}
}

func (s *Service) ListBookable(ctx context.Context, tenantID int64) ([]catalogdomain.ServiceOffering, error) {
	rows, err := s.repo.Find(ctx, &catalogdomain.ServiceOffering{
		TenantID: snowflake.ID(tenantID),
		Active:   true,
		Bookable: true,
	}, option.WithOrderBy("sort_order ASC, name ASC"))
	if err != nil {
		return nil, err
	}

	offerings := make([]catalogdomain.ServiceOffering, 0, len(rows))
	for _, row := range rows {
		offerings = append(offerings, *row)
	}
	return offerings, nil
}

func (s *Service) Get(ctx context.Context, tenantID, serviceID int64) (*catalogdomain.ServiceOffering, error) {
	offering, err := s.repo.FindOne(ctx, &catalogdomain.ServiceOffering{
		ID:       snowflake.ID(serviceID),
		TenantID: snowflake.ID(tenantID),
	})
	if err != nil {
		return nil, err
	}
	if offering == nil {
		return nil, catalogdomain.ErrServiceNotFound
	}
	return offering, nil
}
