package domain

import (
	"context"
	"errors"
)

// QuotaUnlimited marks a plan without a monthly conversation cap.
const QuotaUnlimited = 0

type Service interface {
	GetBySlug(ctx context.Context, slug string) (*Tenant, error)
	GetByID(ctx context.Context, id int64) (*Tenant, error)
	// ResolveQuota returns the monthly conversation limit of the tenant's
	// current plan. Served from cache on the hot ingest path.
	ResolveQuota(ctx context.Context, tenantID int64) (int, error)
	ListPlans(ctx context.Context) ([]Plan, error)
}

var (
	ErrTenantNotFound = errors.New("tenant_not_found")
	ErrTenantInactive = errors.New("tenant_inactive")
	ErrPlanNotFound   = errors.New("plan_not_found")
	ErrInvalidSlug    = errors.New("invalid_slug")
)
