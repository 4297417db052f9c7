package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/zapflow/internal/cache"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    tenantdomain.Service
	node   *snowflake.Node
	tenant *tenantdomain.Tenant
	plan   *tenantdomain.Plan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tenantdomain.Tenant{}, &tenantdomain.Plan{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	plan := &tenantdomain.Plan{
		ID:                       node.Generate(),
		Code:                     "starter",
		Name:                     "Starter",
		MonthlyConversationLimit: 40,
		Active:                   true,
	}
	require.NoError(t, db.Create(plan).Error)

	tenant := &tenantdomain.Tenant{
		ID:          node.Generate(),
		Slug:        "salon-bela",
		DisplayName: "Salão Bela",
		Timezone:    "America/Sao_Paulo",
		PlanID:      plan.ID,
		Active:      true,
	}
	require.NoError(t, db.Create(tenant).Error)

	svc := NewService(ServiceParam{
		DB:            db,
		Log:           zap.NewNop(),
		ResolverCache: cache.NewInboundResolverCache(),
	})

	return &fixture{db: db, svc: svc, node: node, tenant: tenant, plan: plan}
}

func TestGetBySlug(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.GetBySlug(ctx, "Salon-Bela")
	require.NoError(t, err)
	assert.Equal(t, f.tenant.ID, got.ID)

	_, err = f.svc.GetBySlug(ctx, "missing")
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)

	_, err = f.svc.GetBySlug(ctx, "   ")
	assert.ErrorIs(t, err, tenantdomain.ErrInvalidSlug)
}

func TestGetBySlugServesCacheAfterFirstHit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetBySlug(ctx, "salon-bela")
	require.NoError(t, err)

	// A row change invisible to the cache proves the second read never
	// touched the database.
	require.NoError(t, f.db.Model(&tenantdomain.Tenant{}).
		Where("id = ?", f.tenant.ID).
		Update("display_name", "Renamed").Error)

	got, err := f.svc.GetBySlug(ctx, "salon-bela")
	require.NoError(t, err)
	assert.Equal(t, "Salão Bela", got.DisplayName)
}

func TestInactiveTenantRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Model(&tenantdomain.Tenant{}).
		Where("id = ?", f.tenant.ID).
		Update("active", false).Error)

	_, err := f.svc.GetBySlug(ctx, "salon-bela")
	assert.ErrorIs(t, err, tenantdomain.ErrTenantInactive)
}

func TestResolveQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	limit, err := f.svc.ResolveQuota(ctx, int64(f.tenant.ID))
	require.NoError(t, err)
	assert.Equal(t, 40, limit)

	_, err = f.svc.ResolveQuota(ctx, 987654)
	assert.ErrorIs(t, err, tenantdomain.ErrTenantNotFound)
}

func TestListPlansOrdersByLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pro := &tenantdomain.Plan{
		ID:                       f.node.Generate(),
		Code:                     "pro",
		Name:                     "Pro",
		MonthlyConversationLimit: 200,
		Active:                   true,
	}
	require.NoError(t, f.db.Create(pro).Error)
	retired := &tenantdomain.Plan{
		ID:                       f.node.Generate(),
		Code:                     "legacy",
		Name:                     "Legacy",
		MonthlyConversationLimit: 10,
		Active:                   false,
	}
	require.NoError(t, f.db.Create(retired).Error)

	plans, err := f.svc.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "starter", plans[0].Code)
	assert.Equal(t, "pro", plans[1].Code)
}
