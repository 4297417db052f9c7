package cache

import (
	"strings"
	"time"

	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
)

const (
	defaultTenantTTL = 10 * time.Minute
	defaultQuotaTTL  = 45 * time.Second
)

// InboundResolverCache stores hot-path resolver lookups for message ingest:
// tenant identity by webhook slug and the plan quota used by billing.
type InboundResolverCache interface {
	GetTenant(slug string) (*tenantdomain.Tenant, bool)
	SetTenant(slug string, tenant *tenantdomain.Tenant)
	InvalidateTenant(slug string)
	GetQuota(tenantID int64) (int, bool)
	SetQuota(tenantID int64, limit int)
}

type inboundResolverCache struct {
	tenants   Cache[string, *tenantdomain.Tenant]
	quotas    Cache[int64, int]
	tenantTTL time.Duration
	quotaTTL  time.Duration
}

// NewInboundResolverCache returns an in-memory cache tuned for message ingest.
func NewInboundResolverCache() InboundResolverCache {
	return &inboundResolverCache{
		tenants:   NewTTLCache[string, *tenantdomain.Tenant](),
		quotas:    NewTTLCache[int64, int](),
		tenantTTL: defaultTenantTTL,
		quotaTTL:  defaultQuotaTTL,
	}
}

func (c *inboundResolverCache) GetTenant(slug string) (*tenantdomain.Tenant, bool) {
	return c.tenants.Get(normalizeKey(slug))
}

func (c *inboundResolverCache) SetTenant(slug string, tenant *tenantdomain.Tenant) {
	if tenant == nil {
		return
	}
	c.tenants.Set(normalizeKey(slug), tenant, c.tenantTTL)
}

func (c *inboundResolverCache) InvalidateTenant(slug string) {
	c.tenants.Delete(normalizeKey(slug))
}

func (c *inboundResolverCache) GetQuota(tenantID int64) (int, bool) {
	return c.quotas.Get(tenantID)
}

func (c *inboundResolverCache) SetQuota(tenantID int64, limit int) {
	if limit < 0 {
		return
	}
	c.quotas.Set(tenantID, limit, c.quotaTTL)
}

func normalizeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
