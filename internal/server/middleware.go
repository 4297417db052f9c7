package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	tenantdomain "github.com/smallbiznis/zapflow/internal/tenant/domain"
	"github.com/smallbiznis/zapflow/pkg/tenantctx"
	"go.uber.org/zap"
)

const contextTenantKey = "tenant"

// TenantContext resolves the :tenant path segment (slug or numeric id) and
// stores the tenant on the request.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := strings.TrimSpace(c.Param("tenant"))
		if ref == "" {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		var (
			tenant *tenantdomain.Tenant
			err    error
		)
		if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
			tenant, err = s.tenantSvc.GetByID(c.Request.Context(), id)
		} else {
			tenant, err = s.tenantSvc.GetBySlug(c.Request.Context(), ref)
		}
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextTenantKey, tenant)
		c.Request = c.Request.WithContext(
			tenantctx.WithTenantID(c.Request.Context(), int64(tenant.ID)),
		)
		c.Next()
	}
}

func tenantFrom(c *gin.Context) *tenantdomain.Tenant {
	v, ok := c.Get(contextTenantKey)
	if !ok {
		return nil
	}
	tenant, _ := v.(*tenantdomain.Tenant)
	return tenant
}

// WebhookAuthRequired authenticates the inbound webhook with the tenant's
// issued bearer key.
func (s *Server) WebhookAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := tenantFrom(c)
		if tenant == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		raw = strings.TrimPrefix(raw, "Bearer ")
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if _, err := s.apiKeySvc.Verify(c.Request.Context(), int64(tenant.ID), raw); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// WebhookRateLimited applies the per-tenant token bucket. A limiter error
// fails open: dropping messages over a redis hiccup is worse than a burst.
func (s *Server) WebhookRateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.webhookLimiter.Enabled() {
			c.Next()
			return
		}

		tenant := tenantFrom(c)
		res, err := s.webhookLimiter.AllowTenant(c.Request.Context(), tenant.ID.String())
		if err != nil {
			s.log.Warn("webhook rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
