package tenantctx

import "context"

type keyType string

const (
	TenantIDKey   keyType = "tenant_id"
	TenantSlugKey keyType = "tenant_slug"
)

// WithTenantID stamps the resolved tenant identity onto the context.
func WithTenantID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, TenantIDKey, id)
}

// WithTenantSlug stamps the tenant slug onto the context.
func WithTenantSlug(ctx context.Context, slug string) context.Context {
	if slug == "" {
		return ctx
	}
	return context.WithValue(ctx, TenantSlugKey, slug)
}

func TenantID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(TenantIDKey).(int64)
	return id, ok
}

func TenantSlug(ctx context.Context) (string, bool) {
	slug, ok := ctx.Value(TenantSlugKey).(string)
	return slug, ok
}
