package tenant

import (
	"github.com/smallbiznis/zapflow/internal/cache"
	"github.com/smallbiznis/zapflow/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant.service",
	fx.Provide(cache.NewInboundResolverCache),
	fx.Provide(service.NewService),
)
