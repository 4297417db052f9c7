package template

import (
	"github.com/smallbiznis/zapflow/internal/template/service"
	"go.uber.org/fx"
)

var Module = fx.Module("template.service",
	fx.Provide(service.NewService),
)
