package config

import "go.uber.org/fx"

// Module provides the static and hot-reloadable configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRuntimeConfigHolder),
)
