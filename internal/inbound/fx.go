package inbound

import "go.uber.org/fx"

var Module = fx.Module("inbound.orchestrator",
	fx.Provide(NewOrchestrator),
)
