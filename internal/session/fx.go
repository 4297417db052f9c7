package session

import "go.uber.org/fx"

var Module = fx.Module("session.gateway",
	fx.Provide(NewBridgeClient),
)
