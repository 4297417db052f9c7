package conversation

import (
	"github.com/smallbiznis/zapflow/internal/conversation/flow"
	"github.com/smallbiznis/zapflow/internal/conversation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversation.service",
	fx.Provide(service.NewService),
	fx.Provide(flow.NewEngine),
)
