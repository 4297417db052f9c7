// The zapflow binary is the all-in-one deployment: HTTP API, webhook
// ingestion, delivery worker and maintenance scheduler in one process.
package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/zapflow/internal/apikey"
	"github.com/smallbiznis/zapflow/internal/appointment"
	"github.com/smallbiznis/zapflow/internal/billing"
	"github.com/smallbiznis/zapflow/internal/catalog"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/cloudmetrics"
	"github.com/smallbiznis/zapflow/internal/config"
	"github.com/smallbiznis/zapflow/internal/conversation"
	"github.com/smallbiznis/zapflow/internal/inbound"
	"github.com/smallbiznis/zapflow/internal/migration"
	"github.com/smallbiznis/zapflow/internal/notification"
	"github.com/smallbiznis/zapflow/internal/observability"
	"github.com/smallbiznis/zapflow/internal/providers/pdf"
	"github.com/smallbiznis/zapflow/internal/ratelimit"
	"github.com/smallbiznis/zapflow/internal/scheduler"
	"github.com/smallbiznis/zapflow/internal/server"
	"github.com/smallbiznis/zapflow/internal/session"
	"github.com/smallbiznis/zapflow/internal/template"
	"github.com/smallbiznis/zapflow/internal/tenant"
	"github.com/smallbiznis/zapflow/pkg/db"
	"github.com/smallbiznis/zapflow/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		tenant.Module,
		catalog.Module,
		billing.Module,
		conversation.Module,
		template.Module,
		session.Module,
		notification.Module,
		notification.WorkerModule,
		appointment.Module,
		apikey.Module,
		inbound.Module,
		ratelimit.Module,
		cloudmetrics.Module,
		pdf.Module,
		scheduler.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
