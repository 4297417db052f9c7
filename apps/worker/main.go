// The worker binary drains the notification queue. It shares the schema
// with the api binary, which owns migrations.
package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/cloudmetrics"
	"github.com/smallbiznis/zapflow/internal/config"
	"github.com/smallbiznis/zapflow/internal/notification"
	"github.com/smallbiznis/zapflow/internal/observability"
	"github.com/smallbiznis/zapflow/internal/session"
	"github.com/smallbiznis/zapflow/internal/template"
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

		template.Module,
		session.Module,
		notification.Module,
		notification.WorkerModule,
		cloudmetrics.Module,
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
