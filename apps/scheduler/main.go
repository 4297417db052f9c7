// The scheduler binary runs retention purges and appointment reminder
// production. With redis configured it elects a single leader per pass.
package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/zapflow/internal/appointment"
	"github.com/smallbiznis/zapflow/internal/clock"
	"github.com/smallbiznis/zapflow/internal/config"
	"github.com/smallbiznis/zapflow/internal/notification"
	"github.com/smallbiznis/zapflow/internal/observability"
	"github.com/smallbiznis/zapflow/internal/ratelimit"
	"github.com/smallbiznis/zapflow/internal/scheduler"
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

		notification.Module,
		appointment.Module,
		ratelimit.Module,
		scheduler.Module,
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
