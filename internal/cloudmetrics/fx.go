package cloudmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/zapflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const pushInterval = 30 * time.Minute

var Module = fx.Module("cloud.metrics",
	fx.Provide(func() *prometheus.Registry {
		return prometheus.NewRegistry()
	}),
	fx.Provide(NewPusher),
	fx.Provide(func(cfg config.Config, pusher Pusher, registry *prometheus.Registry, logger *zap.Logger) *CloudMetrics {
		if pusher == nil {
			return nil
		}
		return New(registry, pusher, cfg.InstanceID, cfg.AppVersion, logger)
	}),
	fx.Invoke(runPushLoop),
)

func runPushLoop(lc fx.Lifecycle, c *CloudMetrics, logger *zap.Logger) {
	if c == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting cloud metrics push loop")
			go func() {
				ticker := time.NewTicker(pushInterval)
				defer ticker.Stop()

				if err := c.Push(ctx); err != nil {
					logger.Warn("initial cloud metrics push failed", zap.Error(err))
				}

				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if err := c.Push(ctx); err != nil {
							logger.Warn("cloud metrics push failed", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			// Final push so short-lived instances still report.
			pushCtx, pushCancel := context.WithTimeout(stopCtx, defaultPushTimeout)
			defer pushCancel()
			if err := c.Push(pushCtx); err != nil {
				logger.Warn("final cloud metrics push failed", zap.Error(err))
			}
			return nil
		},
	})
}
