package notification

import (
	"context"

	"github.com/smallbiznis/zapflow/internal/notification/queue"
	"github.com/smallbiznis/zapflow/internal/notification/worker"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the producer-facing queue.
var Module = fx.Module("notification.queue",
	fx.Provide(queue.NewQueue),
)

// WorkerModule additionally runs the delivery worker pool. Only the worker
// app (and the all-in-one binary) mounts it.
var WorkerModule = fx.Module("notification.worker",
	fx.Provide(worker.NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, w *worker.Worker, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting notification delivery worker")
			go func() {
				defer close(done)
				w.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
