package collector

import (
	"context"

	"market_watch/internal/modules/collector/service"
	"market_watch/internal/modules/config"
	recsvc "market_watch/internal/modules/reconcile/service"
	"market_watch/internal/notify"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("collector",
		fx.Provide(
			func(cfg *config.Config, rec *recsvc.Reconciler, n notify.Notifier) *service.Collector {
				return service.NewCollector(cfg, rec, n)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Collector, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go c.Run(ctx)
					return nil
				},
			})
		}),
	)
}
