package alerts

import (
	"context"

	"market_watch/internal/modules/alerts/service"
	"market_watch/internal/modules/config"
	streamsvc "market_watch/internal/modules/stream/service"
	"market_watch/internal/notify"
	"market_watch/internal/pricestate"
	storagepg "market_watch/internal/storage/pg"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("alerts",
		fx.Provide(
			func(
				cfg *config.Config,
				prices *pricestate.Store,
				rules *storagepg.Rules,
				orders *storagepg.Orders,
				log *storagepg.Alerts,
				hub *streamsvc.Hub,
				n notify.Notifier,
			) *service.Engine {
				return service.NewEngine(cfg, prices, rules, orders, log, hub, n)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, e *service.Engine, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go e.Run(ctx)
					return nil
				},
			})
		}),
	)
}
