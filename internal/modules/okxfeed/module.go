package okxfeed

import (
	"context"

	"market_watch/internal/models"
	"market_watch/internal/modules/okxfeed/service"
	"market_watch/internal/notify"
	"market_watch/internal/pricestate"
	storagepg "market_watch/internal/storage/pg"

	"go.uber.org/fx"
)

// Module поднимает фид-коннектор OKX и общий буфер событий.
func Module() fx.Option {
	return fx.Module("okxfeed",
		fx.Provide(
			pricestate.NewStore,
			func() chan models.StreamEvent {
				// общий буфер нормализованных событий
				return make(chan models.StreamEvent, 1024)
			},
			func(n notify.Notifier) service.ServiceNotifier { return n },
			func(c *storagepg.Candles) service.CandleWriter { return c },
			service.NewConnector,
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Connector, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					c.Start(ctx)
					return nil
				},
				OnStop: func(context.Context) error {
					c.Close()
					return nil
				},
			})
		}),
	)
}
