package reconcile

import (
	"market_watch/internal/modules/config"
	okxsvc "market_watch/internal/modules/okxfeed/service"
	"market_watch/internal/modules/reconcile/service"
	storagepg "market_watch/internal/storage/pg"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("reconcile",
		fx.Provide(
			func(cfg *config.Config, store *storagepg.Candles, feed *okxsvc.Connector) *service.Reconciler {
				return service.NewReconciler(cfg, store, feed)
			},
		),
	)
}
