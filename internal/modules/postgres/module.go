package postgres

import (
	"context"
	"fmt"

	"market_watch/internal/modules/config"
	storagepg "market_watch/internal/storage/pg"
	"market_watch/pkg/db"

	"go.uber.org/fx"
)

// Module поднимает пул к мастеру, tx-менеджер и репозитории над ним.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			storagepg.NewCandles,
			storagepg.NewOrders,
			storagepg.NewRules,
			storagepg.NewAlerts,
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				poolMaster, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create poolMaster: %w", err)
				}

				err = poolMaster.Ping(ctx)
				if err != nil {
					return nil, err
				}

				return db.NewPgTxManager(poolMaster), nil
			},
		),
	)
}
