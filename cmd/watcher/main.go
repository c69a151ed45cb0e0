package main

import (
	"context"
	"log"

	"market_watch/internal/modules/alerts"
	"market_watch/internal/modules/collector"
	"market_watch/internal/modules/config"
	"market_watch/internal/modules/health"
	"market_watch/internal/modules/okxfeed"
	"market_watch/internal/modules/postgres"
	"market_watch/internal/modules/reconcile"
	"market_watch/internal/modules/stream"
	"market_watch/internal/notify"
	"market_watch/pkg/logger"
	"market_watch/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	logger.Init(zl)

	rootCtx, cancel := context.WithCancel(context.Background())

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return rootCtx
			},
			// Notifier: если TELEGRAM_* нет — пишем в лог
			func(cfg *config.Config) notify.Notifier {
				if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
					if tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID); err == nil {
						return tg
					}
				}
				return notify.NewStdout()
			},
		),
		config.Module(),
		postgres.Module(),
		health.Module(),
		okxfeed.Module(),
		reconcile.Module(),
		collector.Module(),
		stream.Module(),
		alerts.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			if cfg.Jaeger.Host != "" {
				_, closeTracer, err := tracing.InitTracer("market_watch", tracing.Config{
					Host: cfg.Jaeger.Host,
					Port: cfg.Jaeger.Port,
				})
				if err != nil {
					return err
				}
				lc.Append(fx.Hook{OnStop: func(context.Context) error {
					closeTracer()
					return nil
				}})
			}
			lc.Append(fx.Hook{OnStop: func(context.Context) error {
				cancel()
				return nil
			}})
			return nil
		}),
	)
	app.Run()
}
