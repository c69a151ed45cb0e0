package stream

import (
	"context"
	"net/http"

	"market_watch/internal/models"
	"market_watch/internal/modules/stream/service"

	"go.uber.org/fx"
)

// Module поднимает BroadcastHub: /ws на общем mux, фан-аут событий фида,
// периодический статус в мониторинговый сайд-канал.
func Module() fx.Option {
	return fx.Module("stream",
		fx.Provide(
			service.NewHub,
			service.NewStatusReporter,
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			hub *service.Hub,
			rep *service.StatusReporter,
			mux *http.ServeMux,
			events chan models.StreamEvent,
			ctx context.Context,
		) {
			mux.HandleFunc("/ws", hub.ServeWs)

			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						for {
							select {
							case <-ctx.Done():
								return
							case ev := <-events:
								hub.Broadcast(ev)
							}
						}
					}()
					go rep.Run(ctx)
					return nil
				},
			})
		}),
	)
}
