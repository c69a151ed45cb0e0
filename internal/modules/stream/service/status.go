package service

import (
	"context"
	"time"

	healthsvc "market_watch/internal/modules/health/service"
	"market_watch/internal/pricestate"
)

// Status — снапшот для мониторинговых клиентов.
type Status struct {
	FeedConnected bool  `json:"feedConnected"`
	UptimeSec     int64 `json:"uptimeSec"`
	LastTickUnix  int64 `json:"lastTickUnix"`
	Clients       int   `json:"clients"`
	Monitoring    int   `json:"monitoring"`
	Instruments   int   `json:"instruments"`
}

// StatusReporter периодически толкает статус в мониторинговый сайд-канал
// и отдаёт его же по request_metrics.
type StatusReporter struct {
	hub    *Hub
	state  *healthsvc.State
	prices *pricestate.Store
	every  time.Duration
}

func NewStatusReporter(hub *Hub, state *healthsvc.State, prices *pricestate.Store) *StatusReporter {
	r := &StatusReporter{
		hub:    hub,
		state:  state,
		prices: prices,
		every:  30 * time.Second,
	}
	hub.SetStatusFunc(func() any { return r.Snapshot() })
	return r
}

func (r *StatusReporter) Snapshot() Status {
	var lastTick int64
	if t := r.state.LastTick(); !t.IsZero() {
		lastTick = t.Unix()
	}
	return Status{
		FeedConnected: r.state.FeedConnected(),
		UptimeSec:     int64(r.state.Uptime().Seconds()),
		LastTickUnix:  lastTick,
		Clients:       r.hub.Len(),
		Monitoring:    r.hub.CountByRole(RoleMonitoring),
		Instruments:   len(r.prices.All()),
	}
}

func (r *StatusReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.hub.BroadcastMonitoring(r.Snapshot())
		}
	}
}
