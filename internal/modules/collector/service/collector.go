package service

import (
	"context"
	"time"

	"market_watch/internal/models"
	"market_watch/internal/modules/config"
	"market_watch/pkg/logger"
)

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// SeriesProvider — путь сбора: реконсиляция сама дописывает новые точки
// в хранилище, коллектору остаётся только её дёргать.
type SeriesProvider interface {
	GetSeries(ctx context.Context, instID, bar string, desiredCount int) ([]models.Candle, error)
}

// Collector гоняет сбор истории по матрице инструмент × интервал:
// один полный проход на старте, дальше ежеминутное освежение живого
// интервала. Отказ одной пары не трогает остальные.
type Collector struct {
	cfg *config.Config
	rec SeriesProvider
	n   ServiceNotifier
}

func NewCollector(cfg *config.Config, rec SeriesProvider, n ServiceNotifier) *Collector {
	return &Collector{cfg: cfg, rec: rec, n: n}
}

// Run — жизненный цикл коллектора; останавливается отменой ctx.
func (c *Collector) Run(ctx context.Context) {
	c.BulkCollect(ctx)

	ticker := time.NewTicker(c.cfg.RefreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refreshLive(ctx)
		}
	}
}

// BulkCollect — полный проход по матрице с паузой между запросами,
// чтобы не упереться в рейт-лимит биржи.
func (c *Collector) BulkCollect(ctx context.Context) {
	start := time.Now()
	var okCnt, failCnt int

	for _, inst := range c.cfg.Instruments {
		for _, bar := range c.cfg.Intervals {
			if ctx.Err() != nil {
				return
			}
			if _, err := c.rec.GetSeries(ctx, inst, bar, c.cfg.WarmupCount); err != nil {
				failCnt++
				logger.Error("[COLLECT] %s %s: %v", inst, bar, err)
			} else {
				okCnt++
			}
			c.pace(ctx)
		}
	}

	logger.Info("[COLLECT] bulk pass done: ok=%d fail=%d in %s", okCnt, failCnt, time.Since(start).Round(time.Millisecond))
	if c.n != nil {
		c.n.SendService(ctx, "[COLLECT] bulk pass done: ok=%d fail=%d", okCnt, failCnt)
	}
}

// refreshLive освежает только самый мелкий интервал каждого инструмента —
// держит хранилище тёплым между живыми тиками.
func (c *Collector) refreshLive(ctx context.Context) {
	bar := c.cfg.LiveInterval()
	for _, inst := range c.cfg.Instruments {
		if ctx.Err() != nil {
			return
		}
		if _, err := c.rec.GetSeries(ctx, inst, bar, c.cfg.HistoryPageLimit); err != nil {
			logger.Error("[COLLECT] refresh %s %s: %v", inst, bar, err)
		}
		c.pace(ctx)
	}
}

func (c *Collector) pace(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.cfg.CollectPace):
	}
}
