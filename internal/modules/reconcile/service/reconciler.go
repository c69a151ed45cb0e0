package service

import (
	"context"
	"sort"

	"market_watch/internal/models"
	"market_watch/internal/modules/config"
	"market_watch/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

// CandleStore — персистентная история свечей.
type CandleStore interface {
	ListAscending(ctx context.Context, instID, bar string) ([]models.Candle, error)
	UpsertBatch(ctx context.Context, candles []models.Candle) error
}

// HistoryFetcher — одна страница REST-истории upstream, по возрастанию
// времени, не длиннее limit; after — курсор назад (unix ms, 0 = хвост).
type HistoryFetcher interface {
	HistoryCandles(ctx context.Context, instID, bar string, limit int, after int64) ([]models.Candle, error)
}

// Reconciler сводит персистентную историю со свежей REST-историей биржи
// в один возрастающий ряд без дублей по ключу.
type Reconciler struct {
	store CandleStore
	fetch HistoryFetcher

	pageLimit int
	maxPages  int
	maxPoints int
}

func NewReconciler(cfg *config.Config, store CandleStore, fetch HistoryFetcher) *Reconciler {
	return &Reconciler{
		store:     store,
		fetch:     fetch,
		pageLimit: cfg.HistoryPageLimit,
		maxPages:  cfg.HistoryMaxPages,
		maxPoints: cfg.MaxSeriesPoints,
	}
}

// GetSeries возвращает возрастающий ряд свечей пары (instID, bar),
// не длиннее maxPoints (старые отбрасываются первыми).
//
// Недоступный upstream деградирует до store-only данных: доступность
// важнее полноты. Ошибка самого хранилища отдаётся наверх.
func (r *Reconciler) GetSeries(ctx context.Context, instID, bar string, desiredCount int) ([]models.Candle, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "reconcile.GetSeries")
	defer span.Finish()
	span.SetTag("instId", instID)
	span.SetTag("bar", bar)

	persisted, err := r.store.ListAscending(ctx, instID, bar)
	if err != nil {
		return nil, err
	}

	fetched, err := r.fetchHistory(ctx, instID, bar, desiredCount)
	if err != nil {
		logger.Warn("[RECONCILE] upstream fetch %s %s failed, degrading to store-only: %v", instID, bar, err)
		return truncateOldest(persisted, r.maxPoints), nil
	}

	older, newer := partition(fetched, persisted)

	// обе партиции — в хранилище: следующий вызов обойдётся меньшей сетью
	if err := r.store.UpsertBatch(ctx, older); err != nil {
		logger.Error("[RECONCILE] persist older %s %s: %v", instID, bar, err)
	}
	if err := r.store.UpsertBatch(ctx, newer); err != nil {
		logger.Error("[RECONCILE] persist newer %s %s: %v", instID, bar, err)
	}

	merged := mergeAscending(older, persisted, newer)
	return truncateOldest(merged, r.maxPoints), nil
}

// fetchHistory листает REST назад во времени (after-курсор от самой старой
// полученной свечи), пока не наберётся desired, либо страница окажется
// короткой (история исчерпана), либо упрёмся в потолок страниц.
func (r *Reconciler) fetchHistory(ctx context.Context, instID, bar string, desired int) ([]models.Candle, error) {
	var (
		fetched []models.Candle
		after   int64
	)

	for page := 0; page < r.maxPages; page++ {
		batch, err := r.fetch.HistoryCandles(ctx, instID, bar, r.pageLimit, after)
		if err != nil {
			if len(fetched) > 0 {
				// часть уже есть — работаем с ней
				logger.Warn("[RECONCILE] page %d of %s %s failed: %v", page, instID, bar, err)
				break
			}
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		fetched = append(batch, fetched...)
		after = batch[0].OpenTime.UnixMilli()

		if len(fetched) >= desired || len(batch) < r.pageLimit {
			break
		}
	}

	return fetched, nil
}

// partition делит свежие свечи на строго-старше и строго-новее
// персистентного диапазона; попавшие внутрь диапазона отбрасываются —
// хранилище для них уже авторитетно.
func partition(fetched, persisted []models.Candle) (older, newer []models.Candle) {
	if len(persisted) == 0 {
		return nil, fetched
	}

	earliest := persisted[0].OpenTime
	latest := persisted[len(persisted)-1].OpenTime

	for _, c := range fetched {
		switch {
		case c.OpenTime.Before(earliest):
			older = append(older, c)
		case c.OpenTime.After(latest):
			newer = append(newer, c)
		}
	}
	return older, newer
}

// mergeAscending склеивает части в один возрастающий ряд и убирает
// дубли по openTime (последняя запись с ключом побеждает).
func mergeAscending(parts ...[]models.Candle) []models.Candle {
	byKey := make(map[int64]models.Candle)
	for _, part := range parts {
		for _, c := range part {
			byKey[c.Key()] = c
		}
	}

	out := make([]models.Candle, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}

// truncateOldest ограничивает ответ, выбрасывая самые старые точки.
func truncateOldest(series []models.Candle, max int) []models.Candle {
	if max > 0 && len(series) > max {
		return series[len(series)-max:]
	}
	return series
}
