package service

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"market_watch/internal/models"
	"market_watch/internal/modules/config"
	"market_watch/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Init(zap.NewNop())
	os.Exit(m.Run())
}

var t0 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func mkCandle(minute int) models.Candle {
	return models.Candle{
		InstID:   "BTC-USDT",
		Bar:      "1m",
		OpenTime: t0.Add(time.Duration(minute) * time.Minute),
		Open:     100, High: 110, Low: 90, Close: 105,
		Volume: float64(minute),
	}
}

func mkRange(from, to int) []models.Candle {
	var out []models.Candle
	for i := from; i <= to; i++ {
		out = append(out, mkCandle(i))
	}
	return out
}

// fakeStore — упрощённое хранилище с upsert-семантикой по ключу.
type fakeStore struct {
	data    map[int64]models.Candle
	listErr error
}

func newFakeStore(seed []models.Candle) *fakeStore {
	s := &fakeStore{data: make(map[int64]models.Candle)}
	for _, c := range seed {
		s.data[c.Key()] = c
	}
	return s
}

func (s *fakeStore) ListAscending(_ context.Context, _, _ string) ([]models.Candle, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Candle, 0, len(s.data))
	for _, c := range s.data {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out, nil
}

func (s *fakeStore) UpsertBatch(_ context.Context, candles []models.Candle) error {
	for _, c := range candles {
		s.data[c.Key()] = c
	}
	return nil
}

// fakeFetcher отдаёт страницы истории назад во времени, как OKX REST.
type fakeFetcher struct {
	history []models.Candle // ascending
	err     error
	calls   int
}

func (f *fakeFetcher) HistoryCandles(_ context.Context, _, _ string, limit int, after int64) ([]models.Candle, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	var eligible []models.Candle
	for _, c := range f.history {
		if after == 0 || c.OpenTime.UnixMilli() < after {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) > limit {
		eligible = eligible[len(eligible)-limit:]
	}
	return eligible, nil
}

func newReconciler(store CandleStore, fetch HistoryFetcher, maxPoints int) *Reconciler {
	cfg := &config.Config{
		HistoryPageLimit: 10,
		HistoryMaxPages:  5,
		MaxSeriesPoints:  maxPoints,
	}
	return NewReconciler(cfg, store, fetch)
}

func TestGetSeriesMergesWithoutDuplicates(t *testing.T) {
	// в базе середина [10..20], upstream знает [5..25]
	store := newFakeStore(mkRange(10, 20))
	fetch := &fakeFetcher{history: mkRange(5, 25)}
	r := newReconciler(store, fetch, 5000)

	series, err := r.GetSeries(context.Background(), "BTC-USDT", "1m", 100)
	require.NoError(t, err)

	require.Len(t, series, 21) // 5..25
	seen := map[int64]bool{}
	for i, c := range series {
		assert.False(t, seen[c.Key()], "duplicate key at %d", i)
		seen[c.Key()] = true
		if i > 0 {
			assert.True(t, series[i-1].OpenTime.Before(c.OpenTime), "not ascending at %d", i)
		}
	}

	// обе партиции доехали до хранилища
	assert.Len(t, store.data, 21)
}

func TestGetSeriesEmptyStore(t *testing.T) {
	store := newFakeStore(nil)
	fetch := &fakeFetcher{history: mkRange(0, 7)}
	r := newReconciler(store, fetch, 5000)

	series, err := r.GetSeries(context.Background(), "BTC-USDT", "1m", 100)
	require.NoError(t, err)
	assert.Len(t, series, 8)
	assert.Len(t, store.data, 8)
}

func TestGetSeriesDegradesToStoreOnly(t *testing.T) {
	store := newFakeStore(mkRange(0, 4))
	fetch := &fakeFetcher{err: errors.New("upstream down")}
	r := newReconciler(store, fetch, 5000)

	series, err := r.GetSeries(context.Background(), "BTC-USDT", "1m", 100)
	require.NoError(t, err)
	assert.Len(t, series, 5)
}

func TestGetSeriesStoreErrorSurfaces(t *testing.T) {
	store := newFakeStore(nil)
	store.listErr = errors.New("db down")
	fetch := &fakeFetcher{history: mkRange(0, 7)}
	r := newReconciler(store, fetch, 5000)

	_, err := r.GetSeries(context.Background(), "BTC-USDT", "1m", 100)
	assert.Error(t, err)
}

func TestGetSeriesTruncatesOldest(t *testing.T) {
	store := newFakeStore(nil)
	fetch := &fakeFetcher{history: mkRange(0, 30)}
	r := newReconciler(store, fetch, 10)

	series, err := r.GetSeries(context.Background(), "BTC-USDT", "1m", 100)
	require.NoError(t, err)
	require.Len(t, series, 10)
	// выброшены самые старые: остались минуты 21..30
	assert.Equal(t, mkCandle(21).OpenTime, series[0].OpenTime)
	assert.Equal(t, mkCandle(30).OpenTime, series[9].OpenTime)
}

func TestFetchHistoryStopsOnShortPage(t *testing.T) {
	store := newFakeStore(nil)
	fetch := &fakeFetcher{history: mkRange(0, 4)} // меньше одной страницы
	r := newReconciler(store, fetch, 5000)

	series, err := r.GetSeries(context.Background(), "BTC-USDT", "1m", 100)
	require.NoError(t, err)
	assert.Len(t, series, 5)
	assert.Equal(t, 1, fetch.calls)
}

func TestFetchHistoryPagesBackward(t *testing.T) {
	store := newFakeStore(nil)
	fetch := &fakeFetcher{history: mkRange(0, 34)} // 35 точек, страницы по 10
	r := newReconciler(store, fetch, 5000)

	series, err := r.GetSeries(context.Background(), "BTC-USDT", "1m", 25)
	require.NoError(t, err)
	// 3 полные страницы покрывают desired=25
	assert.Equal(t, 3, fetch.calls)
	assert.Len(t, series, 30)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].OpenTime.Before(series[i].OpenTime))
	}
}

func TestUpsertIdempotent(t *testing.T) {
	store := newFakeStore(nil)
	c1 := mkCandle(1)
	c2 := c1
	c2.Close = 999

	require.NoError(t, store.UpsertBatch(context.Background(), []models.Candle{c1, c2}))
	require.Len(t, store.data, 1)
	assert.Equal(t, 999.0, store.data[c1.Key()].Close) // последняя запись победила
}
