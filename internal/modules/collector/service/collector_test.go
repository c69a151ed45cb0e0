package service

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"market_watch/internal/models"
	"market_watch/internal/modules/config"
	"market_watch/pkg/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Init(zap.NewNop())
	os.Exit(m.Run())
}

type fakeProvider struct {
	mu    sync.Mutex
	calls []string // "instId/bar"
	fail  map[string]error
}

func (f *fakeProvider) GetSeries(_ context.Context, instID, bar string, _ int) ([]models.Candle, error) {
	key := instID + "/" + bar
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()
	if err, ok := f.fail[key]; ok {
		return nil, err
	}
	return nil, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{
		CollectPace:  time.Millisecond,
		RefreshEvery: time.Minute,
		WarmupCount:  10,
	}
	cfg.Instruments = []string{"BTC-USDT", "ETH-USDT"}
	cfg.Intervals = []string{"1m", "1H"}
	return cfg
}

func TestBulkCollectCoversMatrix(t *testing.T) {
	p := &fakeProvider{}
	c := NewCollector(testConfig(), p, nil)

	c.BulkCollect(context.Background())

	assert.ElementsMatch(t, []string{
		"BTC-USDT/1m", "BTC-USDT/1H",
		"ETH-USDT/1m", "ETH-USDT/1H",
	}, p.calls)
}

func TestBulkCollectIsolatesFailures(t *testing.T) {
	p := &fakeProvider{fail: map[string]error{
		"BTC-USDT/1m": errors.New("rate limited"),
	}}
	c := NewCollector(testConfig(), p, nil)

	c.BulkCollect(context.Background())

	// отказ одной пары не останавливает остальные
	assert.Len(t, p.calls, 4)
}

func TestRefreshLiveOnlyFinestInterval(t *testing.T) {
	p := &fakeProvider{}
	c := NewCollector(testConfig(), p, nil)

	c.refreshLive(context.Background())

	assert.ElementsMatch(t, []string{"BTC-USDT/1m", "ETH-USDT/1m"}, p.calls)
}

func TestBulkCollectStopsOnCancel(t *testing.T) {
	p := &fakeProvider{}
	c := NewCollector(testConfig(), p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.BulkCollect(ctx)

	assert.Empty(t, p.calls)
}
