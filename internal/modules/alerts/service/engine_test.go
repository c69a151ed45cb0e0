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
	"market_watch/internal/pricestate"
	"market_watch/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Init(zap.NewNop())
	os.Exit(m.Run())
}

type fakeRules struct {
	rules []models.AlertRule
	err   error
}

func (f *fakeRules) ListEnabled(context.Context) ([]models.AlertRule, error) {
	return f.rules, f.err
}

// fakeOrders повторяет contract хранилища: условный переход
// active -> executed честно атомарен.
type fakeOrders struct {
	mu     sync.Mutex
	orders map[int64]*models.StopOrder
}

func newFakeOrders(orders ...models.StopOrder) *fakeOrders {
	f := &fakeOrders{orders: make(map[int64]*models.StopOrder)}
	for i := range orders {
		o := orders[i]
		f.orders[o.ID] = &o
	}
	return f
}

func (f *fakeOrders) ListActive(context.Context) ([]models.StopOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StopOrder
	for _, o := range f.orders {
		if o.Status == models.StatusActive {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) MarkExecuted(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.Status != models.StatusActive {
		return false, nil
	}
	o.Status = models.StatusExecuted
	return true, nil
}

type fakeLog struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (f *fakeLog) Append(_ context.Context, ev models.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeLog) byKind(kind string) []models.AlertEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AlertEvent
	for _, ev := range f.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type fakeHub struct {
	mu   sync.Mutex
	sent map[int64][]string // userID -> kinds
}

func newFakeHub() *fakeHub { return &fakeHub{sent: make(map[int64][]string)} }

func (f *fakeHub) SendToUser(userID int64, kind string, _ any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[userID] = append(f.sent[userID], kind)
	return true
}

func newTestEngine(rules RuleStore, orders OrderStore, log AlertLog, hub UserNotifier) (*Engine, *pricestate.Store) {
	prices := pricestate.NewStore()
	cfg := &config.Config{AlertPeriod: 5 * time.Second}
	return NewEngine(cfg, prices, rules, orders, log, hub, nil), prices
}

func setPrice(prices *pricestate.Store, instID string, price float64) {
	prices.Apply(models.Ticker{InstID: instID, Price: price}, time.Now())
}

func TestThresholdNotCrossed(t *testing.T) {
	log := &fakeLog{}
	e, prices := newTestEngine(
		&fakeRules{rules: []models.AlertRule{{UserID: 1, Enabled: true, ThresholdPercent: 1}}},
		newFakeOrders(), log, newFakeHub(),
	)
	ctx := context.Background()

	setPrice(prices, "BTC-USDT", 100)
	e.evaluate(ctx) // первый тик только сэмплирует

	setPrice(prices, "BTC-USDT", 100.5) // 0.5% < 1%
	e.evaluate(ctx)

	assert.Empty(t, log.events)
}

func TestThresholdCrossed(t *testing.T) {
	log := &fakeLog{}
	hub := newFakeHub()
	e, prices := newTestEngine(
		&fakeRules{rules: []models.AlertRule{{UserID: 1, Enabled: true, ThresholdPercent: 1}}},
		newFakeOrders(), log, hub,
	)
	ctx := context.Background()

	setPrice(prices, "BTC-USDT", 100)
	e.evaluate(ctx)

	setPrice(prices, "BTC-USDT", 101.5) // 1.5% >= 1%
	e.evaluate(ctx)

	spikes := log.byKind(models.AlertPriceSpike)
	require.Len(t, spikes, 1)
	assert.Equal(t, int64(1), spikes[0].UserID)
	assert.InDelta(t, 1.5, spikes[0].ChangePercent, 1e-9)
	assert.Equal(t, []string{"alert"}, hub.sent[1])

	// на неизменной цене повторного алерта нет: сэмпл уже подвинут
	e.evaluate(ctx)
	assert.Len(t, log.byKind(models.AlertPriceSpike), 1)
}

func TestDropKind(t *testing.T) {
	log := &fakeLog{}
	e, prices := newTestEngine(
		&fakeRules{rules: []models.AlertRule{{UserID: 1, Enabled: true, ThresholdPercent: 1}}},
		newFakeOrders(), log, newFakeHub(),
	)
	ctx := context.Background()

	setPrice(prices, "BTC-USDT", 100)
	e.evaluate(ctx)
	setPrice(prices, "BTC-USDT", 95)
	e.evaluate(ctx)

	require.Len(t, log.byKind(models.AlertPriceDrop), 1)
}

func TestIndependentThresholds(t *testing.T) {
	log := &fakeLog{}
	e, prices := newTestEngine(
		&fakeRules{rules: []models.AlertRule{
			{UserID: 1, Enabled: true, ThresholdPercent: 1},
			{UserID: 2, Enabled: true, ThresholdPercent: 5},
		}},
		newFakeOrders(), log, newFakeHub(),
	)
	ctx := context.Background()

	setPrice(prices, "BTC-USDT", 100)
	e.evaluate(ctx)
	setPrice(prices, "BTC-USDT", 102) // 2%: юзеру 1 — да, юзеру 2 — нет
	e.evaluate(ctx)

	events := log.byKind(models.AlertPriceSpike)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].UserID)
}

func TestStopLossFiresExactlyOnce(t *testing.T) {
	orders := newFakeOrders(models.StopOrder{
		ID: 1, UserID: 7, InstID: "BTC-USDT",
		OrderType: models.OrderStopLoss, PositionType: models.PositionLong,
		TriggerPrice: 100, Status: models.StatusActive,
	})
	log := &fakeLog{}
	hub := newFakeHub()
	e, prices := newTestEngine(&fakeRules{}, orders, log, hub)
	ctx := context.Background()

	for _, price := range []float64{105, 101, 99} {
		setPrice(prices, "BTC-USDT", price)
		e.evaluate(ctx)
	}

	execs := log.byKind(models.AlertOrderExecuted)
	require.Len(t, execs, 1)
	assert.Equal(t, 99.0, execs[0].CurrentPrice)
	assert.Equal(t, models.StatusExecuted, orders.orders[1].Status)
	assert.Equal(t, []string{"order_executed"}, hub.sent[7])

	// дальнейшие тики статус не трогают и событий не плодят
	for _, price := range []float64{98, 97} {
		setPrice(prices, "BTC-USDT", price)
		e.evaluate(ctx)
	}
	assert.Len(t, log.byKind(models.AlertOrderExecuted), 1)
	assert.Equal(t, models.StatusExecuted, orders.orders[1].Status)
}

func TestTriggerMatrix(t *testing.T) {
	cases := []struct {
		orderType, posType string
		price              float64
		want               bool
	}{
		{models.OrderStopLoss, models.PositionLong, 99, true},
		{models.OrderStopLoss, models.PositionLong, 101, false},
		{models.OrderStopLoss, models.PositionShort, 101, true},
		{models.OrderStopLoss, models.PositionShort, 99, false},
		{models.OrderTakeProfit, models.PositionLong, 101, true},
		{models.OrderTakeProfit, models.PositionLong, 99, false},
		{models.OrderTakeProfit, models.PositionShort, 99, true},
		{models.OrderTakeProfit, models.PositionShort, 101, false},
	}
	for _, tc := range cases {
		o := models.StopOrder{OrderType: tc.orderType, PositionType: tc.posType, TriggerPrice: 100}
		assert.Equalf(t, tc.want, o.Triggered(tc.price), "%s/%s at %.0f", tc.orderType, tc.posType, tc.price)
	}
}

func TestConcurrentEvaluatorsExecuteOnce(t *testing.T) {
	orders := newFakeOrders(models.StopOrder{
		ID: 1, UserID: 7, InstID: "BTC-USDT",
		OrderType: models.OrderStopLoss, PositionType: models.PositionLong,
		TriggerPrice: 100, Status: models.StatusActive,
	})
	log := &fakeLog{}
	hub := newFakeHub()

	// два независимых прохода оценки гоняются за одним ордером
	e1, prices := newTestEngine(&fakeRules{}, orders, log, hub)
	cfg := &config.Config{AlertPeriod: 5 * time.Second}
	e2 := NewEngine(cfg, prices, &fakeRules{}, orders, log, hub, nil)

	setPrice(prices, "BTC-USDT", 99)

	var wg sync.WaitGroup
	for _, e := range []*Engine{e1, e2} {
		wg.Add(1)
		go func(e *Engine) {
			defer wg.Done()
			e.evaluate(context.Background())
		}(e)
	}
	wg.Wait()

	assert.Len(t, log.byKind(models.AlertOrderExecuted), 1)
	assert.Equal(t, models.StatusExecuted, orders.orders[1].Status)
}

func TestRuleLoadFailureSkipsTick(t *testing.T) {
	rules := &fakeRules{err: errors.New("db down")}
	log := &fakeLog{}
	e, prices := newTestEngine(rules, newFakeOrders(), log, newFakeHub())
	ctx := context.Background()

	setPrice(prices, "BTC-USDT", 100)
	e.evaluate(ctx) // тик пропущен, сэмпл не сдвинут

	rules.err = nil
	rules.rules = []models.AlertRule{{UserID: 1, Enabled: true, ThresholdPercent: 1}}
	setPrice(prices, "BTC-USDT", 102)
	e.evaluate(ctx) // первый успешный тик только сэмплирует

	assert.Empty(t, log.events)

	setPrice(prices, "BTC-USDT", 105) // ~2.9% от 102
	e.evaluate(ctx)
	assert.Len(t, log.byKind(models.AlertPriceSpike), 1)
}
