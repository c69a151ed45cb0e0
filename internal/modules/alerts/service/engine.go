package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"market_watch/internal/models"
	"market_watch/internal/modules/config"
	"market_watch/internal/pricestate"
	"market_watch/pkg/logger"

	"github.com/opentracing/opentracing-go"
)

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// RuleStore — включённые правила ценовых алертов.
type RuleStore interface {
	ListEnabled(ctx context.Context) ([]models.AlertRule, error)
}

// OrderStore — активные условные ордера и CAS-переход в executed.
type OrderStore interface {
	ListActive(ctx context.Context) ([]models.StopOrder, error)
	MarkExecuted(ctx context.Context, id int64) (won bool, err error)
}

// AlertLog — append-only журнал алертов.
type AlertLog interface {
	Append(ctx context.Context, ev models.AlertEvent) error
}

// UserNotifier — доставка события в живые соединения пользователя.
type UserNotifier interface {
	SendToUser(userID int64, kind string, payload any) bool
}

// Engine — периметр алертов: на каждом тике сравнивает цены с правилами
// пользователей и активными ордерами. Повторное срабатывание на той же
// цене гасится самим ресемплингом: lastSample двигается раз за тик.
type Engine struct {
	cfg    *config.Config
	prices *pricestate.Store
	rules  RuleStore
	orders OrderStore
	log    AlertLog
	hub    UserNotifier
	n      ServiceNotifier

	// только из собственного тика, конкурентного доступа нет
	lastSample map[string]float64
}

func NewEngine(
	cfg *config.Config,
	prices *pricestate.Store,
	rules RuleStore,
	orders OrderStore,
	log AlertLog,
	hub UserNotifier,
	n ServiceNotifier,
) *Engine {
	return &Engine{
		cfg:        cfg,
		prices:     prices,
		rules:      rules,
		orders:     orders,
		log:        log,
		hub:        hub,
		n:          n,
		lastSample: make(map[string]float64),
	}
}

// Run гоняет цикл оценки до отмены ctx. Отказ одного тика цикл не валит.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.AlertPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.evaluate(ctx)
		}
	}
}

func (e *Engine) evaluate(ctx context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "alerts.evaluate")
	defer span.Finish()

	snaps := e.prices.All()

	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		// тик пропускаем целиком: lastSample не двигаем, прошлые
		// исполнения уже в базе
		logger.Error("[ALERTS] load rules: %v", err)
		return
	}

	e.checkPriceMoves(ctx, snaps, rules)
	e.checkStopOrders(ctx, snaps)

	// сэмпл двигается один раз за тик, после всех сравнений
	for instID, snap := range snaps {
		e.lastSample[instID] = snap.Price
	}
}

// checkPriceMoves сравнивает ход цены с порогами пользователей.
// Пороги независимы: одно движение может разослать алерты нескольким.
func (e *Engine) checkPriceMoves(ctx context.Context, snaps map[string]pricestate.Snapshot, rules []models.AlertRule) {
	for instID, snap := range snaps {
		last, ok := e.lastSample[instID]
		if !ok || last <= 0 {
			continue
		}

		change := (snap.Price - last) / last * 100
		absChange := math.Abs(change)
		if absChange == 0 {
			continue
		}

		kind := models.AlertPriceSpike
		if change < 0 {
			kind = models.AlertPriceDrop
		}

		for _, rule := range rules {
			if rule.ThresholdPercent <= 0 || rule.ThresholdPercent > absChange {
				continue
			}

			ev := models.AlertEvent{
				UserID:        rule.UserID,
				InstID:        instID,
				Kind:          kind,
				PreviousPrice: last,
				CurrentPrice:  snap.Price,
				ChangePercent: change,
				Message:       fmt.Sprintf("%s: %.2f%% за период (%.6f -> %.6f)", instID, change, last, snap.Price),
				CreatedAt:     time.Now(),
			}
			if err := e.log.Append(ctx, ev); err != nil {
				logger.Error("[ALERTS] append alert user=%d: %v", rule.UserID, err)
				continue
			}
			e.hub.SendToUser(rule.UserID, "alert", ev)
		}
	}
}

// checkStopOrders исполняет сработавшие ордера. Переход в executed —
// условный UPDATE в базе: при гонке двух тиков событие эмитит только
// победитель, проигравший молча уступает.
func (e *Engine) checkStopOrders(ctx context.Context, snaps map[string]pricestate.Snapshot) {
	orders, err := e.orders.ListActive(ctx)
	if err != nil {
		logger.Error("[ALERTS] load orders: %v", err)
		return
	}

	for _, ord := range orders {
		snap, ok := snaps[ord.InstID]
		if !ok || snap.Price <= 0 {
			continue
		}
		if !ord.Triggered(snap.Price) {
			continue
		}

		won, err := e.orders.MarkExecuted(ctx, ord.ID)
		if err != nil {
			logger.Error("[ALERTS] execute order %d: %v", ord.ID, err)
			continue
		}
		if !won {
			// кто-то успел раньше — это не ошибка
			continue
		}

		ev := models.AlertEvent{
			UserID:        ord.UserID,
			InstID:        ord.InstID,
			Kind:          models.AlertOrderExecuted,
			PreviousPrice: ord.TriggerPrice,
			CurrentPrice:  snap.Price,
			Message: fmt.Sprintf("%s %s/%s исполнен: trigger=%.6f price=%.6f",
				ord.InstID, ord.OrderType, ord.PositionType, ord.TriggerPrice, snap.Price),
			CreatedAt: time.Now(),
		}
		if err := e.log.Append(ctx, ev); err != nil {
			logger.Error("[ALERTS] append execution order=%d: %v", ord.ID, err)
		}
		e.hub.SendToUser(ord.UserID, "order_executed", ev)
		if e.n != nil {
			e.n.SendService(ctx, "[ALERTS] order %d executed: %s", ord.ID, ev.Message)
		}
		logger.Info("[ALERTS] order %d executed at %.6f", ord.ID, snap.Price)
	}
}
