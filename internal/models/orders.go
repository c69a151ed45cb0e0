package models

import "time"

// Типы и статусы условных ордеров.
const (
	OrderStopLoss   = "stop_loss"
	OrderTakeProfit = "take_profit"

	PositionLong  = "long"
	PositionShort = "short"

	StatusActive    = "active"
	StatusExecuted  = "executed"
	StatusCancelled = "cancelled"
)

// StopOrder — условный ордер пользователя. Создаётся внешним API,
// здесь только читается и переводится active -> executed (терминально).
type StopOrder struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"userId"`
	InstID       string    `json:"instId"`
	OrderType    string    `json:"orderType"`    // stop_loss | take_profit
	PositionType string    `json:"positionType"` // long | short
	TriggerPrice float64   `json:"triggerPrice"`
	Status       string    `json:"status"` // active | executed | cancelled
	CreatedAt    time.Time `json:"createdAt"`
}

// Triggered — матрица срабатывания по текущей цене.
// SL+long: цена упала до/ниже триггера; SL+short: выросла до/выше. TP зеркально.
func (o StopOrder) Triggered(price float64) bool {
	switch {
	case o.OrderType == OrderStopLoss && o.PositionType == PositionLong:
		return price <= o.TriggerPrice
	case o.OrderType == OrderStopLoss && o.PositionType == PositionShort:
		return price >= o.TriggerPrice
	case o.OrderType == OrderTakeProfit && o.PositionType == PositionLong:
		return price >= o.TriggerPrice
	case o.OrderType == OrderTakeProfit && o.PositionType == PositionShort:
		return price <= o.TriggerPrice
	}
	return false
}

// AlertRule — правило ценового алерта пользователя.
type AlertRule struct {
	UserID           int64   `json:"userId"`
	Enabled          bool    `json:"enabled"`
	ThresholdPercent float64 `json:"thresholdPercent"`
}

// Виды алертов.
const (
	AlertPriceSpike    = "price_spike"
	AlertPriceDrop     = "price_drop"
	AlertOrderExecuted = "order_executed"
)

// AlertEvent — неизменяемая запись о сработавшем алерте/исполнении, append-only.
type AlertEvent struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	InstID        string    `json:"instId"`
	Kind          string    `json:"kind"`
	PreviousPrice float64   `json:"previousPrice"`
	CurrentPrice  float64   `json:"currentPrice"`
	ChangePercent float64   `json:"changePercent"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"createdAt"`
}
