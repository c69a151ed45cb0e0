package models

import "time"

// Ticker — нормализованный тикер-пуш от биржи.
type Ticker struct {
	InstID    string  `json:"instId"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"` // в процентах от open24h
	High24h   float64 `json:"high24h"`
	Low24h    float64 `json:"low24h"`
	Volume24h float64 `json:"volume24h"`
}

// BookLevel — один уровень стакана: цена + размер.
type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook — снапшот/дельта стакана. Пустые стороны наружу не уходят:
// при переподписке OKX шлёт транзитные пустые кадры.
type OrderBook struct {
	InstID string      `json:"instId"`
	Asks   []BookLevel `json:"asks"`
	Bids   []BookLevel `json:"bids"`
	Ts     time.Time   `json:"ts"`
}

// Типы событий, которые коннектор отдаёт вниз по конвейеру.
const (
	EventPriceUpdate     = "price_update"
	EventOrderbookUpdate = "orderbook_update"
	EventCandleUpdate    = "candle_update"
)

// StreamEvent — типизированное событие между фид-коннектором и потребителями
// (BroadcastHub, свечной upsert). Data — Ticker / OrderBook / Candle.
type StreamEvent struct {
	Type   string
	InstID string
	Bar    string // только для candle_update
	Data   any
}
