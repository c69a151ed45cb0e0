package models

import "time"

// Candle — одна OHLCV-свеча. Естественный ключ: (InstID, Bar, OpenTime).
// Пока окно свечи не закрыто, upstream может пересылать её с новыми полями —
// хранилище перезаписывает строку по ключу (upsert, не insert).
type Candle struct {
	InstID      string    `json:"instId"`
	Bar         string    `json:"bar"` // "1m", "5m", "1H", ...
	OpenTime    time.Time `json:"ts"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	QuoteVolume float64   `json:"volCcy"`
}

// Key — позиция свечи внутри одной пары (instId, bar).
func (c Candle) Key() int64 { return c.OpenTime.UnixMilli() }
