package pricestate

import (
	"sync"
	"time"

	"market_watch/internal/models"
)

// Snapshot — последнее известное состояние цены инструмента.
// Не персистится: после рестарта восстанавливается первым же тикером.
type Snapshot struct {
	InstID    string    `json:"instId"`
	Price     float64   `json:"price"`
	PrevPrice float64   `json:"prevPrice"`
	High24h   float64   `json:"high24h"`
	Low24h    float64   `json:"low24h"`
	Volume24h float64   `json:"volume24h"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store — единственный владелец прайс-состояния. Пишет только фид-коннектор,
// читают движок алертов и проверка свежести реконсиляции.
type Store struct {
	mu   sync.RWMutex
	data map[string]Snapshot
}

func NewStore() *Store {
	return &Store{data: make(map[string]Snapshot)}
}

// Apply обновляет снапшот инструмента по нормализованному тикеру.
// Обновления применяются в порядке прихода: upstream-соединение одно,
// переупорядочивания нет.
func (s *Store) Apply(t models.Ticker, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data[t.InstID].Price
	s.data[t.InstID] = Snapshot{
		InstID:    t.InstID,
		Price:     t.Price,
		PrevPrice: prev,
		High24h:   t.High24h,
		Low24h:    t.Low24h,
		Volume24h: t.Volume24h,
		UpdatedAt: at,
	}
}

func (s *Store) Get(instID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.data[instID]
	return snap, ok
}

// All — копия всех снапшотов на момент вызова.
func (s *Store) All() map[string]Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Snapshot, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Fresh — обновлялся ли инструмент за последние maxAge.
func (s *Store) Fresh(instID string, maxAge time.Duration) bool {
	snap, ok := s.Get(instID)
	if !ok {
		return false
	}
	return time.Since(snap.UpdatedAt) <= maxAge
}
