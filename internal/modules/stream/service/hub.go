package service

import (
	"sync"

	"market_watch/internal/models"
	"market_watch/pkg/logger"

	"github.com/bytedance/sonic"
)

// envelope — серверный конверт downstream-протокола.
type envelope struct {
	Type     string `json:"type"`
	InstID   string `json:"instId,omitempty"`
	Interval string `json:"interval,omitempty"`
	Data     any    `json:"data"`
}

// Hub — единственный владелец множества живых downstream-соединений.
// Мёртвые соединения помечаются во время прохода рассылки и вычищаются
// после него: упавшая запись не ломает итерацию.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	statusFn func() any
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// SetStatusFunc — источник снапшота для request_metrics.
func (h *Hub) SetStatusFunc(fn func() any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statusFn = fn
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	logger.Info("[STREAM] client registered, total=%d", len(h.clients))
}

// Broadcast сериализует событие один раз и пишет его всем trading-клиентам.
// Мониторинговые соединения торговые события не получают.
func (h *Hub) Broadcast(ev models.StreamEvent) {
	data, err := sonic.Marshal(envelope{
		Type:     ev.Type,
		InstID:   ev.InstID,
		Interval: ev.Bar,
		Data:     ev.Data,
	})
	if err != nil {
		logger.Error("[STREAM] marshal %s: %v", ev.Type, err)
		return
	}
	h.fanout(data, RoleTrading)
}

// BroadcastMonitoring — сайд-канал статуса только для monitoring-клиентов.
func (h *Hub) BroadcastMonitoring(payload any) {
	data, err := sonic.Marshal(envelope{Type: "metrics_update", Data: payload})
	if err != nil {
		logger.Error("[STREAM] marshal metrics: %v", err)
		return
	}
	h.fanout(data, RoleMonitoring)
}

func (h *Hub) fanout(data []byte, role Role) {
	h.mu.RLock()
	var dead []*Client
	for c := range h.clients {
		if c.Role() != role {
			continue
		}
		if !c.trySend(data) {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	// чистим после прохода, не во время
	for _, c := range dead {
		h.drop(c)
	}
}

// SendToUser доставляет payload во все живые соединения пользователя.
// Возвращает false, если живых соединений нет.
func (h *Hub) SendToUser(userID int64, kind string, payload any) bool {
	if userID == 0 {
		return false
	}
	data, err := sonic.Marshal(envelope{Type: kind, Data: payload})
	if err != nil {
		logger.Error("[STREAM] marshal %s: %v", kind, err)
		return false
	}

	h.mu.RLock()
	var dead []*Client
	delivered := false
	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		if c.trySend(data) {
			delivered = true
		} else {
			dead = append(dead, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dead {
		h.drop(c)
	}
	return delivered
}

// drop закрывает соединение и убирает его из множества.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if ok {
		c.close()
		logger.Info("[STREAM] client pruned, total=%d", h.Len())
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) CountByRole(role Role) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.Role() == role {
			n++
		}
	}
	return n
}

// sendStatusTo отвечает клиенту на request_metrics. Membership-проверка
// под RLock исключает запись в уже закрытый канал выброшенного клиента.
func (h *Hub) sendStatusTo(c *Client) {
	data, ok := h.status()
	if !ok {
		return
	}
	h.mu.RLock()
	if _, alive := h.clients[c]; alive {
		_ = c.trySend(data)
	}
	h.mu.RUnlock()
}

func (h *Hub) status() ([]byte, bool) {
	h.mu.RLock()
	fn := h.statusFn
	h.mu.RUnlock()
	if fn == nil {
		return nil, false
	}
	data, err := sonic.Marshal(envelope{Type: "metrics_update", Data: fn()})
	if err != nil {
		return nil, false
	}
	return data, true
}
