package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"market_watch/internal/models"
	"market_watch/internal/modules/config"
	healthsvc "market_watch/internal/modules/health/service"
	"market_watch/internal/pricestate"
	"market_watch/pkg/logger"

	"github.com/gorilla/websocket"
)

type ServiceNotifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// CandleWriter — асинхронный upsert живых свечей в хранилище.
type CandleWriter interface {
	Upsert(ctx context.Context, candle models.Candle) error
}

// Connector держит одно исходящее соединение к стриминговому эндпоинту OKX,
// нормализует кадры и отдаёт типизированные события в out.
//
// Жизненный цикл: Disconnected -> Connecting -> Subscribed -> Disconnected
// при любой ошибке/закрытии; из Disconnected ровно один таймер ведёт обратно
// в Connecting. Извне цикл прерывает только Close().
type Connector struct {
	cfg     *config.Config
	n       ServiceNotifier
	prices  *pricestate.Store
	state   *healthsvc.State
	candles CandleWriter
	out     chan<- models.StreamEvent

	wsDialer *websocket.Dialer
	http     *http.Client

	mu        sync.Mutex
	ctx       context.Context
	conn      *websocket.Conn
	reconnect *time.Timer
	pingStop  chan struct{}
	closed    bool
}

func NewConnector(
	cfg *config.Config,
	n ServiceNotifier,
	prices *pricestate.Store,
	state *healthsvc.State,
	candles CandleWriter,
	out chan models.StreamEvent,
) *Connector {
	return &Connector{
		cfg:      cfg,
		n:        n,
		prices:   prices,
		state:    state,
		candles:  candles,
		out:      out,
		wsDialer: &websocket.Dialer{},
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Start подключается и дальше живёт сам: реконнекты по таймеру,
// остановка — только Close().
func (c *Connector) Start(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	go c.connect()
}

// Close детерминированно гасит сокет и реконнект-таймер.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.stopPingLocked()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Connector) connect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.mu.Unlock()

	logger.Info("[FEED] connecting %s", c.cfg.OKX.WSURL)
	conn, _, err := c.wsDialer.Dial(c.cfg.OKX.WSURL, nil)
	if err != nil {
		logger.Error("[FEED] dial error: %v", err)
		c.scheduleReconnect()
		return
	}

	if err := conn.WriteJSON(c.subscribeRequest()); err != nil {
		logger.Error("[FEED] subscribe error: %v", err)
		_ = conn.Close()
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.pingStop = make(chan struct{})
	pingStop := c.pingStop
	c.mu.Unlock()

	c.state.SetFeedConnected(true)
	c.state.SetReady(true)
	if c.n != nil {
		c.n.SendService(ctx, "[FEED] connected: %d instruments, %d intervals",
			len(c.cfg.Instruments), len(c.cfg.Intervals))
	}

	go c.pingLoop(conn, pingStop)
	go c.readLoop(ctx, conn)
}

// subscribeRequest — tickers + books5 на инструмент, плюс candle-каналы
// по матрице персистентности.
func (c *Connector) subscribeRequest() map[string]any {
	args := make([]map[string]string, 0, len(c.cfg.Instruments)*(2+len(c.cfg.Intervals)))
	for _, inst := range c.cfg.Instruments {
		args = append(args,
			map[string]string{"channel": "tickers", "instId": inst},
			map[string]string{"channel": "books5", "instId": inst},
		)
		for _, bar := range c.cfg.Intervals {
			args = append(args, map[string]string{"channel": "candle" + bar, "instId": inst})
		}
	}
	return map[string]any{"op": "subscribe", "args": args}
}

func (c *Connector) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Error("[FEED] read error: %v", err)
			break
		}

		// keepalive-ответ OKX — литеральный "pong", вниз не уходит
		if len(msg) == 4 && string(msg) == "pong" {
			continue
		}

		c.handleFrame(ctx, msg)
	}

	_ = conn.Close()
	c.state.SetFeedConnected(false)

	c.mu.Lock()
	c.stopPingLocked()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	c.scheduleReconnect()
}

// pingLoop шлёт протокольный ping, пока соединение открыто —
// иначе OKX рвёт сокет по таймауту.
func (c *Connector) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(c.cfg.PingEvery)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// scheduleReconnect взводит ровно один таймер: close-событие при уже
// ожидающем реконнекте второй таймер не порождает.
func (c *Connector) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.reconnect != nil {
		return
	}

	logger.Info("[FEED] reconnect in %s", c.cfg.ReconnectDelay)
	c.reconnect = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnect = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		c.connect()
	})
}

func (c *Connector) stopPingLocked() {
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
}

// reconnectPending — видимость для тестов идемпотентности планирования.
func (c *Connector) reconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnect != nil
}

func (c *Connector) emit(ev models.StreamEvent) {
	select {
	case c.out <- ev:
	default:
		// буфер полон: тик теряется, следующий его перекрывает
	}
}
