package service

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"market_watch/pkg/logger"

	"github.com/gorilla/websocket"
)

// Role — роль downstream-соединения. Соединение рождается торговым;
// повышение до monitoring одностороннее и обратной дороги не имеет.
type Role int32

const (
	RoleTrading Role = iota
	RoleMonitoring
)

const (
	sendBuffer   = 256
	writeTimeout = 10 * time.Second
)

// Client — одно downstream-соединение. Принадлежит хабу целиком.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int64

	role      atomic.Int32
	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		userID: userID,
	}
}

func (c *Client) Role() Role { return Role(c.role.Load()) }

// promote — одностороннее повышение trading -> monitoring.
func (c *Client) promote() {
	c.role.CompareAndSwap(int32(RoleTrading), int32(RoleMonitoring))
}

// trySend кладёт кадр в буфер отправки; false — клиент не вычитывает
// и считается мёртвым.
func (c *Client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) writePump() {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.hub.drop(c)
			return
		}
	}
}

// clientMessage — входящие сообщения downstream-протокола.
type clientMessage struct {
	Type       string `json:"type"`
	ClientType string `json:"clientType"`
}

func (c *Client) readPump() {
	defer c.hub.drop(c)

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var in clientMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			logger.Warn("[STREAM] malformed client message: %v", err)
			continue
		}

		switch in.Type {
		case "client_identification":
			if in.ClientType == "monitoring" {
				c.promote()
				logger.Info("[STREAM] client promoted to monitoring")
			}
		case "request_metrics":
			if c.Role() != RoleMonitoring {
				continue
			}
			c.hub.sendStatusTo(c)
		}
	}
}
