package service

import (
	"net/http"
	"strconv"

	"market_watch/pkg/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// внешний периметр (auth, origin) — забота внешнего API-слоя
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWs апгрейдит HTTP-запрос в downstream-соединение хаба.
// Необязательный ?userId= привязывает соединение к пользователю,
// чтобы движок алертов мог доставлять его персональные события.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("[STREAM] upgrade: %v", err)
		return
	}

	var userID int64
	if raw := r.URL.Query().Get("userId"); raw != "" {
		userID, _ = strconv.ParseInt(raw, 10, 64)
	}

	client := newClient(h, conn, userID)
	h.Register(client)

	go client.writePump()
	go client.readPump()
}
