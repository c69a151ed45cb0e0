package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleReconnectIdempotent(t *testing.T) {
	c, _, _ := testConnector(nil)
	c.ctx = context.Background()

	// close-событие при уже взведённом таймере второй не порождает
	c.scheduleReconnect()
	require.True(t, c.reconnectPending())
	first := c.reconnect

	c.scheduleReconnect()
	c.scheduleReconnect()
	assert.Same(t, first, c.reconnect, "pending timer must not be replaced")
}

func TestCloseCancelsPendingReconnect(t *testing.T) {
	c, _, _ := testConnector(nil)
	c.ctx = context.Background()

	c.scheduleReconnect()
	require.True(t, c.reconnectPending())

	c.Close()
	assert.False(t, c.reconnectPending())

	// после Close планирование запрещено
	c.scheduleReconnect()
	assert.False(t, c.reconnectPending())
}

func TestReconnectFiresOnce(t *testing.T) {
	c, _, _ := testConnector(nil)
	c.cfg.ReconnectDelay = 10 * time.Millisecond
	c.ctx = context.Background()

	// dial уйдёт в недоступный адрес, упадёт и перевзведёт таймер —
	// важно, что в каждый момент времени таймер ровно один
	c.scheduleReconnect()
	c.scheduleReconnect()

	require.Eventually(t, c.reconnectPending, time.Second, 5*time.Millisecond,
		"failed dial must have re-armed a single timer")

	c.Close()
	assert.False(t, c.reconnectPending())
}

func TestSubscribeRequestCoversMatrix(t *testing.T) {
	c, _, _ := testConnector(nil)

	req := c.subscribeRequest()
	assert.Equal(t, "subscribe", req["op"])

	args, ok := req["args"].([]map[string]string)
	require.True(t, ok)
	// tickers + books5 + 2 candle-канала на единственный инструмент
	require.Len(t, args, 4)

	channels := make(map[string]bool)
	for _, a := range args {
		assert.Equal(t, "BTC-USDT", a["instId"])
		channels[a["channel"]] = true
	}
	assert.True(t, channels["tickers"])
	assert.True(t, channels["books5"])
	assert.True(t, channels["candle1m"])
	assert.True(t, channels["candle1H"])
}
