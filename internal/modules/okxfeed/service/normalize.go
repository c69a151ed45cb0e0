package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"market_watch/internal/models"
	"market_watch/pkg/logger"
)

// pushFrame — канальный пуш OKX: {arg:{channel,instId}, data:[...]}.
// Кадры подписочных ack-ов несут event и пропускаются.
type pushFrame struct {
	Event string `json:"event"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data json.RawMessage `json:"data"`
}

func (c *Connector) handleFrame(ctx context.Context, msg []byte) {
	var frame pushFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		logger.Warn("[FEED] malformed frame: %v", err)
		return
	}
	if frame.Event != "" || len(frame.Data) == 0 {
		// ack подписки / служебный кадр
		return
	}

	switch {
	case frame.Arg.Channel == "tickers":
		c.handleTickers(frame)
	case strings.HasPrefix(frame.Arg.Channel, "books"):
		c.handleBooks(frame)
	case strings.HasPrefix(frame.Arg.Channel, "candle"):
		c.handleCandles(ctx, frame)
	default:
		logger.Warn("[FEED] unknown channel %q, frame dropped", frame.Arg.Channel)
	}
}

func (c *Connector) handleTickers(frame pushFrame) {
	var rows []struct {
		InstID    string `json:"instId"`
		Last      string `json:"last"`
		Open24h   string `json:"open24h"`
		High24h   string `json:"high24h"`
		Low24h    string `json:"low24h"`
		Vol24h    string `json:"vol24h"`
		VolCcy24h string `json:"volCcy24h"`
		Ts        string `json:"ts"`
	}
	if err := json.Unmarshal(frame.Data, &rows); err != nil {
		logger.Warn("[FEED] ticker decode: %v", err)
		return
	}

	for _, row := range rows {
		last, err := strconv.ParseFloat(row.Last, 64)
		if err != nil || last <= 0 {
			continue
		}
		open24h, _ := strconv.ParseFloat(row.Open24h, 64)
		high24h, _ := strconv.ParseFloat(row.High24h, 64)
		low24h, _ := strconv.ParseFloat(row.Low24h, 64)
		vol24h, _ := strconv.ParseFloat(row.Vol24h, 64)

		var change24h float64
		if open24h > 0 {
			change24h = (last - open24h) / open24h * 100
		}

		t := models.Ticker{
			InstID:    row.InstID,
			Price:     last,
			Change24h: change24h,
			High24h:   high24h,
			Low24h:    low24h,
			Volume24h: vol24h,
		}

		now := time.Now()
		c.prices.Apply(t, now)
		c.state.TouchTick(now)
		c.emit(models.StreamEvent{Type: models.EventPriceUpdate, InstID: t.InstID, Data: t})
	}
}

func (c *Connector) handleBooks(frame pushFrame) {
	var rows []struct {
		Asks [][]string `json:"asks"`
		Bids [][]string `json:"bids"`
		Ts   string     `json:"ts"`
	}
	if err := json.Unmarshal(frame.Data, &rows); err != nil {
		logger.Warn("[FEED] book decode: %v", err)
		return
	}

	for _, row := range rows {
		// транзитные пустые кадры при переподписке — молча мимо
		if len(row.Asks) == 0 || len(row.Bids) == 0 {
			continue
		}

		book := models.OrderBook{
			InstID: frame.Arg.InstID,
			Asks:   parseLevels(row.Asks),
			Bids:   parseLevels(row.Bids),
		}
		if tsMs, err := strconv.ParseInt(row.Ts, 10, 64); err == nil {
			book.Ts = time.UnixMilli(tsMs)
		}
		if len(book.Asks) == 0 || len(book.Bids) == 0 {
			continue
		}

		c.emit(models.StreamEvent{Type: models.EventOrderbookUpdate, InstID: book.InstID, Data: book})
	}
}

func parseLevels(raw [][]string) []models.BookLevel {
	out := make([]models.BookLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		px, err1 := strconv.ParseFloat(lvl[0], 64)
		sz, err2 := strconv.ParseFloat(lvl[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, models.BookLevel{Price: px, Size: sz})
	}
	return out
}

func (c *Connector) handleCandles(ctx context.Context, frame pushFrame) {
	label := strings.TrimPrefix(frame.Arg.Channel, "candle")
	bar, err := normalizeBar(label)
	if err != nil {
		// неизвестная метка интервала не валит коннектор
		logger.Warn("[FEED] %v, frame dropped", err)
		return
	}

	var rows [][]string
	if err := json.Unmarshal(frame.Data, &rows); err != nil {
		logger.Warn("[FEED] candle decode: %v", err)
		return
	}

	for _, row := range rows {
		candle, ok := parseCandleRow(frame.Arg.InstID, bar, row)
		if !ok {
			continue
		}

		c.emit(models.StreamEvent{
			Type:   models.EventCandleUpdate,
			InstID: candle.InstID,
			Bar:    candle.Bar,
			Data:   candle,
		})

		// живой upsert только для интервалов матрицы персистентности
		if c.candles != nil && c.cfg.PersistedInterval(bar) {
			go func(candle models.Candle) {
				upCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := c.candles.Upsert(upCtx, candle); err != nil {
					logger.Error("[FEED] live candle upsert %s %s: %v", candle.InstID, candle.Bar, err)
				}
			}(candle)
		}
	}
}

// parseCandleRow — строка OKX: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm].
func parseCandleRow(instID, bar string, row []string) (models.Candle, bool) {
	if len(row) < 5 {
		return models.Candle{}, false
	}

	tsMs, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Candle{}, false
	}

	open, err1 := strconv.ParseFloat(row[1], 64)
	high, err2 := strconv.ParseFloat(row[2], 64)
	low, err3 := strconv.ParseFloat(row[3], 64)
	closep, err4 := strconv.ParseFloat(row[4], 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return models.Candle{}, false
	}
	if closep <= 0 {
		return models.Candle{}, false
	}

	var vol float64
	if len(row) >= 6 {
		vol, _ = strconv.ParseFloat(row[5], 64)
	}
	var volQuote float64
	if len(row) >= 8 {
		volQuote, _ = strconv.ParseFloat(row[7], 64)
	}

	return models.Candle{
		InstID:      instID,
		Bar:         bar,
		OpenTime:    time.UnixMilli(tsMs),
		Open:        open,
		High:        high,
		Low:         low,
		Close:       closep,
		Volume:      vol,
		QuoteVolume: volQuote,
	}, true
}
