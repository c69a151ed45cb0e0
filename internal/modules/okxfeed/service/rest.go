package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"

	"market_watch/internal/models"
)

// HistoryCandles — одна страница REST-истории OKX (newest-first, до limit
// строк). after — курсор пагинации назад во времени: вернутся свечи строго
// старше указанного ts (unix ms); 0 — последняя страница истории.
// Результат разворачивается по возрастанию времени.
func (c *Connector) HistoryCandles(ctx context.Context, instID, bar string, limit int, after int64) ([]models.Candle, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	normBar, err := normalizeBar(bar)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/api/v5/market/history-candles?instId=%s&bar=%s&limit=%d",
		c.cfg.OKX.RESTURL, url.QueryEscape(instID), url.QueryEscape(normBar), limit,
	)
	if after > 0 {
		u += fmt.Sprintf("&after=%d", after)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(b))
	}

	var r struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	if r.Code != "0" {
		return nil, fmt.Errorf("okx history-candles error: code=%s msg=%s", r.Code, r.Msg)
	}

	out := make([]models.Candle, 0, len(r.Data))
	for i := len(r.Data) - 1; i >= 0; i-- {
		candle, ok := parseCandleRow(instID, normBar, r.Data[i])
		if !ok {
			continue
		}
		out = append(out, candle)
	}

	// подстраховка: гарантируем возрастание даже на кривых данных
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })

	return out, nil
}
