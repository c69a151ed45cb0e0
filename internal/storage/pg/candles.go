package pg

import (
	"context"

	"market_watch/internal/models"
	"market_watch/pkg/db"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Candles — хранилище свечей. Ключ (inst_id, bar, ts) уникален,
// повторная запись перезаписывает OHLCV-поля (upsert, не insert).
type Candles struct {
	db *db.PgTxManager
}

func NewCandles(m *db.PgTxManager) *Candles {
	return &Candles{db: m}
}

const upsertCandleSQL = `
INSERT INTO candles (inst_id, bar, ts, open, high, low, close, volume, vol_ccy)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (inst_id, bar, ts) DO UPDATE SET
    open = EXCLUDED.open,
    high = EXCLUDED.high,
    low = EXCLUDED.low,
    close = EXCLUDED.close,
    volume = EXCLUDED.volume,
    vol_ccy = EXCLUDED.vol_ccy`

func (c *Candles) Upsert(ctx context.Context, candle models.Candle) error {
	_, err := c.db.Conn().Exec(ctx, upsertCandleSQL,
		candle.InstID, candle.Bar, candle.OpenTime,
		candle.Open, candle.High, candle.Low, candle.Close,
		candle.Volume, candle.QuoteVolume,
	)
	if err != nil {
		return errors.Wrap(err, "pg.Candles.Upsert")
	}
	return nil
}

// UpsertBatch пишет пачку в одной транзакции: либо вся партиция
// истории ложится, либо никакая.
func (c *Candles) UpsertBatch(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	err := c.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for _, candle := range candles {
			if _, err := tx.Exec(ctxTx, upsertCandleSQL,
				candle.InstID, candle.Bar, candle.OpenTime,
				candle.Open, candle.High, candle.Low, candle.Close,
				candle.Volume, candle.QuoteVolume,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "pg.Candles.UpsertBatch")
	}
	return nil
}

// ListAscending — вся персистентная история пары по возрастанию времени.
func (c *Candles) ListAscending(ctx context.Context, instID, bar string) ([]models.Candle, error) {
	rows, err := c.db.Conn().Query(ctx, `
SELECT inst_id, bar, ts, open, high, low, close, volume, vol_ccy
FROM candles
WHERE inst_id = $1 AND bar = $2
ORDER BY ts ASC`, instID, bar)
	if err != nil {
		return nil, errors.Wrap(err, "pg.Candles.ListAscending")
	}
	defer rows.Close()

	var out []models.Candle
	for rows.Next() {
		var candle models.Candle
		if err := rows.Scan(
			&candle.InstID, &candle.Bar, &candle.OpenTime,
			&candle.Open, &candle.High, &candle.Low, &candle.Close,
			&candle.Volume, &candle.QuoteVolume,
		); err != nil {
			return nil, errors.Wrap(err, "pg.Candles.ListAscending scan")
		}
		out = append(out, candle)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pg.Candles.ListAscending rows")
	}
	return out, nil
}
