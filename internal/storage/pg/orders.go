package pg

import (
	"context"

	"market_watch/internal/models"
	"market_watch/pkg/db"

	"github.com/pkg/errors"
)

// Orders — условные ордера. Переход active -> executed делается
// условным UPDATE на стороне базы, а не внутрипроцессным локом:
// к таблице в принципе может ходить не один процесс.
type Orders struct {
	db *db.PgTxManager
}

func NewOrders(m *db.PgTxManager) *Orders {
	return &Orders{db: m}
}

func (o *Orders) ListActive(ctx context.Context) ([]models.StopOrder, error) {
	rows, err := o.db.Conn().Query(ctx, `
SELECT id, user_id, inst_id, order_type, position_type, trigger_price, status, created_at
FROM stop_orders
WHERE status = 'active'
ORDER BY id ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "pg.Orders.ListActive")
	}
	defer rows.Close()

	var out []models.StopOrder
	for rows.Next() {
		var ord models.StopOrder
		if err := rows.Scan(
			&ord.ID, &ord.UserID, &ord.InstID,
			&ord.OrderType, &ord.PositionType, &ord.TriggerPrice,
			&ord.Status, &ord.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "pg.Orders.ListActive scan")
		}
		out = append(out, ord)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pg.Orders.ListActive rows")
	}
	return out, nil
}

// MarkExecuted — CAS-переход active -> executed. Возвращает won=false,
// если ордер уже исполнил (или отменил) кто-то другой: для вызывающего
// это не ошибка, а проигранная гонка.
func (o *Orders) MarkExecuted(ctx context.Context, id int64) (won bool, err error) {
	tag, err := o.db.Conn().Exec(ctx, `
UPDATE stop_orders
SET status = 'executed', executed_at = now()
WHERE id = $1 AND status = 'active'`, id)
	if err != nil {
		return false, errors.Wrap(err, "pg.Orders.MarkExecuted")
	}
	return tag.RowsAffected() == 1, nil
}
