package pg

import (
	"context"

	"market_watch/internal/models"
	"market_watch/pkg/db"

	"github.com/pkg/errors"
)

// Rules — правила ценовых алертов пользователей.
type Rules struct {
	db *db.PgTxManager
}

func NewRules(m *db.PgTxManager) *Rules {
	return &Rules{db: m}
}

func (r *Rules) ListEnabled(ctx context.Context) ([]models.AlertRule, error) {
	rows, err := r.db.Conn().Query(ctx, `
SELECT user_id, enabled, threshold_percent
FROM alert_rules
WHERE enabled = true`)
	if err != nil {
		return nil, errors.Wrap(err, "pg.Rules.ListEnabled")
	}
	defer rows.Close()

	var out []models.AlertRule
	for rows.Next() {
		var rule models.AlertRule
		if err := rows.Scan(&rule.UserID, &rule.Enabled, &rule.ThresholdPercent); err != nil {
			return nil, errors.Wrap(err, "pg.Rules.ListEnabled scan")
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "pg.Rules.ListEnabled rows")
	}
	return out, nil
}

// Alerts — журнал сработавших алертов, append-only.
type Alerts struct {
	db *db.PgTxManager
}

func NewAlerts(m *db.PgTxManager) *Alerts {
	return &Alerts{db: m}
}

func (a *Alerts) Append(ctx context.Context, ev models.AlertEvent) error {
	_, err := a.db.Conn().Exec(ctx, `
INSERT INTO alert_events (user_id, inst_id, kind, previous_price, current_price, change_percent, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.UserID, ev.InstID, ev.Kind,
		ev.PreviousPrice, ev.CurrentPrice, ev.ChangePercent,
		ev.Message, ev.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "pg.Alerts.Append")
	}
	return nil
}
