package notify

import (
	"context"
	"fmt"

	"market_watch/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier — сервисные уведомления (подключение фида, реконнекты,
// исполнения ордеров). Не путать с алертами пользователей: те идут
// в их живые downstream-соединения.
type Notifier interface {
	SendService(ctx context.Context, format string, args ...any)
}

// Telegram — пассивный нотифайер в сервисный чат.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) SendService(_ context.Context, format string, args ...any) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, fmt.Sprintf(format, args...)))
}

// Stdout — заглушка, когда токен не задан: всё в лог.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) SendService(_ context.Context, format string, args ...any) {
	logger.Info(format, args...)
}
