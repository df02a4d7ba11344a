package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/config"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// InstrumentResolver looks up the instrument a signal refers to so the
// message can carry the symbol instead of a bare ID.
type InstrumentResolver func(ctx context.Context, instrumentID int64) (contracts.Instrument, error)

// TelegramNotifier sends one message per signal to a fixed chat.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	resolve InstrumentResolver
	logger  *logger.Logger
}

// NewTelegramNotifier creates a Telegram notifier. Fails fast when the
// token is rejected so a misconfiguration is caught at startup, not at
// the first signal.
func NewTelegramNotifier(cfg config.TelegramConfig, resolve InstrumentResolver, log *logger.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:     bot,
		chatID:  cfg.ChatID,
		resolve: resolve,
		logger:  log.WithField("component", "telegram_notifier"),
	}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, sig contracts.Signal) error {
	inst := contracts.Instrument{ID: sig.InstrumentID, Symbol: fmt.Sprintf("#%d", sig.InstrumentID)}
	if n.resolve != nil {
		if resolved, err := n.resolve(ctx, sig.InstrumentID); err == nil {
			inst = resolved
		}
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatSignal(sig, inst))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	n.logger.WithField("signal", sig.UniqueKey()).Debug("Telegram notification sent")
	return nil
}
