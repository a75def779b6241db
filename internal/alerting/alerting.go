// Package alerting is the operational alerting sink spec.md §4.16
// supplements: a one-line ops-chat notice for the lifecycle events the
// rest of the gateway already detects but never surfaces (a session
// entering the "not trade day" paused state, a batch of locate
// requests expiring, a swallowed persistence-taxonomy error). Grounded
// in web3guy0-polybot's use of go-telegram-bot-api for trade alerts,
// adapted here to a single fire-and-forget Notify call rather than an
// interactive bot.
package alerting

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/epic1st/shadowfix/internal/logging"
)

// Sink is the narrow interface the Locate Protocol Engine, the Session
// Router and the Dispatcher's error path notify through.
type Sink interface {
	Notify(ctx context.Context, message string)
}

// TelegramSink posts messages to a single configured chat. It is a
// no-op Sink when no bot token or chat ID is configured, so alerting
// never gates correctness the way spec.md §4.16 requires.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *logging.Logger
}

// New builds a Sink from a bot token and chat ID. Either being empty
// disables alerting and returns a Sink whose Notify is a no-op.
func New(botToken, chatID string, logger *logging.Logger) Sink {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With(logging.Component("alerting"))

	if botToken == "" || chatID == "" {
		return &noopSink{logger: logger}
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		logger.Error("failed to initialize telegram bot, alerting disabled", logging.Err(err))
		return &noopSink{logger: logger}
	}

	id, err := parseChatID(chatID)
	if err != nil {
		logger.Error("invalid ops alert chat id, alerting disabled", logging.Err(err))
		return &noopSink{logger: logger}
	}

	return &TelegramSink{bot: bot, chatID: id, logger: logger}
}

// Notify sends message to the configured chat, logging but never
// returning an error — alerting is a side channel, never a control
// path (spec.md §7).
func (s *TelegramSink) Notify(ctx context.Context, message string) {
	msg := tgbotapi.NewMessage(s.chatID, message)
	if _, err := s.bot.Send(msg); err != nil {
		s.logger.Warn("failed to send ops alert", logging.Err(err))
	}
}

type noopSink struct {
	logger *logging.Logger
}

func (s *noopSink) Notify(_ context.Context, message string) {
	s.logger.Debug("ops alert suppressed, no sink configured", logging.String("message", message))
}

func parseChatID(raw string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(raw, "%d", &id)
	return id, err
}
