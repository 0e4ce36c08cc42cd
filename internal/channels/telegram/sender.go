package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/lingobot/internal/delivery"
)

// Sender adapts telego to the delivery.Sender contract. Destination is
// the chat ID in decimal form; for direct chats it equals the user ID.
type Sender struct {
	bot *telego.Bot
}

// NewSender wraps a bot for outbound delivery.
func NewSender(bot *telego.Bot) *Sender {
	return &Sender{bot: bot}
}

// Send delivers a single message. An oversize rejection from the Bot API
// is wrapped with delivery.ErrTooLong so the splitter can re-split.
func (s *Sender) Send(ctx context.Context, destination, text string) error {
	chatID, err := strconv.ParseInt(destination, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", destination, err)
	}

	// Known-oversize messages skip the round trip to the API.
	if len(text) > telegramHardLimit {
		return fmt.Errorf("%w: %d chars over %d", delivery.ErrTooLong, len(text), telegramHardLimit)
	}

	_, err = s.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text))
	if err != nil {
		if isTooLongError(err) {
			return fmt.Errorf("%w: %w", delivery.ErrTooLong, err)
		}
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// isTooLongError classifies the Bot API's oversize rejection by its
// description, the only signal the API gives.
func isTooLongError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "message is too long")
}
