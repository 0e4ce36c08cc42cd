package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/lingobot/internal/store"
)

// handleCommand dispatches bot commands. Unknown commands are ignored so
// they never pollute the message queue.
func (c *Channel) handleCommand(ctx context.Context, chatID int64, userID, text string) {
	cmd := strings.SplitN(text, " ", 2)[0]
	cmd = strings.SplitN(cmd, "@", 2)[0]
	cmd = strings.ToLower(cmd)

	switch cmd {
	case "/start":
		c.reply(ctx, chatID,
			"Hello! I'm a multilingual AI assistant. "+
				"You can chat with me in any language, and upload documents for me to answer questions about.")

	case "/docs":
		c.listDocuments(ctx, chatID, userID)

	case "/help":
		c.reply(ctx, chatID,
			"Available commands:\n"+
				"/start — Start chatting with the bot\n"+
				"/docs — List your uploaded documents\n"+
				"/help — Show this help message\n"+
				"\nJust send a message to chat, or upload a document.")

	default:
		slog.Debug("ignoring unknown command", "command", cmd, "user_id", userID)
	}
}

func (c *Channel) listDocuments(ctx context.Context, chatID int64, userID string) {
	if c.docs == nil {
		c.reply(ctx, chatID, "Document uploads are not enabled.")
		return
	}

	documents, err := c.docs.List(ctx, userID)
	if err != nil {
		slog.Error("list documents failed", "user_id", userID, "error", err)
		c.reply(ctx, chatID, "Sorry, I couldn't load your documents.")
		return
	}
	if len(documents) == 0 {
		c.reply(ctx, chatID, "You haven't uploaded any documents yet.")
		return
	}

	var b strings.Builder
	b.WriteString("Your uploaded documents:\n\n")
	for _, d := range documents {
		mark := "❌"
		if d.Status == store.DocStatusProcessed {
			mark = "✅"
		}
		fmt.Fprintf(&b, "%s %s - %s\n", mark, d.FileName, d.UploadedAt.Format("2006-01-02 15:04"))
	}

	msg := tu.Message(tu.ID(chatID), b.String())
	if _, err := c.bot.SendMessage(ctx, msg); err != nil {
		slog.Warn("docs listing reply failed", "chat_id", chatID, "error", err)
	}
}
