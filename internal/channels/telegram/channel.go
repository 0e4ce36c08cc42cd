// Package telegram is the bot's Telegram channel: long-polling ingress for
// text and document uploads, bot commands, and the outbound send adapter.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/lingobot/internal/docs"
	"github.com/nextlevelbuilder/lingobot/internal/store"
)

// Ingress is the scheduling entry point every inbound message must hit
// after it is persisted. The scheduler satisfies it.
type Ingress interface {
	OnMessage(userID string)
}

// Channel runs the Telegram side of the bot.
type Channel struct {
	bot       *telego.Bot
	store     *store.Store
	ingress   Ingress
	docs      *docs.Manager
	uploadDir string
}

// New creates the channel. docs may be nil to disable document uploads.
func New(bot *telego.Bot, st *store.Store, ingress Ingress, docMgr *docs.Manager, uploadDir string) (*Channel, error) {
	if uploadDir != "" {
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &Channel{
		bot:       bot,
		store:     st,
		ingress:   ingress,
		docs:      docMgr,
		uploadDir: uploadDir,
	}, nil
}

// Run polls for updates until ctx is cancelled.
func (c *Channel) Run(ctx context.Context) error {
	updates, err := c.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	slog.Info("telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	userID := strconv.FormatInt(msg.From.ID, 10)
	chatID := msg.Chat.ID

	switch {
	case msg.Document != nil:
		c.handleDocument(ctx, chatID, userID, msg.Document)
	case strings.HasPrefix(msg.Text, "/"):
		c.handleCommand(ctx, chatID, userID, msg.Text)
	case msg.Text != "":
		c.handleText(ctx, chatID, userID, msg.Text)
	}
}

// handleText persists the message and pokes the scheduler. This is the
// sole ingress path for reply generation.
func (c *Channel) handleText(ctx context.Context, chatID int64, userID, text string) {
	if err := c.store.EnqueueMessage(ctx, userID, text); err != nil {
		slog.Error("enqueue message failed", "user_id", userID, "error", err)
		c.reply(ctx, chatID, "Sorry, I couldn't accept that message. Please try again.")
		return
	}
	c.ingress.OnMessage(userID)
}

// handleDocument downloads and ingests an upload, then schedules a pass
// so the bot can respond to the new document.
func (c *Channel) handleDocument(ctx context.Context, chatID int64, userID string, doc *telego.Document) {
	if c.docs == nil {
		c.reply(ctx, chatID, "Document uploads are not enabled.")
		return
	}

	path, err := c.downloadDocument(ctx, userID, doc)
	if err != nil {
		slog.Error("document download failed", "user_id", userID, "file", doc.FileName, "error", err)
		c.reply(ctx, chatID, "Sorry, I couldn't download that document.")
		return
	}
	defer os.Remove(path)

	_, err = c.docs.Ingest(ctx, path, userID)
	switch {
	case err == nil:
		c.reply(ctx, chatID, "Document uploaded and processed successfully! I will analyze it and provide a summary.")
		if qerr := c.store.EnqueueMessage(ctx, userID,
			fmt.Sprintf("I just uploaded a document named %q. Please give me a brief summary of it.", doc.FileName)); qerr != nil {
			slog.Error("enqueue summary request failed", "user_id", userID, "error", qerr)
			return
		}
		c.ingress.OnMessage(userID)
	case errors.Is(err, docs.ErrAlreadyIngested):
		c.reply(ctx, chatID, "This document has already been uploaded and processed.")
	default:
		slog.Error("document ingestion failed", "user_id", userID, "file", doc.FileName, "error", err)
		c.reply(ctx, chatID, "Error processing document: "+doc.FileName)
	}
}

// downloadDocument fetches the file through the Bot API into the upload
// directory. The caller removes the file when done.
func (c *Channel) downloadDocument(ctx context.Context, userID string, doc *telego.Document) (string, error) {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: doc.FileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}

	url := c.bot.FileDownloadURL(file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	name := filepath.Base(doc.FileName)
	if name == "" || name == "." {
		name = doc.FileID
	}
	path := filepath.Join(c.uploadDir, userID+"_"+name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (c *Channel) reply(ctx context.Context, chatID int64, text string) {
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		slog.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}
