// Package processor turns a user's queued messages into a single reply.
// One Process call is one pass: claim everything unprocessed, retrieve
// document context, and ask the model for a combined answer.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nextlevelbuilder/lingobot/internal/docs"
	"github.com/nextlevelbuilder/lingobot/internal/providers"
	"github.com/nextlevelbuilder/lingobot/internal/store"
)

const systemPrompt = "You are a helpful multilingual assistant. " +
	"Answer in the language the user writes in. " +
	"When document excerpts are provided, ground your answer in them and " +
	"say so when they do not cover the question."

// Retriever finds document chunks relevant to a query for a user.
// *docs.Manager satisfies it; tests substitute a fake.
type Retriever interface {
	Search(ctx context.Context, userID, query string, topK int, minScore float64) ([]docs.SearchResult, error)
}

// Options tune a Processor.
type Options struct {
	Model       string
	Temperature float64
	MaxBatch    int // max messages claimed per pass
	TopK        int
	MinScore    float64
}

// Processor implements one claim-and-reply pass per user.
type Processor struct {
	store     *store.Store
	chat      providers.ChatProvider
	retriever Retriever
	opts      Options
}

// New creates a processor. retriever may be nil when document grounding
// is disabled.
func New(st *store.Store, chat providers.ChatProvider, retriever Retriever, opts Options) *Processor {
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 10
	}
	return &Processor{store: st, chat: chat, retriever: retriever, opts: opts}
}

// Process claims all currently unprocessed messages for userID (up to the
// batch cap), marks them processed, and returns the combined reply. An
// empty string means no reply is warranted (nothing was claimed).
func (p *Processor) Process(ctx context.Context, userID string) (string, error) {
	msgs, err := p.store.ClaimUnprocessed(ctx, userID, p.opts.MaxBatch)
	if err != nil {
		return "", fmt.Errorf("claim messages: %w", err)
	}
	if len(msgs) == 0 {
		return "", nil
	}

	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}
	combined := strings.Join(texts, "\n")

	slog.Debug("processing batch", "user_id", userID, "messages", len(msgs))

	chatMsgs := []providers.Message{{Role: "system", Content: systemPrompt}}
	if excerpt := p.retrieveContext(ctx, userID, combined); excerpt != "" {
		chatMsgs = append(chatMsgs, providers.Message{
			Role:    "system",
			Content: "Relevant excerpts from the user's documents:\n\n" + excerpt,
		})
	}
	chatMsgs = append(chatMsgs, providers.Message{Role: "user", Content: combined})

	resp, err := p.chat.Chat(ctx, providers.ChatRequest{
		Model:       p.opts.Model,
		Messages:    chatMsgs,
		Temperature: p.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	return strings.TrimSpace(resp.Content), nil
}

// retrieveContext is best-effort: retrieval failures degrade to an
// ungrounded answer rather than failing the pass.
func (p *Processor) retrieveContext(ctx context.Context, userID, query string) string {
	if p.retriever == nil {
		return ""
	}

	results, err := p.retriever.Search(ctx, userID, query, p.opts.TopK, p.opts.MinScore)
	if err != nil {
		slog.Warn("document retrieval failed", "user_id", userID, "error", err)
		return ""
	}
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(r.Text)
	}
	return b.String()
}
