// Package delivery turns one logical reply into an ordered sequence of
// transport-safe messages. Long replies are split at paragraph boundaries,
// numbered with a part marker, and sent strictly in order with pacing so
// the transport cannot reorder them.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrTooLong is the sentinel a Sender must wrap when the transport rejects
// a message for exceeding its hard size limit. The splitter reacts with a
// fixed-window re-split; any other send error is surfaced as-is.
var ErrTooLong = errors.New("message exceeds transport length limit")

// Sender delivers a single message to a destination.
type Sender interface {
	Send(ctx context.Context, destination, text string) error
}

// Splitter splits and delivers replies through a Sender.
type Splitter struct {
	sender  Sender
	maxLen  int
	limiter *rate.Limiter
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithSendDelay sets the pacing between consecutive sends. Zero disables
// pacing (tests).
func WithSendDelay(d time.Duration) Option {
	return func(sp *Splitter) {
		if d > 0 {
			sp.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			sp.limiter = nil
		}
	}
}

// New creates a Splitter. maxLen is the per-message character budget; it
// should sit below the transport's hard limit to leave room for the part
// marker (Telegram: hard limit 4096, budget 4000).
func New(sender Sender, maxLen int, opts ...Option) *Splitter {
	if maxLen <= 0 {
		maxLen = 4000
	}
	sp := &Splitter{
		sender:  sender,
		maxLen:  maxLen,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp
}

// Deliver sends text to destination, splitting it into parts when it
// exceeds the length budget. Parts are sent in order; a part whose send
// fails does not abort the remaining parts, and all per-part errors are
// joined into the returned error. Empty text is a no-op.
func (sp *Splitter) Deliver(ctx context.Context, destination, text string) error {
	if text == "" {
		return nil
	}

	if len(text) <= sp.maxLen {
		return sp.send(ctx, destination, text)
	}

	parts := SplitParagraphs(text, sp.maxLen)
	total := len(parts)
	slog.Debug("splitting long reply", "destination", destination,
		"length", len(text), "parts", total)

	var errs []error
	for i, part := range parts {
		msg := part
		if total > 1 {
			msg = fmt.Sprintf("Part %d/%d:\n\n", i+1, total) + part
		}
		if err := sp.send(ctx, destination, msg); err != nil {
			errs = append(errs, fmt.Errorf("part %d/%d: %w", i+1, total, err))
		}
	}
	return errors.Join(errs...)
}

// send delivers one message, pacing against the limiter first. A sender
// rejection for oversize falls back to fixed-size windows of the raw text;
// the marker may have pushed a borderline part over the hard limit, and
// the windows are the deterministic last resort.
func (sp *Splitter) send(ctx context.Context, destination, text string) error {
	if err := sp.pace(ctx); err != nil {
		return err
	}

	err := sp.sender.Send(ctx, destination, text)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrTooLong) {
		return err
	}

	slog.Warn("message still over transport limit, windowing",
		"destination", destination, "length", len(text))

	var errs []error
	for _, window := range FixedWindows(text, sp.maxLen) {
		if err := sp.pace(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := sp.sender.Send(ctx, destination, window); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (sp *Splitter) pace(ctx context.Context) error {
	if sp.limiter == nil {
		return nil
	}
	return sp.limiter.Wait(ctx)
}

// SplitParagraphs splits text into parts of at most maxLen characters,
// breaking only at blank-line paragraph boundaries. A single paragraph
// longer than maxLen is kept intact here; the oversize is handled at send
// time by the window fallback. The result is deterministic for fixed
// inputs.
func SplitParagraphs(text string, maxLen int) []string {
	paragraphs := strings.Split(text, "\n\n")

	var parts []string
	var current string

	for _, p := range paragraphs {
		// +2 accounts for the separator that rejoins paragraphs.
		if current != "" && len(current)+len(p)+2 > maxLen {
			parts = append(parts, strings.TrimSpace(current))
			current = p
			continue
		}
		if current != "" {
			current += "\n\n"
		}
		current += p
	}
	if current != "" {
		parts = append(parts, strings.TrimSpace(current))
	}
	return parts
}

// FixedWindows cuts s into consecutive windows of size characters, the
// last one possibly shorter.
func FixedWindows(s string, size int) []string {
	if size <= 0 || s == "" {
		return nil
	}
	windows := make([]string, 0, (len(s)+size-1)/size)
	for start := 0; start < len(s); start += size {
		end := min(start+size, len(s))
		windows = append(windows, s[start:end])
	}
	return windows
}
