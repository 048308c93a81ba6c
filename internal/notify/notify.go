package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Notifier delivers the single terminal notification of a run.
type Notifier interface {
	Notify(ctx context.Context, n types.Notification) error
}

// Message renders the user-facing text for a notification.
func Message(n types.Notification) string {
	switch n.Status {
	case types.StatusSuccess:
		msg := fmt.Sprintf("Synced %d highlights from %d books", n.HighlightsImported, n.BooksProcessed)
		if n.HighlightsSkipped > 0 {
			msg += fmt.Sprintf(" (%d already imported)", n.HighlightsSkipped)
		}
		return msg
	case types.StatusNoHighlights:
		return "No highlights found"
	case types.StatusLoginRequired:
		return "Please sign in to your Kindle notebook and try again"
	case types.StatusCancelled:
		return "Sync cancelled"
	default:
		if n.Message != "" {
			return "Sync failed: " + n.Message
		}
		return "Sync failed"
	}
}

// Log writes notifications to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a logger-backed notifier.
func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger.With("component", "notify")}
}

func (l *Log) Notify(ctx context.Context, n types.Notification) error {
	level := slog.LevelInfo
	if n.Status == types.StatusError || n.Status == types.StatusLoginRequired {
		level = slog.LevelWarn
	}
	l.logger.Log(ctx, level, Message(n),
		"run_id", n.RunID,
		"status", n.Status,
		"books", n.BooksProcessed,
		"imported", n.HighlightsImported,
		"skipped", n.HighlightsSkipped,
	)
	return nil
}

// Console prints one line per notification.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a notifier writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Notify(_ context.Context, n types.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "[%s] %s\n", n.Status, Message(n))
	return err
}

// Multi delivers to every notifier and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n types.Notification) error {
	var firstErr error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
