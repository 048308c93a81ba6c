// Package library discovers the books listed in the lazy-loading library
// sidebar.
package library

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/extract"
	"github.com/IshaanNene/KindleGoat/internal/settle"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Surface is the part of a live page the enumerator drives.
type Surface interface {
	// ScrollLibrary scrolls the sidebar to its end and fires a scroll event.
	ScrollLibrary(ctx context.Context) error
	// ScrollLibraryTop returns the sidebar to its first entry.
	ScrollLibraryTop(ctx context.Context) error
	// BookCount reports how many book entries are rendered.
	BookCount(ctx context.Context) (int, error)
	// SpinnerVisible reports whether the lazy-load spinner is showing.
	SpinnerVisible(ctx context.Context) (bool, error)
	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)
}

// Enumerator lists the books of a live library page.
type Enumerator struct {
	surface   Surface
	extractor *extract.Extractor
	cfg       config.SyncConfig
	logger    *slog.Logger
}

// NewEnumerator creates a book enumerator over surface.
func NewEnumerator(surface Surface, extractor *extract.Extractor, cfg config.SyncConfig, logger *slog.Logger) *Enumerator {
	return &Enumerator{
		surface:   surface,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger.With("component", "library"),
	}
}

// ListBooks scrolls the sidebar until the number of entries stops growing,
// then returns them in sidebar order.
func (e *Enumerator) ListBooks(ctx context.Context) ([]types.BookMeta, error) {
	iterations, err := e.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	if err := e.surface.ScrollLibraryTop(ctx); err != nil {
		e.logger.Debug("scroll to top failed", "error", err)
	}

	markup, err := e.surface.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read library markup: %w", err)
	}
	books, err := e.extractor.ParseLibraryHTML(markup)
	if err != nil {
		return nil, err
	}

	e.logger.Info("library enumerated", "books", len(books), "iterations", iterations)
	return books, nil
}

// loadAll runs the scroll loop. It stops once the count has been the same
// non-zero value for StableIterations consecutive comparisons, or after
// MaxScrollIters passes.
func (e *Enumerator) loadAll(ctx context.Context) (int, error) {
	prev := -1
	same := 0

	for i := 1; i <= e.cfg.MaxScrollIters; i++ {
		if err := e.surface.ScrollLibrary(ctx); err != nil {
			e.logger.Debug("scroll failed", "iteration", i, "error", err)
		}
		if err := settle.Sleep(ctx, e.cfg.ScrollWait); err != nil {
			return i, err
		}
		if _, err := settle.Until(ctx, e.cfg.PollInterval, e.cfg.SpinnerTimeout, e.spinnerGone); err != nil {
			return i, err
		}

		count, err := e.surface.BookCount(ctx)
		if err != nil {
			e.logger.Debug("book count failed", "iteration", i, "error", err)
			continue
		}

		if count == prev && count > 0 {
			same++
		} else {
			same = 0
		}
		prev = count

		e.logger.Debug("scroll iteration", "iteration", i, "books", count, "stable", same)
		if same >= e.cfg.StableIterations {
			return i, nil
		}
	}

	e.logger.Warn("library did not stabilise", "max_iterations", e.cfg.MaxScrollIters, "books", prev)
	return e.cfg.MaxScrollIters, nil
}

func (e *Enumerator) spinnerGone(ctx context.Context) bool {
	visible, err := e.surface.SpinnerVisible(ctx)
	return err == nil && !visible
}
