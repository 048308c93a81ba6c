package acquire

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/extract"
	"github.com/IshaanNene/KindleGoat/internal/library"
	"github.com/IshaanNene/KindleGoat/internal/settle"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// LivePage is an interactive notebook page.
type LivePage interface {
	library.Surface
	settle.Probe

	// Open navigates to the library root.
	Open(ctx context.Context) (finalURL string, redirected bool, err error)
	// ActivateBook selects a book by clicking its link.
	ActivateBook(ctx context.Context, asin string) error
}

// PageSource returns the live page, or an error wrapping ErrNoLiveContext
// when none can be provided.
type PageSource func(ctx context.Context) (LivePage, error)

// LiveDOM drives the displayed page: it enumerates books, selects each one
// in turn and extracts the rendered highlight list once it settles.
type LiveDOM struct {
	source    PageSource
	extractor *extract.Extractor
	cfg       *config.Config
	logger    *slog.Logger
}

// NewLiveDOM creates the live-page strategy.
func NewLiveDOM(source PageSource, extractor *extract.Extractor, cfg *config.Config, logger *slog.Logger) *LiveDOM {
	return &LiveDOM{
		source:    source,
		extractor: extractor,
		cfg:       cfg,
		logger:    strategyLogger(logger, NameLiveDOM),
	}
}

// Name implements Strategy.
func (s *LiveDOM) Name() string { return NameLiveDOM }

// Acquire implements Strategy. The stop flag is checked once per book; on a
// stop the books collected so far are returned with Cancelled set.
func (s *LiveDOM) Acquire(ctx context.Context, stop Stopper) (*types.ExtractionResult, error) {
	if s.source == nil {
		return nil, types.ErrNoLiveContext
	}
	page, err := s.source(ctx)
	if err != nil {
		return nil, err
	}

	finalURL, redirected, err := page.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open library: %w", err)
	}
	if !LoggedIn(redirected, true, finalURL, s.cfg.Source.SignInMarker) {
		return nil, fmt.Errorf("%w: landed on %s", types.ErrLoginRequired, finalURL)
	}

	books, err := library.NewEnumerator(page, s.extractor, s.cfg.Sync, s.logger).ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate books: %w", err)
	}

	detector := settle.NewDetector(page, s.cfg.Sync.PollInterval, s.cfg.Sync.SignatureLength, s.logger)
	result := &types.ExtractionResult{Strategy: NameLiveDOM}

	for i := range books {
		meta := books[i]
		if stop.Stopped() {
			s.logger.Info("stop requested", "collected", len(result.Books), "remaining", len(books)-i)
			result.Cancelled = true
			result.Error = types.CodeCancelled
			return result, nil
		}

		book, err := s.readBook(ctx, page, detector, meta)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			s.logger.Warn("skipping book", "asin", meta.ASIN, "error", err)
			continue
		}
		if book != nil {
			result.Books = append(result.Books, *book)
		}

		if i < len(books)-1 {
			if err := pause(ctx, s.cfg.Sync.PolitenessDelay); err != nil {
				return result, err
			}
		}
	}

	s.logger.Info("live page walk complete",
		"books", len(result.Books),
		"highlights", result.HighlightCount(),
	)
	return result, nil
}

// readBook selects one book and extracts what the page shows once it has
// settled, or after the retries run out. It returns nil for a book without
// highlights.
func (s *LiveDOM) readBook(ctx context.Context, page LivePage, detector *settle.Detector, meta types.BookMeta) (*types.Book, error) {
	prev, err := detector.Current(ctx)
	if err != nil {
		s.logger.Debug("pre-click signature unavailable", "asin", meta.ASIN, "error", err)
	}

	if err := page.ActivateBook(ctx, meta.ASIN); err != nil {
		return nil, err
	}
	changed, err := detector.WaitForChange(ctx, prev, s.cfg.Sync.SettleTimeout)
	if err != nil {
		return nil, err
	}

	for attempt := 1; !changed && attempt <= s.cfg.Sync.SettleRetries; attempt++ {
		s.logger.Debug("settle timed out, re-activating", "asin", meta.ASIN, "attempt", attempt)
		if err := page.ActivateBook(ctx, meta.ASIN); err != nil {
			return nil, err
		}
		if changed, err = detector.WaitForChange(ctx, prev, s.cfg.Sync.SettleTimeout); err != nil {
			return nil, err
		}
	}
	if !changed {
		s.logger.Warn("page did not settle, extracting what is shown", "asin", meta.ASIN)
	}

	markup, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	bm, highlights, err := s.extractor.ExtractHTML(markup, &meta)
	if err != nil {
		return nil, err
	}
	if bm.ASIN != meta.ASIN {
		return nil, fmt.Errorf("%w: pane shows %s", types.ErrPartialExtraction, bm.ASIN)
	}
	if len(highlights) == 0 {
		return nil, nil
	}
	book := types.NewBook(bm, highlights)
	return &book, nil
}
