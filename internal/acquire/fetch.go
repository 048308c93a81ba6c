package acquire

import (
	"context"
	"errors"
	"log/slog"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/extract"
	"github.com/IshaanNene/KindleGoat/internal/fetcher"
	"github.com/IshaanNene/KindleGoat/internal/settle"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// PerASIN fetches the library root to list books, then fetches each
// book's page directly. A retryable failure is retried once; books whose
// request still fails are skipped.
type PerASIN struct {
	fetcher   fetcher.Fetcher
	extractor *extract.Extractor
	cfg       *config.Config
	logger    *slog.Logger
}

// NewPerASIN creates the per-book fetch strategy.
func NewPerASIN(f fetcher.Fetcher, extractor *extract.Extractor, cfg *config.Config, logger *slog.Logger) *PerASIN {
	return &PerASIN{
		fetcher:   f,
		extractor: extractor,
		cfg:       cfg,
		logger:    strategyLogger(logger, NamePerASIN),
	}
}

// Name implements Strategy.
func (s *PerASIN) Name() string { return NamePerASIN }

// Acquire implements Strategy.
func (s *PerASIN) Acquire(ctx context.Context, stop Stopper) (*types.ExtractionResult, error) {
	src := s.cfg.Source
	doc, err := fetchPage(ctx, s.fetcher, src, src.LibraryURL(), types.TagLibrary, "")
	if err != nil {
		return nil, err
	}
	books := s.extractor.ParseLibrary(doc)
	s.logger.Info("library fetched", "books", len(books))

	result := &types.ExtractionResult{Strategy: NamePerASIN}
	for i := range books {
		meta := books[i]
		if stop.Stopped() {
			result.Cancelled = true
			result.Error = types.CodeCancelled
			return result, nil
		}
		if i > 0 {
			if err := pause(ctx, s.cfg.Sync.PolitenessDelay); err != nil {
				return result, err
			}
		}

		bookDoc, err := s.fetchBook(ctx, meta.ASIN)
		if err != nil {
			if errors.Is(err, types.ErrLoginRequired) || ctx.Err() != nil {
				return result, err
			}
			s.logger.Warn("skipping book", "asin", meta.ASIN, "error", err)
			continue
		}

		bm, highlights := s.extractor.Extract(bookDoc, &meta)
		bm.ASIN = meta.ASIN
		if len(highlights) == 0 {
			s.logger.Debug("no highlights", "asin", meta.ASIN)
			continue
		}
		result.Books = append(result.Books, types.NewBook(bm, highlights))
	}

	s.logger.Info("per-book fetch complete",
		"books", len(result.Books),
		"highlights", result.HighlightCount(),
	)
	return result, nil
}

// fetchBook fetches one book page, retrying once after the server's
// Retry-After (or the politeness delay) when the failure is retryable.
func (s *PerASIN) fetchBook(ctx context.Context, asin string) (*goquery.Document, error) {
	src := s.cfg.Source
	doc, err := fetchPage(ctx, s.fetcher, src, src.BookURL(asin), types.TagBook, asin)
	var fe *types.FetchError
	if err == nil || !errors.As(err, &fe) || !fe.IsRetryable() {
		return doc, err
	}

	wait := fe.RetryAfter
	if wait <= 0 {
		wait = s.cfg.Sync.PolitenessDelay
	}
	s.logger.Debug("retrying book fetch", "asin", asin, "wait", wait, "error", err)
	if err := settle.Sleep(ctx, wait); err != nil {
		return nil, err
	}
	return fetchPage(ctx, s.fetcher, src, src.BookURL(asin), types.TagBook, asin)
}

// Legacy fetches only the library root and extracts it once, attributing
// everything found to the first listed book or, without one, to whatever
// the landing panel names.
type Legacy struct {
	fetcher   fetcher.Fetcher
	extractor *extract.Extractor
	cfg       *config.Config
	logger    *slog.Logger
}

// NewLegacy creates the single-page strategy.
func NewLegacy(f fetcher.Fetcher, extractor *extract.Extractor, cfg *config.Config, logger *slog.Logger) *Legacy {
	return &Legacy{
		fetcher:   f,
		extractor: extractor,
		cfg:       cfg,
		logger:    strategyLogger(logger, NameLegacy),
	}
}

// Name implements Strategy.
func (s *Legacy) Name() string { return NameLegacy }

// Acquire implements Strategy.
func (s *Legacy) Acquire(ctx context.Context, stop Stopper) (*types.ExtractionResult, error) {
	src := s.cfg.Source
	doc, err := fetchPage(ctx, s.fetcher, src, src.LibraryURL(), types.TagLibrary, "")
	if err != nil {
		return nil, err
	}

	result := &types.ExtractionResult{Strategy: NameLegacy}
	if stop.Stopped() {
		result.Cancelled = true
		result.Error = types.CodeCancelled
		return result, nil
	}

	var fallback *types.BookMeta
	if books := s.extractor.ParseLibrary(doc); len(books) > 0 {
		fallback = &books[0]
	}

	meta, highlights := s.extractor.Extract(doc, fallback)
	if fallback != nil {
		meta = *fallback
	}
	if len(highlights) > 0 {
		result.Books = append(result.Books, types.NewBook(meta, highlights))
	}

	s.logger.Info("landing page extracted", "title", meta.Title, "highlights", len(highlights))
	return result, nil
}
