package submit

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Submitter receives one batch of books per sync run and reports how many
// highlights it imported and how many it already had.
type Submitter interface {
	// Name returns the backend name.
	Name() string

	// Submit delivers the batch.
	Submit(ctx context.Context, books []types.Book) (types.SubmitResult, error)

	// Close releases resources held by the backend.
	Close() error
}

// New creates the submitter selected by cfg.Submit.Type. When DryRun is set
// the backend is wrapped so nothing is written.
func New(cfg *config.Config, logger *slog.Logger) (Submitter, error) {
	sc := cfg.Submit

	var (
		s   Submitter
		err error
	)
	if sc.Type == "multi" {
		backends := make([]Submitter, 0, len(sc.Targets))
		for _, target := range sc.Targets {
			b, err := newBackend(target, sc, pathFor(sc.OutputPath, target), logger)
			if err != nil {
				closeAll(backends)
				return nil, err
			}
			backends = append(backends, b)
		}
		s = NewMulti(backends, logger)
	} else {
		s, err = newBackend(sc.Type, sc, sc.OutputPath, logger)
		if err != nil {
			return nil, err
		}
	}

	if sc.DryRun {
		return NewDryRun(s, logger), nil
	}
	return s, nil
}

func newBackend(kind string, sc config.SubmitConfig, path string, logger *slog.Logger) (Submitter, error) {
	switch kind {
	case "api":
		return NewAPI(sc, logger), nil
	case "mongodb":
		return NewMongo(sc, logger)
	case "json":
		return NewJSON(path, logger)
	case "jsonl":
		return NewJSONL(path, logger)
	case "csv":
		return NewCSV(path, logger)
	default:
		return nil, fmt.Errorf("unsupported submit backend %q", kind)
	}
}

// pathFor swaps the extension of base for the file backend kind, so a multi
// target writing json and csv does not clobber one file.
func pathFor(base, kind string) string {
	switch kind {
	case "json", "jsonl", "csv":
		return strings.TrimSuffix(base, filepath.Ext(base)) + "." + kind
	default:
		return base
	}
}

func closeAll(backends []Submitter) {
	for _, b := range backends {
		_ = b.Close()
	}
}

func countHighlights(books []types.Book) int {
	n := 0
	for _, b := range books {
		n += len(b.Highlights)
	}
	return n
}

// DryRun logs the batch it would have submitted and writes nothing.
type DryRun struct {
	next   Submitter
	logger *slog.Logger
}

// NewDryRun wraps next without ever calling its Submit.
func NewDryRun(next Submitter, logger *slog.Logger) *DryRun {
	return &DryRun{next: next, logger: logger.With("component", "dry_run")}
}

func (d *DryRun) Name() string { return "dry_run(" + d.next.Name() + ")" }

func (d *DryRun) Submit(_ context.Context, books []types.Book) (types.SubmitResult, error) {
	for _, b := range books {
		d.logger.Info("would submit", "asin", b.ASIN, "title", b.Title, "highlights", len(b.Highlights))
	}
	return types.SubmitResult{
		BooksProcessed:    len(books),
		HighlightsSkipped: countHighlights(books),
	}, nil
}

func (d *DryRun) Close() error { return d.next.Close() }
