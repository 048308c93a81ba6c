package submit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

// record is one flattened highlight as written by the file backends.
type record struct {
	ASIN       string `json:"asin"`
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author,omitempty"`
	Content    string `json:"content"`
	Note       string `json:"note,omitempty"`
	Location   string `json:"location,omitempty"`
	Color      string `json:"color,omitempty"`
}

var csvHeader = []string{"asin", "book_title", "book_author", "content", "note", "location", "color"}

func (r record) row() []string {
	return []string{r.ASIN, r.BookTitle, r.BookAuthor, r.Content, r.Note, r.Location, r.Color}
}

// ledger remembers which highlights a file backend has written during this
// process, so a repeated batch is reported as skipped rather than imported.
type ledger struct {
	seen map[[3]string]struct{}
}

func newLedger() *ledger {
	return &ledger{seen: make(map[[3]string]struct{})}
}

// fresh returns the records not written before and marks them written.
func (l *ledger) fresh(books []types.Book) (out []record, skipped int) {
	for _, b := range books {
		for _, h := range b.Highlights {
			key := [3]string{b.ASIN, h.Content, h.Location}
			if _, ok := l.seen[key]; ok {
				skipped++
				continue
			}
			l.seen[key] = struct{}{}
			out = append(out, record{
				ASIN:       b.ASIN,
				BookTitle:  h.BookTitle,
				BookAuthor: h.BookAuthor,
				Content:    h.Content,
				Note:       h.Note,
				Location:   h.Location,
				Color:      h.Color,
			})
		}
	}
	return out, skipped
}

func createOutput(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

// --- JSON ---

// JSON keeps every highlight written so far and rewrites the file as one
// indented array on each batch.
type JSON struct {
	path    string
	records []record
	ledger  *ledger
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewJSON creates a JSON file backend.
func NewJSON(outputPath string, logger *slog.Logger) (*JSON, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JSON{
		path:    outputPath,
		records: make([]record, 0),
		ledger:  newLedger(),
		logger:  logger.With("component", "json_submitter"),
	}, nil
}

func (s *JSON) Name() string { return "json" }

func (s *JSON) Submit(_ context.Context, books []types.Book) (types.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, skipped := s.ledger.fresh(books)
	s.records = append(s.records, fresh...)
	if err := s.flush(); err != nil {
		return types.SubmitResult{}, &types.SubmitError{Backend: s.Name(), Err: err}
	}

	s.logger.Info("JSON written", "path", s.path, "new", len(fresh), "total", len(s.records))
	return types.SubmitResult{
		BooksProcessed:     len(books),
		HighlightsImported: len(fresh),
		HighlightsSkipped:  skipped,
	}, nil
}

func (s *JSON) flush() error {
	f, err := createOutput(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.records); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}

func (s *JSON) Close() error { return nil }

// --- JSONL ---

// JSONL streams one highlight per line.
type JSONL struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	ledger *ledger
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONL creates a JSONL file backend.
func NewJSONL(outputPath string, logger *slog.Logger) (*JSONL, error) {
	f, err := createOutput(outputPath)
	if err != nil {
		return nil, err
	}
	return &JSONL{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		ledger: newLedger(),
		logger: logger.With("component", "jsonl_submitter"),
	}, nil
}

func (s *JSONL) Name() string { return "jsonl" }

func (s *JSONL) Submit(_ context.Context, books []types.Book) (types.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, skipped := s.ledger.fresh(books)
	for _, r := range fresh {
		if err := s.enc.Encode(r); err != nil {
			return types.SubmitResult{}, &types.SubmitError{Backend: s.Name(), Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}
	return types.SubmitResult{
		BooksProcessed:     len(books),
		HighlightsImported: len(fresh),
		HighlightsSkipped:  skipped,
	}, nil
}

func (s *JSONL) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "highlights", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// --- CSV ---

// CSV writes one row per highlight under a fixed header.
type CSV struct {
	path   string
	file   *os.File
	writer *csv.Writer
	ledger *ledger
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSV creates a CSV file backend and writes the header row.
func NewCSV(outputPath string, logger *slog.Logger) (*CSV, error) {
	f, err := createOutput(outputPath)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	w.Flush()

	return &CSV{
		path:   outputPath,
		file:   f,
		writer: w,
		ledger: newLedger(),
		logger: logger.With("component", "csv_submitter"),
	}, nil
}

func (s *CSV) Name() string { return "csv" }

func (s *CSV) Submit(_ context.Context, books []types.Book) (types.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh, skipped := s.ledger.fresh(books)
	for _, r := range fresh {
		if err := s.writer.Write(r.row()); err != nil {
			return types.SubmitResult{}, &types.SubmitError{Backend: s.Name(), Err: fmt.Errorf("write CSV row: %w", err)}
		}
		s.count++
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return types.SubmitResult{}, &types.SubmitError{Backend: s.Name(), Err: err}
	}
	return types.SubmitResult{
		BooksProcessed:     len(books),
		HighlightsImported: len(fresh),
		HighlightsSkipped:  skipped,
	}, nil
}

func (s *CSV) Close() error {
	s.logger.Info("CSV written", "path", s.path, "highlights", s.count)
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
