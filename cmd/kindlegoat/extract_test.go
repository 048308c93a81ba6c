package main

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const savedPage = `<html><body>
<div id="kp-notebook-library">
  <div id="B00ABC" class="kp-notebook-library-each-book"><a href="#"><h2 class="kp-notebook-searchable">Dune</h2></a><p class="kp-notebook-searchable">By: Frank Herbert</p></div>
</div>
<div id="annotation-section">
  <input type="hidden" id="kp-notebook-annotations-asin" value="B00ABC">
  <h3 class="kp-notebook-metadata">Dune</h3><p class="kp-notebook-metadata">Frank Herbert</p>
  <span id="annotationHighlightHeader">Yellow highlight | Location: 1,234</span>
  <span id="highlight">Fear is the mind-killer.</span>
</div>
</body></html>`

func TestExtractPage(t *testing.T) {
	extractLibrary, extractASIN = false, ""
	out, err := extractPage(savedPage, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	book, ok := out.(types.Book)
	if !ok {
		t.Fatalf("expected types.Book, got %T", out)
	}
	if book.ASIN != "B00ABC" || len(book.Highlights) != 1 {
		t.Fatalf("unexpected book: %+v", book)
	}
	if h := book.Highlights[0]; h.Location != "1,234" || h.Color != "Yellow" || h.BookTitle != "Dune" {
		t.Errorf("unexpected highlight: %+v", h)
	}
}

func TestExtractPageLibrary(t *testing.T) {
	extractLibrary, extractASIN = true, ""
	defer func() { extractLibrary = false }()

	out, err := extractPage(savedPage, testLogger)
	if err != nil {
		t.Fatal(err)
	}
	books, ok := out.([]types.BookMeta)
	if !ok || len(books) != 1 {
		t.Fatalf("expected one book, got %#v", out)
	}
	if books[0].Author != "Frank Herbert" {
		t.Errorf("author prefix not stripped: %q", books[0].Author)
	}
}

func TestExtractPageRejectsBadASIN(t *testing.T) {
	extractLibrary, extractASIN = false, "0441013597"
	defer func() { extractASIN = "" }()

	_, err := extractPage(savedPage, testLogger)
	if !errors.Is(err, types.ErrInvalidASIN) {
		t.Errorf("expected ErrInvalidASIN, got %v", err)
	}
}
