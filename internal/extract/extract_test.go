package extract

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const bookHTML = `<!DOCTYPE html>
<html>
<body>
  <div id="annotation-section">
    <input type="hidden" id="kp-notebook-annotations-asin" value="B00DUNE">
    <h3 class="a-spacing-top-small kp-notebook-metadata">Dune</h3>
    <p class="a-spacing-none kp-notebook-metadata">Frank Herbert</p>
    <div class="a-row">
      <span id="annotationHighlightHeader">Yellow highlight | Location:&nbsp;1,234-1,240</span>
      <div class="kp-notebook-highlight"><span id="highlight">Fear is the   mind-killer.</span></div>
      <div id="note-row"><span id="note">Litany</span></div>
    </div>
    <div class="a-row">
      <span id="annotationHighlightHeader">Blue highlight | Page: 12</span>
      <div class="kp-notebook-highlight"><span id="highlight">I must not fear.</span></div>
      <div id="note-row"><span id="note"></span></div>
    </div>
    <div class="a-row">
      <span id="annotationHighlightHeader">Orange highlight | Location: 99</span>
      <div class="kp-notebook-highlight"><span id="highlight">   </span></div>
    </div>
  </div>
</body>
</html>`

func TestExtractBook(t *testing.T) {
	e := NewExtractor(testLogger)
	meta, hs, err := e.ExtractHTML(bookHTML, nil)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}

	if meta.ASIN != "B00DUNE" {
		t.Errorf("expected ASIN B00DUNE, got %q", meta.ASIN)
	}
	if meta.Title != "Dune" || meta.Author != "Frank Herbert" {
		t.Errorf("unexpected meta %+v", meta)
	}

	// the whitespace-only highlight is discarded
	if len(hs) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(hs))
	}

	first := hs[0]
	if first.Content != "Fear is the mind-killer." {
		t.Errorf("content not normalised: %q", first.Content)
	}
	if first.Location != "1,234-1,240" {
		t.Errorf("expected location 1,234-1,240, got %q", first.Location)
	}
	if first.Color != "Yellow" {
		t.Errorf("expected color Yellow, got %q", first.Color)
	}
	if first.Note != "Litany" {
		t.Errorf("expected note Litany, got %q", first.Note)
	}

	second := hs[1]
	if second.Location != "12" || second.Color != "Blue" || second.Note != "" {
		t.Errorf("unexpected second highlight %+v", second)
	}
}

func TestExtractMismatchedMarkerCounts(t *testing.T) {
	markup := `<div>
	  <span id="annotationHighlightHeader">Pink highlight | Location: 5</span>
	  <span id="highlight">one</span>
	  <span id="highlight">two</span>
	  <span id="highlight">three</span>
	  <span id="note">only note</span>
	</div>`

	e := NewExtractor(testLogger)
	_, hs, err := e.ExtractHTML(markup, nil)
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if len(hs) != 3 {
		t.Fatalf("expected one highlight per highlight marker, got %d", len(hs))
	}
	if hs[0].Color != "Pink" || hs[0].Note != "only note" {
		t.Errorf("first highlight should pair with first header and note: %+v", hs[0])
	}
	for _, h := range hs[1:] {
		if h.Location != "" || h.Color != "" || h.Note != "" {
			t.Errorf("unpaired highlight should carry no header fields: %+v", h)
		}
	}
}

func TestExtractMetadataFallbacks(t *testing.T) {
	e := NewExtractor(testLogger)

	t.Run("generic heading", func(t *testing.T) {
		markup := `<div class="kp-notebook-annotations-pane">
		  <h3>The Left Hand of Darkness</h3>
		  <p>By: Ursula K. Le Guin</p>
		  <span id="highlight">Light is the left hand of darkness</span>
		</div>`
		meta, _, _ := e.ExtractHTML(markup, nil)
		if meta.Title != "The Left Hand of Darkness" {
			t.Errorf("expected heading title, got %q", meta.Title)
		}
		if meta.Author != "Ursula K. Le Guin" {
			t.Errorf("expected stripped author, got %q", meta.Author)
		}
	})

	t.Run("generic title uses fallback", func(t *testing.T) {
		markup := `<h3 class="kp-notebook-metadata">Kindle</h3><span id="highlight">x</span>`
		fb := &types.BookMeta{ASIN: "B001", Title: "Solaris", Author: "Stanislaw Lem"}
		meta, hs, _ := e.ExtractHTML(markup, fb)
		if meta.Title != "Solaris" || meta.Author != "Stanislaw Lem" || meta.ASIN != "B001" {
			t.Errorf("expected fallback meta, got %+v", meta)
		}
		if len(hs) != 1 {
			t.Errorf("expected 1 highlight, got %d", len(hs))
		}
	})

	t.Run("nothing resolves", func(t *testing.T) {
		meta, _, _ := e.ExtractHTML(`<p>empty</p>`, nil)
		if meta.Title != types.UnknownTitle {
			t.Errorf("expected %q, got %q", types.UnknownTitle, meta.Title)
		}
	})
}

func TestParseLibrary(t *testing.T) {
	markup := `<div id="kp-notebook-library">
	  <div id="B0001" class="a-row kp-notebook-library-each-book">
	    <h2 class="kp-notebook-searchable">Anathem</h2>
	    <p class="kp-notebook-searchable">By: Neal Stephenson</p>
	  </div>
	  <div id="" class="a-row kp-notebook-library-each-book">
	    <h2 class="kp-notebook-searchable">No ASIN</h2>
	  </div>
	  <div id="B0002" class="a-row kp-notebook-library-each-book">
	    <h2 class="kp-notebook-searchable"></h2>
	  </div>
	  <div id="B0001" class="a-row kp-notebook-library-each-book">
	    <h2 class="kp-notebook-searchable">Anathem</h2>
	  </div>
	</div>`

	e := NewExtractor(testLogger)
	books, err := e.ParseLibraryHTML(markup)
	if err != nil {
		t.Fatalf("ParseLibraryHTML: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("expected 3 books (duplicates kept), got %d", len(books))
	}
	if books[0].Author != "Neal Stephenson" {
		t.Errorf("expected author without prefix, got %q", books[0].Author)
	}
	if books[1].Title != types.UnknownTitle {
		t.Errorf("expected default title, got %q", books[1].Title)
	}
	if books[2].ASIN != "B0001" {
		t.Errorf("expected duplicate entry kept in order, got %q", books[2].ASIN)
	}
}

func TestHasNoHighlightsMarker(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<div id="empty-annotations-pane">No highlights</div>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !HasNoHighlightsMarker(doc) {
		t.Error("expected the zero-annotations marker to be detected")
	}
	if hs := NewExtractor(testLogger).Highlights(doc); len(hs) != 0 {
		t.Errorf("expected no highlights, got %d", len(hs))
	}

	doc, _ = goquery.NewDocumentFromReader(strings.NewReader(bookHTML))
	if HasNoHighlightsMarker(doc) {
		t.Error("book page should not carry the marker")
	}
}
