package types

import "strings"

// UnknownTitle is used when no book title could be extracted.
const UnknownTitle = "Unknown Title"

// Highlight is one captured excerpt from a book.
type Highlight struct {
	BookTitle  string `json:"book_title"`
	BookAuthor string `json:"book_author,omitempty"`

	// Content is never empty.
	Content string `json:"content"`

	Note string `json:"note,omitempty"`

	// Location is a digit group or a range ("1,234-1,240"); empty when absent.
	Location string `json:"location,omitempty"`

	// Color is the leading word of the annotation header ("Yellow").
	Color string `json:"color,omitempty"`
}

// BookMeta identifies a book without its highlights.
type BookMeta struct {
	ASIN   string `json:"asin"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
}

// Book is a source-side item owning zero or more highlights in document order.
type Book struct {
	BookMeta
	Highlights []Highlight `json:"highlights"`
}

// NewBook builds a Book from metadata, stamping the book title and author
// onto every highlight.
func NewBook(meta BookMeta, highlights []Highlight) Book {
	if meta.Title == "" {
		meta.Title = UnknownTitle
	}
	hs := make([]Highlight, len(highlights))
	for i, h := range highlights {
		h.BookTitle = meta.Title
		h.BookAuthor = meta.Author
		hs[i] = h
	}
	return Book{BookMeta: meta, Highlights: hs}
}

// ValidASIN reports whether s looks like a Kindle content identifier.
func ValidASIN(s string) bool {
	return len(s) > 1 && strings.HasPrefix(s, "B")
}

// ExtractionResult is produced once per acquisition attempt.
type ExtractionResult struct {
	Strategy  string `json:"strategy"`
	Books     []Book `json:"books"`
	Cancelled bool   `json:"cancelled"`

	// Error holds a reason code when the attempt ended early.
	Error string `json:"error,omitempty"`
}

// HighlightCount returns the number of highlights across all books.
func (r *ExtractionResult) HighlightCount() int {
	n := 0
	for _, b := range r.Books {
		n += len(b.Highlights)
	}
	return n
}

// Empty reports whether the result carries no highlights at all.
func (r *ExtractionResult) Empty() bool {
	return r == nil || r.HighlightCount() == 0
}
