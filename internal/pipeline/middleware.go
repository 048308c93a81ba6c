package pipeline

import (
	"regexp"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

// StampMiddleware defaults the title and copies the book's title and
// author onto each of its highlights.
type StampMiddleware struct{}

func (m *StampMiddleware) Name() string { return "stamp" }

func (m *StampMiddleware) Process(book *types.Book) (*types.Book, error) {
	stamped := types.NewBook(book.BookMeta, book.Highlights)
	return &stamped, nil
}

// LocationValidateMiddleware clears location values that are not a digit
// group or a range of digit groups.
type LocationValidateMiddleware struct {
	pattern *regexp.Regexp
}

func NewLocationValidateMiddleware() *LocationValidateMiddleware {
	return &LocationValidateMiddleware{
		pattern: regexp.MustCompile(`^\d+(,\d+)*(-\d+(,\d+)*)?$`),
	}
}

func (m *LocationValidateMiddleware) Name() string { return "location_validate" }

func (m *LocationValidateMiddleware) Process(book *types.Book) (*types.Book, error) {
	for i := range book.Highlights {
		if loc := book.Highlights[i].Location; loc != "" && !m.pattern.MatchString(loc) {
			book.Highlights[i].Location = ""
		}
	}
	return book, nil
}

// DropEmptyMiddleware removes highlights without content and drops books
// left with none.
type DropEmptyMiddleware struct{}

func (m *DropEmptyMiddleware) Name() string { return "drop_empty" }

func (m *DropEmptyMiddleware) Process(book *types.Book) (*types.Book, error) {
	kept := book.Highlights[:0]
	for _, h := range book.Highlights {
		if h.Content != "" {
			kept = append(kept, h)
		}
	}
	book.Highlights = kept
	if len(kept) == 0 {
		return nil, nil
	}
	return book, nil
}
