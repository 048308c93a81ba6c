package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

// ParseLibrary lists the books in the library pane in document order.
// Entries without a valid ASIN are skipped; duplicates are kept.
func (e *Extractor) ParseLibrary(doc *goquery.Document) []types.BookMeta {
	var books []types.BookMeta
	skipped := 0

	doc.Find(SelBook).Each(func(_ int, s *goquery.Selection) {
		asin := strings.TrimSpace(s.AttrOr("id", ""))
		if !types.ValidASIN(asin) {
			skipped++
			return
		}

		title := CleanText(s.Find(SelBookTitle).First().Text())
		if title == "" {
			title = types.UnknownTitle
		}
		books = append(books, types.BookMeta{
			ASIN:   asin,
			Title:  title,
			Author: CleanAuthor(s.Find(SelBookAuthor).First().Text()),
		})
	})

	if skipped > 0 {
		e.logger.Debug("skipped library entries without ASIN", "count", skipped)
	}
	return books
}

// ParseLibraryHTML parses markup and runs ParseLibrary on it.
func (e *Extractor) ParseLibraryHTML(markup string) ([]types.BookMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &types.ParseError{Selector: SelBook, Err: err}
	}
	return e.ParseLibrary(doc), nil
}
