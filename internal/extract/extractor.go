package extract

import (
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Extractor turns a rendered notebook document into book metadata and
// highlights. It never fails on missing optional fields.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a new field extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With("component", "extractor"),
	}
}

// Annotation is one positional triple of highlight text, header and note.
// Header and Note are empty when the page had fewer of them than highlights.
type Annotation struct {
	Text   string
	Header string
	Note   string
}

// PairAnnotations zips the three marker lists by index. The highlight list
// drives the result: trailing headers or notes without a highlight are
// ignored.
func PairAnnotations(texts, headers, notes []string) []Annotation {
	out := make([]Annotation, len(texts))
	for i, t := range texts {
		out[i].Text = t
		if i < len(headers) {
			out[i].Header = headers[i]
		}
		if i < len(notes) {
			out[i].Note = notes[i]
		}
	}
	return out
}

// Extract reads the currently displayed book from doc. fallback supplies
// metadata (usually from the library list) for pages whose heading is
// missing or generic; it may be nil.
func (e *Extractor) Extract(doc *goquery.Document, fallback *types.BookMeta) (types.BookMeta, []types.Highlight) {
	meta := e.bookMeta(doc, fallback)
	highlights := e.Highlights(doc)

	e.logger.Debug("extracted book",
		"asin", meta.ASIN,
		"title", meta.Title,
		"highlights", len(highlights),
	)
	return meta, highlights
}

// ExtractHTML parses markup and runs Extract on it.
func (e *Extractor) ExtractHTML(markup string, fallback *types.BookMeta) (types.BookMeta, []types.Highlight, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return types.BookMeta{}, nil, &types.ParseError{Selector: SelHighlight, Err: err}
	}
	meta, highlights := e.Extract(doc, fallback)
	return meta, highlights, nil
}

// Highlights returns the non-empty highlights on the page in document order.
func (e *Extractor) Highlights(doc *goquery.Document) []types.Highlight {
	pairs := PairAnnotations(
		texts(doc.Find(SelHighlight)),
		texts(doc.Find(SelHeader)),
		texts(doc.Find(SelNote)),
	)

	highlights := make([]types.Highlight, 0, len(pairs))
	for _, a := range pairs {
		content := CleanText(a.Text)
		if content == "" {
			continue
		}
		highlights = append(highlights, types.Highlight{
			Content:  content,
			Note:     CleanText(a.Note),
			Location: ParseLocation(a.Header),
			Color:    ParseColor(a.Header),
		})
	}
	if dropped := len(pairs) - len(highlights); dropped > 0 {
		e.logger.Debug("dropped empty highlights", "count", dropped)
	}
	return highlights
}

// HasNoHighlightsMarker reports whether the page shows the explicit
// zero-annotations marker.
func HasNoHighlightsMarker(doc *goquery.Document) bool {
	return doc.Find(SelNoHighlights).Length() > 0
}

// bookMeta resolves title and author from, in order: the dedicated metadata
// pair, a generic heading in the annotations pane, and the fallback. The
// first source with a non-generic title wins.
func (e *Extractor) bookMeta(doc *goquery.Document, fallback *types.BookMeta) types.BookMeta {
	var meta types.BookMeta

	if title := CleanText(doc.Find(SelMetaTitle).First().Text()); !IsGenericTitle(title) {
		meta.Title = title
		meta.Author = CleanAuthor(doc.Find(SelMetaAuthor).First().Text())
	} else if title, author := genericHeading(doc); !IsGenericTitle(title) {
		meta.Title = title
		meta.Author = author
	} else if fallback != nil && !IsGenericTitle(fallback.Title) {
		meta.Title = fallback.Title
		meta.Author = fallback.Author
	}

	meta.ASIN = annotationASIN(doc)
	if fallback != nil {
		if meta.ASIN == "" {
			meta.ASIN = fallback.ASIN
		}
		if meta.Author == "" && meta.ASIN == fallback.ASIN {
			meta.Author = fallback.Author
		}
	}
	if meta.Title == "" {
		meta.Title = types.UnknownTitle
	}
	return meta
}

// genericHeading finds the first heading inside the annotations pane and
// the paragraph that follows it.
func genericHeading(doc *goquery.Document) (string, string) {
	root := rootNode(doc)
	if root == nil {
		return "", ""
	}
	heading, err := htmlquery.Query(root, xpathGenericHeading)
	if err != nil || heading == nil {
		return "", ""
	}
	title := CleanText(htmlquery.InnerText(heading))

	var author string
	if p, err := htmlquery.Query(heading, xpathHeadingAuthor); err == nil && p != nil {
		author = CleanAuthor(htmlquery.InnerText(p))
	}
	return title, author
}

// annotationASIN reads the hidden input naming the displayed book.
func annotationASIN(doc *goquery.Document) string {
	root := rootNode(doc)
	if root == nil {
		return ""
	}
	input, err := htmlquery.Query(root, xpathAnnotationASIN)
	if err != nil || input == nil {
		return ""
	}
	asin := strings.TrimSpace(htmlquery.SelectAttr(input, "value"))
	if !types.ValidASIN(asin) {
		return ""
	}
	return asin
}

func rootNode(doc *goquery.Document) *html.Node {
	if doc == nil || len(doc.Nodes) == 0 {
		return nil
	}
	return doc.Nodes[0]
}

func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return out
}
