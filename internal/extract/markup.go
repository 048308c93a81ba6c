package extract

// Selectors for the notebook page markup. The site repeats the highlight,
// header and note ids once per annotation block, so they are matched as
// lists and paired by position.
const (
	SelBook          = "div.kp-notebook-library-each-book"
	SelBookTitle     = "h2.kp-notebook-searchable"
	SelBookAuthor    = "p.kp-notebook-searchable"
	SelLibrary       = "#kp-notebook-library"
	SelHighlight     = "#highlight"
	SelHeader        = "#annotationHighlightHeader"
	SelNote          = "#note"
	SelMetaTitle     = "h3.kp-notebook-metadata"
	SelMetaAuthor    = "p.kp-notebook-metadata"
	SelNoHighlights  = "#empty-annotations-pane, .kp-notebook-annotations-no-results"
	SelSpinner       = ".kp-notebook-spinner, #kp-notebook-spinner"
	SelAnnotationsID = "#kp-notebook-annotations-asin"
)

// XPath fallbacks used when the dedicated metadata pair is missing.
const (
	xpathGenericHeading = `//*[@id='annotation-section' or contains(@class,'kp-notebook-annotations-pane')]//h3`
	xpathHeadingAuthor  = `following-sibling::p[1]`
	xpathAnnotationASIN = `//input[@id='kp-notebook-annotations-asin']`
)
