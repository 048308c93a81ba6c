package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Middleware processes a book and returns the (possibly modified) book.
// Return nil to drop the book from the batch.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a book. Return nil to drop the book.
	Process(book *types.Book) (*types.Book, error)
}

// Pipeline chains middleware processors together. It runs between
// acquisition and submission.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default returns the pipeline applied before every submission. It does
// not deduplicate; repeated highlights are the submission backend's call.
func Default(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&StampMiddleware{})
	p.Use(NewLocationValidateMiddleware())
	p.Use(&DropEmptyMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the book through all middleware in order.
func (p *Pipeline) Process(book *types.Book) (*types.Book, error) {
	current := book

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				ASIN:  current.ASIN,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("book dropped", "stage", mw.Name(), "asin", book.ASIN)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Run processes every book, keeping enumeration order and omitting
// dropped books.
func (p *Pipeline) Run(books []types.Book) ([]types.Book, error) {
	out := make([]types.Book, 0, len(books))
	for i := range books {
		book := books[i]
		result, err := p.Process(&book)
		if err != nil {
			return nil, err
		}
		if result != nil {
			out = append(out, *result)
		}
	}
	return out, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
