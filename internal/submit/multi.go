package submit

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Multi fans a batch out to several backends. The first backend is the
// primary: its counts are reported and its failure fails the submission.
// Failures of the others are logged only.
type Multi struct {
	backends []Submitter
	logger   *slog.Logger
}

// NewMulti creates a fan-out submitter.
func NewMulti(backends []Submitter, logger *slog.Logger) *Multi {
	return &Multi{
		backends: backends,
		logger:   logger.With("component", "multi_submitter"),
	}
}

func (m *Multi) Name() string { return "multi" }

func (m *Multi) Submit(ctx context.Context, books []types.Book) (types.SubmitResult, error) {
	var (
		primary    types.SubmitResult
		primaryErr error
	)
	for i, backend := range m.backends {
		res, err := backend.Submit(ctx, books)
		if err != nil {
			m.logger.Error("backend submit failed", "backend", backend.Name(), "error", err)
		}
		if i == 0 {
			primary, primaryErr = res, err
		}
	}
	return primary, primaryErr
}

func (m *Multi) Close() error {
	var firstErr error
	for _, backend := range m.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
