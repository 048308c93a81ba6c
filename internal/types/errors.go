package types

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrLoginRequired      = errors.New("source requires sign-in")
	ErrCancelled          = errors.New("sync cancelled by user")
	ErrNetworkUnavailable = errors.New("source is unreachable")
	ErrSyncInProgress     = errors.New("a sync is already in progress")
	ErrNoLiveContext      = errors.New("no interactive page available")
	ErrEmptyResponse      = errors.New("empty response body")
	ErrInvalidASIN        = errors.New("invalid ASIN")
	ErrPartialExtraction  = errors.New("displayed book does not match the selected one")
)

// Error codes surfaced to callers and notifications.
const (
	CodeLoginRequired      = "LOGIN_REQUIRED"
	CodeCancelled          = "CANCELLED"
	CodeNetworkUnavailable = "NETWORK_UNAVAILABLE"
	CodeSyncInProgress     = "SYNC_IN_PROGRESS"
)

// ErrorCode maps an error onto the code reported in a SyncResult.
// Errors outside the known taxonomy are reported by message.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLoginRequired):
		return CodeLoginRequired
	case errors.Is(err, ErrCancelled):
		return CodeCancelled
	case errors.Is(err, ErrSyncInProgress):
		return CodeSyncInProgress
	case errors.Is(err, ErrNetworkUnavailable):
		return CodeNetworkUnavailable
	default:
		return err.Error()
	}
}

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur during parsing.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SubmitError wraps errors returned by a submission backend.
type SubmitError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *SubmitError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("submit error (%s, status %d): %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("submit error (%s): %v", e.Backend, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the pre-submission pipeline.
type PipelineError struct {
	Stage string
	ASIN  string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q (asin=%s): %v", e.Stage, e.ASIN, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
