package submit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// apiHighlight is the wire form of one highlight.
type apiHighlight struct {
	Content  string `json:"content"`
	Note     string `json:"note,omitempty"`
	Location string `json:"location,omitempty"`
	Color    string `json:"color,omitempty"`
}

type apiBook struct {
	ASIN       string         `json:"asin"`
	Title      string         `json:"title"`
	Author     string         `json:"author,omitempty"`
	Highlights []apiHighlight `json:"highlights"`
}

type apiRequest struct {
	Source string    `json:"source"`
	Books  []apiBook `json:"books"`
}

type apiResponse struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
}

// API posts the batch to a remote highlights service as a single request.
type API struct {
	client   *resty.Client
	endpoint string
	logger   *slog.Logger
}

// NewAPI creates the remote API backend. Server errors and transport
// failures are retried up to MaxRetries times.
func NewAPI(cfg config.SubmitConfig, logger *slog.Logger) *API {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "KindleGoat/"+config.Version).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &API{
		client:   client,
		endpoint: cfg.Endpoint,
		logger:   logger.With("component", "api_submitter"),
	}
}

func (a *API) Name() string { return "api" }

func (a *API) Submit(ctx context.Context, books []types.Book) (types.SubmitResult, error) {
	var out apiResponse
	resp, err := a.client.R().
		SetContext(ctx).
		SetBody(toAPIRequest(books)).
		SetResult(&out).
		SetError(&out).
		Post(a.endpoint)
	if err != nil {
		return types.SubmitResult{}, &types.SubmitError{Backend: a.Name(), Err: err}
	}
	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return types.SubmitResult{}, &types.SubmitError{
			Backend:    a.Name(),
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("%s", msg),
		}
	}

	a.logger.Info("batch submitted",
		"books", len(books),
		"imported", out.Imported,
		"skipped", out.Skipped,
		"duration", resp.Time(),
	)
	return types.SubmitResult{
		BooksProcessed:     len(books),
		HighlightsImported: out.Imported,
		HighlightsSkipped:  out.Skipped,
	}, nil
}

func (a *API) Close() error { return nil }

func toAPIRequest(books []types.Book) apiRequest {
	req := apiRequest{Source: "kindle", Books: make([]apiBook, len(books))}
	for i, b := range books {
		hs := make([]apiHighlight, len(b.Highlights))
		for j, h := range b.Highlights {
			hs[j] = apiHighlight{Content: h.Content, Note: h.Note, Location: h.Location, Color: h.Color}
		}
		req.Books[i] = apiBook{ASIN: b.ASIN, Title: b.Title, Author: b.Author, Highlights: hs}
	}
	return req
}
