// Package acquire implements the ways highlight markup is obtained from the
// notebook site: driving the live page, fetching each book directly, and a
// single fetch of the landing page.
package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/fetcher"
	"github.com/IshaanNene/KindleGoat/internal/settle"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Strategy names as reported in ExtractionResult.Strategy.
const (
	NameLiveDOM = "live_dom"
	NamePerASIN = "per_asin"
	NameLegacy  = "legacy"
)

// Stopper reports whether a cooperative stop was requested.
type Stopper interface {
	Stopped() bool
}

// StopFunc adapts a function to Stopper.
type StopFunc func() bool

// Stopped implements Stopper.
func (f StopFunc) Stopped() bool { return f() }

// NeverStop is a Stopper that never requests a stop.
var NeverStop Stopper = StopFunc(func() bool { return false })

// Strategy obtains highlights for every book it can reach. A nil error with
// an empty result means the strategy ran but found nothing. ErrLoginRequired
// ends the whole sync; other errors let the caller try the next strategy.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context, stop Stopper) (*types.ExtractionResult, error)
}

// LoggedIn reports whether a navigation landed on the notebook rather than
// the sign-in page. ok is false when the response itself was unusable.
func LoggedIn(redirected, ok bool, finalURL, signInMarker string) bool {
	if redirected && strings.Contains(finalURL, signInMarker) {
		return false
	}
	return ok
}

// pause waits out the politeness delay with jitter.
func pause(ctx context.Context, base time.Duration) error {
	return settle.Sleep(ctx, fetcher.RandomDelay(base))
}

// fetchPage fetches rawURL and checks the response for a sign-in redirect.
func fetchPage(ctx context.Context, f fetcher.Fetcher, src config.SourceConfig, rawURL, tag, asin string) (*goquery.Document, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, err
	}
	req.Tag = tag
	req.ASIN = asin

	resp, err := f.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	if !LoggedIn(resp.Redirected, true, resp.FinalURL, src.SignInMarker) {
		return nil, fmt.Errorf("%w: landed on %s", types.ErrLoginRequired, resp.FinalURL)
	}
	if !resp.IsSuccess() {
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	if len(resp.Body) == 0 {
		return nil, &types.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: types.ErrEmptyResponse}
	}

	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ParseError{URL: rawURL, Err: err}
	}
	return doc, nil
}

func strategyLogger(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", "acquire", "strategy", name)
}
