package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/extract"
	"github.com/IshaanNene/KindleGoat/internal/settle"
)

const (
	jsScrollLibrary = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.scrollTop = el.scrollHeight;
	el.dispatchEvent(new Event('scroll'));
	return true;
}`
	jsScrollLibraryTop = `(sel) => {
	const el = document.querySelector(sel);
	if (el) el.scrollTop = 0;
	return !!el;
}`
	jsCount   = `(sel) => document.querySelectorAll(sel).length`
	jsVisible = `(sel) => Array.from(document.querySelectorAll(sel)).some(el => el.offsetParent !== null)`
	jsClick   = `() => this.click()`
)

// LivePage is the interactive notebook page. All calls are bound to the
// caller's context.
type LivePage struct {
	page   *rod.Page
	cfg    *config.Config
	logger *slog.Logger
}

func newLivePage(page *rod.Page, cfg *config.Config, logger *slog.Logger) *LivePage {
	return &LivePage{
		page:   page,
		cfg:    cfg,
		logger: logger.With("component", "live_page"),
	}
}

// Open navigates to the library root and reports where the page ended up.
func (p *LivePage) Open(ctx context.Context) (finalURL string, redirected bool, err error) {
	target := p.cfg.Source.LibraryURL()
	page, cancel := p.navPage(ctx)
	defer cancel()

	if err := page.Navigate(target); err != nil {
		return "", false, fmt.Errorf("navigate %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		p.logger.Warn("page load wait failed, continuing", "url", target, "error", err)
	}

	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", false, fmt.Errorf("page info: %w", err)
	}
	finalURL = info.URL
	redirected = strings.TrimRight(finalURL, "/") != strings.TrimRight(target, "/")

	p.logger.Debug("library opened", "url", target, "final_url", finalURL, "redirected", redirected)
	return finalURL, redirected, nil
}

// navPage binds the page to ctx with the navigation timeout. The caller
// must call cancel once navigation is done.
func (p *LivePage) navPage(ctx context.Context) (*rod.Page, context.CancelFunc) {
	navCtx, cancel := context.WithTimeout(ctx, p.cfg.Browser.NavTimeout)
	return p.page.Context(navCtx), cancel
}

// ActivateBook scrolls the book's entry into view and clicks its link. The
// page only reacts to activation of the link element, not its container.
func (p *LivePage) ActivateBook(ctx context.Context, asin string) error {
	sel := fmt.Sprintf(`[id=%q] a`, asin)
	el, err := p.page.Context(ctx).Timeout(p.cfg.Browser.NavTimeout).Element(sel)
	if err != nil {
		return fmt.Errorf("find book %s: %w", asin, err)
	}
	el = el.CancelTimeout()

	if err := el.ScrollIntoView(); err != nil {
		p.logger.Debug("scroll into view failed", "asin", asin, "error", err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		// covered or zero-size links still accept a scripted click
		if _, evalErr := el.Eval(jsClick); evalErr != nil {
			return fmt.Errorf("activate book %s: %w", asin, err)
		}
	}
	return nil
}

// ScrollLibrary implements library.Surface.
func (p *LivePage) ScrollLibrary(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(jsScrollLibrary, extract.SelLibrary)
	return err
}

// ScrollLibraryTop implements library.Surface.
func (p *LivePage) ScrollLibraryTop(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(jsScrollLibraryTop, extract.SelLibrary)
	return err
}

// BookCount implements library.Surface.
func (p *LivePage) BookCount(ctx context.Context) (int, error) {
	res, err := p.page.Context(ctx).Eval(jsCount, extract.SelBook)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

// SpinnerVisible implements library.Surface.
func (p *LivePage) SpinnerVisible(ctx context.Context) (bool, error) {
	res, err := p.page.Context(ctx).Eval(jsVisible, extract.SelSpinner)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// HTML returns the rendered document.
func (p *LivePage) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// Signature implements settle.Probe.
func (p *LivePage) Signature(ctx context.Context, prefixLen int) (settle.Signature, error) {
	markup, err := p.HTML(ctx)
	if err != nil {
		return settle.Signature{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return settle.Signature{}, err
	}
	return settle.SignatureOf(doc, prefixLen), nil
}
