// Package browser drives the interactive notebook page through Chrome.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/fetcher"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Session owns a Chrome instance and the single page used for syncing.
type Session struct {
	cfg     *config.Config
	browser *rod.Browser
	page    *rod.Page
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewSession launches Chrome, or connects to an existing one when
// browser.control_url is set. A persistent user data dir keeps the
// sign-in session between runs.
func NewSession(cfg *config.Config, logger *slog.Logger) (*Session, error) {
	if !cfg.Browser.Enabled {
		return nil, types.ErrNoLiveContext
	}

	s := &Session{
		cfg:    cfg,
		logger: logger.With("component", "browser"),
	}

	controlURL := cfg.Browser.ControlURL
	if controlURL == "" {
		u, err := s.launch()
		if err != nil {
			return nil, fmt.Errorf("%w: launch browser: %v", types.ErrNoLiveContext, err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: connect browser: %v", types.ErrNoLiveContext, err)
	}
	s.browser = browser

	s.logger.Info("browser ready",
		"headless", cfg.Browser.Headless,
		"stealth", cfg.Browser.Stealth,
		"remote", cfg.Browser.ControlURL != "",
	)
	return s, nil
}

// launch starts a Chromium instance with appropriate flags.
func (s *Session) launch() (string, error) {
	bc := s.cfg.Browser
	l := launcher.New().
		Headless(bc.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if bc.Bin != "" {
		l = l.Bin(bc.Bin)
	}
	if bc.UserDataDir != "" {
		l = l.UserDataDir(bc.UserDataDir)
	}
	if bc.WindowSize != "" {
		l = l.Set("window-size", bc.WindowSize)
	}
	if s.cfg.Proxy.Enabled && len(s.cfg.Proxy.URLs) > 0 {
		l = l.Proxy(s.cfg.Proxy.URLs[0])
	}

	return l.Launch()
}

// Page opens (once) the live notebook page, importing session cookies when
// a cookies file is configured.
func (s *Session) Page(ctx context.Context) (*LivePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page == nil {
		page, err := s.newPage()
		if err != nil {
			return nil, fmt.Errorf("%w: open page: %v", types.ErrNoLiveContext, err)
		}
		if s.cfg.Fetcher.CookiesFile != "" {
			cookies, err := fetcher.LoadCookies(s.cfg.Fetcher.CookiesFile)
			if err != nil {
				return nil, err
			}
			if err := page.SetCookies(cookieParams(cookies, s.cfg.Source.BaseURL())); err != nil {
				s.logger.Warn("failed to set cookies", "error", err)
			}
		}
		s.page = page
	}

	return newLivePage(s.page, s.cfg, s.logger), nil
}

func (s *Session) newPage() (*rod.Page, error) {
	if !s.cfg.Browser.Stealth {
		return s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(DefaultFingerprint().JS()); err != nil {
		s.logger.Warn("fingerprint overrides not installed", "error", err)
	}
	return page, nil
}

// Close shuts down the browser. Pages of a remote browser are closed but
// the browser itself is left running.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser == nil || s.cfg.Browser.ControlURL != "" {
		return nil
	}
	return s.browser.Close()
}

// cookieParams converts imported cookies into CDP cookie parameters.
// Host-only cookies are scoped to baseURL.
func cookieParams(cookies []*http.Cookie, baseURL string) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if p.Domain == "" {
			p.URL = baseURL
		}
		if !c.Expires.IsZero() {
			p.Expires = proto.TimeSinceEpoch(c.Expires.Unix())
		}
		params = append(params, p)
	}
	return params
}
