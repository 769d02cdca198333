// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/cite-hustle/pkg/types"
)

// cookieBannerSelector is the consent button SSRN renders on first visit.
const cookieBannerSelector = "#onetrust-accept-btn-handler"

// statusScript reads the main document's HTTP status from the navigation timing entry.
const statusScript = `() => {
	const e = performance.getEntriesByType('navigation')[0];
	return e && e.responseStatus ? e.responseStatus : 0;
}`

// RodSession drives a real Chrome through the DevTools protocol with the
// stealth evasions applied to its single tab.
type RodSession struct {
	browser   *rod.Browser
	page      *rod.Page
	lnch      *launcher.Launcher
	cfg       types.BrowserConfig
	log       *logrus.Entry
	consented bool
}

// NewRodSession launches Chrome (or connects to cfg.RemoteURL) and opens one
// stealth tab that every navigation reuses.
func NewRodSession(ctx context.Context, cfg types.BrowserConfig, log *logrus.Entry) (*RodSession, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &RodSession{cfg: cfg, log: log.WithField("component", "browser")}

	wsURL := cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		if cfg.ProxyURL != "" {
			l = l.Proxy(cfg.ProxyURL)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("launching browser: %w", err)
		}
		wsURL = u
		s.lnch = l
		s.log.WithField("headless", cfg.Headless).Info("launched local chrome")
	} else {
		s.log.WithField("url", wsURL).Info("connecting to remote chrome")
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanupLauncher()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	s.browser = b

	page, err := stealth.Page(b)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening stealth tab: %w", err)
	}
	s.page = page

	if cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.UserAgent}); err != nil {
			s.log.WithError(err).Warn("set user agent failed")
		}
	}
	return s, nil
}

// Navigate loads url in the session tab and waits for the load event.
func (s *RodSession) Navigate(ctx context.Context, url string) (Page, error) {
	timeout := s.cfg.PageTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(navCtx)
	if err := p.Navigate(url); err != nil {
		return Page{}, fmt.Errorf("navigating to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) || ctx.Err() != nil {
			return Page{}, fmt.Errorf("waiting for load of %s: %w", url, err)
		}
		s.log.WithError(err).WithField("url", url).Warn("wait load failed, continuing")
	}

	s.acceptCookieBanner(navCtx)
	return s.snapshot(navCtx)
}

// Content re-reads the document currently loaded in the tab.
func (s *RodSession) Content(ctx context.Context) (Page, error) {
	return s.snapshot(ctx)
}

// WaitFor waits until selector matches an element in the tab.
func (s *RodSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := s.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s (%v)", ErrSelectorTimeout, selector, err)
	}
	return nil
}

// Cookie returns the value of the named cookie for the tab's current URL.
func (s *RodSession) Cookie(ctx context.Context, name string) string {
	cookies, err := s.page.Context(ctx).Cookies(nil)
	if err != nil {
		return ""
	}
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Close closes the tab and the browser and removes a launched Chrome.
func (s *RodSession) Close() error {
	var firstErr error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			firstErr = err
		}
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.cleanupLauncher()
	return firstErr
}

func (s *RodSession) cleanupLauncher() {
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
}

func (s *RodSession) snapshot(ctx context.Context) (Page, error) {
	p := s.page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return Page{}, fmt.Errorf("reading document: %w", err)
	}

	out := Page{HTML: html}
	if info, err := p.Info(); err == nil {
		out.URL = info.URL
	}
	if res, err := p.Eval(statusScript); err == nil {
		out.Status = res.Value.Int()
	}
	if cookies, err := p.Cookies(nil); err == nil {
		for _, c := range cookies {
			out.Cookies = append(out.Cookies, c.Name)
		}
	}
	return out, nil
}

// acceptCookieBanner clicks the consent button once per session.
func (s *RodSession) acceptCookieBanner(ctx context.Context) {
	if s.consented {
		return
	}
	has, el, err := s.page.Context(ctx).Has(cookieBannerSelector)
	if err != nil || !has {
		return
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		s.log.WithError(err).Debug("cookie banner click failed")
		return
	}
	s.consented = true
	s.log.Debug("accepted cookie banner")
}
