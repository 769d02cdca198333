// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
)

// maxBodySize caps the bytes read from one document.
const maxBodySize = 10 << 20

// HTTPSession is a Session over plain HTTP. It executes no scripts, so an
// interactive challenge never clears; it suits targets without an anti-bot
// layer and exercises the engine end to end against local servers.
type HTTPSession struct {
	client    *http.Client
	userAgent string
	current   Page
	loaded    *url.URL
}

// NewHTTPSession returns a session with its own cookie jar. A nil client
// gets a fresh one with the given timeout.
func NewHTTPSession(client *http.Client, userAgent string, timeout time.Duration) (*HTTPSession, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else {
		c := *client
		client = &c
	}
	client.Jar = jar
	return &HTTPSession{client: client, userAgent: userAgent}, nil
}

// Navigate fetches rawURL. Non-2xx responses are returned as pages with
// their status; only transport failures produce an error.
func (s *HTTPSession) Navigate(ctx context.Context, rawURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("creating request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Page{}, fmt.Errorf("reading body: %w", err)
	}

	s.loaded = resp.Request.URL
	s.current = Page{
		URL:    resp.Request.URL.String(),
		HTML:   string(body),
		Status: resp.StatusCode,
	}
	s.current.Cookies = s.cookieNames()
	return s.current, nil
}

// Content returns the last loaded page with fresh cookie names.
func (s *HTTPSession) Content(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if s.loaded == nil {
		return Page{}, fmt.Errorf("no page loaded")
	}
	s.current.Cookies = s.cookieNames()
	return s.current, nil
}

// WaitFor checks the loaded document once. A static document never gains
// elements, so there is nothing to wait for.
func (s *HTTPSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.current.HTML))
	if err != nil {
		return fmt.Errorf("parsing document: %w", err)
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrSelectorTimeout, selector)
	}
	return nil
}

// Cookie returns the jar's value of name for the loaded URL.
func (s *HTTPSession) Cookie(ctx context.Context, name string) string {
	if s.loaded == nil || s.client.Jar == nil {
		return ""
	}
	for _, c := range s.client.Jar.Cookies(s.loaded) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// Close releases idle connections.
func (s *HTTPSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPSession) cookieNames() []string {
	if s.loaded == nil || s.client.Jar == nil {
		return nil
	}
	var names []string
	for _, c := range s.client.Jar.Cookies(s.loaded) {
		names = append(names, c.Name)
	}
	return names
}
