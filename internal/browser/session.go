// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser provides the exclusively owned session a scrape worker
// drives: one cookie jar and one fingerprint identity reused across every
// navigation of a work item.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrSelectorTimeout is returned by WaitFor when the selector does not appear in time.
var ErrSelectorTimeout = errors.New("selector not present before timeout")

// Page is a snapshot of the currently loaded document.
type Page struct {
	// URL is the final URL after redirects.
	URL string

	// HTML is the serialized document.
	HTML string

	// Status is the HTTP status of the main document, 0 when the transport
	// does not expose it.
	Status int

	// Cookies lists the cookie names visible to the current URL.
	Cookies []string
}

// HasCookie reports whether name is among the page's cookies.
func (p Page) HasCookie(name string) bool {
	for _, c := range p.Cookies {
		if c == name {
			return true
		}
	}
	return false
}

// Session is a browser-like client. Implementations are not safe for
// concurrent use; each worker owns one.
type Session interface {
	// Navigate loads url and returns the resulting page. A non-nil error is a
	// transport failure (timeout, connection reset, DNS).
	Navigate(ctx context.Context, url string) (Page, error)

	// Content re-reads the current document without navigating.
	Content(ctx context.Context) (Page, error)

	// WaitFor blocks until selector matches an element or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Cookie returns the value of the named cookie for the current URL, or
	// "" when the session does not hold it.
	Cookie(ctx context.Context, name string) string

	Close() error
}
