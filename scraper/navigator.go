package scraper

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Navigator is one exclusive browser session. Its methods form a single
// in-order command stream and must not be called concurrently; run more
// sessions to get parallel navigation.
type Navigator interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector is visible or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// ScrollToBottom triggers lazily loaded content.
	ScrollToBottom(ctx context.Context) error
	// ClickText clicks the first element matching selector whose text
	// contains text, reporting whether one was found.
	ClickText(ctx context.Context, selector, text string) (bool, error)
	// Document returns a snapshot of the rendered page.
	Document(ctx context.Context) (*goquery.Document, error)
	Close() error
}

// SessionFactory opens a new independent Navigator.
type SessionFactory interface {
	NewSession(ctx context.Context) (Navigator, error)
}
