// Package scrapertest provides an in-memory browser for exercising the
// discovery and detail code without Chrome.
package scrapertest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marketplace-scraper/scraper"
)

// ErrNotFound is returned when navigating to a URL with no canned page.
var ErrNotFound = errors.New("no such page")

// Web is a set of canned pages shared by every session opened from it.
// It implements scraper.SessionFactory.
type Web struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]error
	visited  []string
	times    []time.Time
	opened   int

	// OpenErr, when set, makes NewSession fail.
	OpenErr error
}

func NewWeb() *Web {
	return &Web{pages: make(map[string]string), failures: make(map[string]error)}
}

// Page serves html at pageURL.
func (w *Web) Page(pageURL, html string) *Web {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[pageURL] = html
	return w
}

// Fail makes every navigation to pageURL return err.
func (w *Web) Fail(pageURL string, err error) *Web {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failures[pageURL] = err
	return w
}

// Visited lists every navigation attempt in order.
func (w *Web) Visited() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.visited...)
}

// VisitTimes returns when each entry of Visited was attempted.
func (w *Web) VisitTimes() []time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Time(nil), w.times...)
}

// Opened counts sessions handed out.
func (w *Web) Opened() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opened
}

func (w *Web) NewSession(ctx context.Context) (scraper.Navigator, error) {
	if w.OpenErr != nil {
		return nil, w.OpenErr
	}
	w.mu.Lock()
	w.opened++
	w.mu.Unlock()
	return &Navigator{web: w}, nil
}

func (w *Web) visit(pageURL string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.visited = append(w.visited, pageURL)
	w.times = append(w.times, time.Now())
	if err, ok := w.failures[pageURL]; ok {
		return "", err
	}
	html, ok := w.pages[pageURL]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, pageURL)
	}
	return html, nil
}

// Navigator is one session over a Web.
type Navigator struct {
	web     *Web
	current string
	html    string
	clicked []string
	closed  bool
}

func (n *Navigator) Navigate(ctx context.Context, pageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	html, err := n.web.visit(pageURL)
	if err != nil {
		return err
	}
	n.current, n.html = pageURL, html
	return nil
}

func (n *Navigator) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	doc, err := n.Document(ctx)
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("waiting for %q: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (n *Navigator) ScrollToBottom(ctx context.Context) error {
	return ctx.Err()
}

func (n *Navigator) ClickText(ctx context.Context, selector, text string) (bool, error) {
	doc, err := n.Document(ctx)
	if err != nil {
		return false, err
	}
	found := doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), text)
	})
	if found.Length() == 0 {
		return false, nil
	}
	n.clicked = append(n.clicked, text)
	return true, nil
}

// Clicked lists the texts of successful ClickText calls.
func (n *Navigator) Clicked() []string {
	return n.clicked
}

func (n *Navigator) Document(ctx context.Context) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n.current == "" {
		return nil, errors.New("no page loaded")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(n.html))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(n.current)
	return doc, nil
}

func (n *Navigator) Close() error {
	n.closed = true
	return nil
}
