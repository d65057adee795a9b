package scraper

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"marketplace-scraper/utils"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BrowserOptions configures the headless Chrome process.
type BrowserOptions struct {
	ChromeBin         string
	Headless          bool
	NavigationTimeout time.Duration
	AcceptLanguage    string
}

// Browser owns one Chrome process. Each session is a separate tab.
type Browser struct {
	opts          BrowserOptions
	logger        *utils.Logger
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
}

// NewBrowser starts Chrome and returns once the browser is up.
func NewBrowser(opts BrowserOptions, logger *utils.Logger) (*Browser, error) {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 60 * time.Second
	}

	chromeBin := opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(browserUserAgent),
	)
	if chromeBin != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Browser{
		opts:          opts,
		logger:        logger,
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
	}, nil
}

// NewSession opens a fresh tab.
func (b *Browser) NewSession(ctx context.Context) (Navigator, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	actions := []chromedp.Action{network.Enable()}
	if b.opts.AcceptLanguage != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": b.opts.AcceptLanguage,
		}))
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cancel()
		return nil, err
	}
	return &ChromeSession{tab: tabCtx, cancel: cancel, navTimeout: b.opts.NavigationTimeout}, nil
}

// Close shuts the browser down, closing every tab.
func (b *Browser) Close() {
	b.cancelBrowser()
	b.cancelAlloc()
}

// ChromeSession is a Navigator backed by one Chrome tab.
type ChromeSession struct {
	tab        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *ChromeSession) Navigate(ctx context.Context, pageURL string) error {
	return s.run(ctx, s.navTimeout,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *ChromeSession) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *ChromeSession) ScrollToBottom(ctx context.Context) error {
	return s.run(ctx, s.navTimeout,
		chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight);`, nil))
}

func (s *ChromeSession) ClickText(ctx context.Context, selector, text string) (bool, error) {
	script := fmt.Sprintf(`(function() {
		var els = document.querySelectorAll(%s);
		for (var i = 0; i < els.length; i++) {
			if ((els[i].textContent || '').indexOf(%s) !== -1) {
				els[i].click();
				return true;
			}
		}
		return false;
	})()`, strconv.Quote(selector), strconv.Quote(text))

	var clicked bool
	if err := s.run(ctx, s.navTimeout, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

func (s *ChromeSession) Document(ctx context.Context) (*goquery.Document, error) {
	var (
		body     string
		location string
	)
	err := s.run(ctx, s.navTimeout,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse rendered html: %w", err)
	}
	if u, err := url.Parse(location); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (s *ChromeSession) Close() error {
	s.cancel()
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
