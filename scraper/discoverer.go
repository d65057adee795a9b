package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marketplace-scraper/metrics"
	"marketplace-scraper/models"
	"marketplace-scraper/services"
	"marketplace-scraper/utils"
)

var errDuplicate = errors.New("duplicate listing url")

// untitledFolder stands in for a missing title in folder names.
const untitledFolder = "N/A"

// Scope is the page selection of one run. In single-page mode an empty page
// ends discovery; in range mode it is skipped.
type Scope struct {
	Start  int
	End    int
	Single bool
}

// Validate rejects non-positive pages and reversed ranges.
func (s Scope) Validate() error {
	if s.Start < 1 || s.End < 1 {
		return RunError(ErrInvalidPageRange, "page numbers must be positive, got %d-%d", s.Start, s.End)
	}
	if s.Start > s.End {
		return RunError(ErrInvalidPageRange, "start page %d is after end page %d", s.Start, s.End)
	}
	return nil
}

// DiscoverOptions bounds the page-load gate and the lazy-load settle.
type DiscoverOptions struct {
	PageLoadTimeout time.Duration
	ScrollSettle    time.Duration
	MaxRetries      int
}

// Discoverer turns discovery pages into basic listings. It owns the ordinal
// counter of a run, so use one Discoverer per run.
type Discoverer struct {
	profile *Profile
	opts    DiscoverOptions
	retry   *utils.RetryConfig
	logger  *utils.Logger
	seen    *utils.URLSet
	ordinal int
}

func NewDiscoverer(profile *Profile, opts DiscoverOptions, logger *utils.Logger) *Discoverer {
	return &Discoverer{
		profile: profile,
		opts:    opts,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
		seen:   utils.NewURLSet(),
	}
}

// Discover walks the pages of scope in order. On cancellation it returns
// what was gathered so far together with the context error.
func (d *Discoverer) Discover(ctx context.Context, nav Navigator, scope Scope) ([]models.BasicListing, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	site := d.profile.Site.Name
	var listings []models.BasicListing

	for page := scope.Start; page <= scope.End; page++ {
		if err := ctx.Err(); err != nil {
			return listings, err
		}

		found, err := d.DiscoverPage(ctx, nav, page)
		if err != nil {
			if ctx.Err() != nil {
				return listings, ctx.Err()
			}
			outcome := "failed"
			if errors.Is(err, ErrEmptyPage) {
				outcome = "empty"
			}
			metrics.PagesTotal.WithLabelValues(site, outcome).Inc()

			if scope.Single {
				d.logger.Warn("[discover] Page %d: %v, ending run", page, err)
				break
			}
			d.logger.Warn("[discover] Page %d: %v, skipping", page, err)
			continue
		}

		metrics.PagesTotal.WithLabelValues(site, "ok").Inc()
		listings = append(listings, found...)
		d.logger.Info("[discover] Page %d done, %d listings (%d total)", page, len(found), len(listings))
	}

	return listings, nil
}

// DiscoverPage extracts the listings of one page. A page whose container
// never appears or that holds no cards is a page-level error.
func (d *Discoverer) DiscoverPage(ctx context.Context, nav Navigator, page int) ([]models.BasicListing, error) {
	spec := d.profile.Site.Listing
	pageURL := d.profile.Site.Pagination.PageURL(page)
	d.logger.Info("[discover] Scraping page %d: %s", page, pageURL)

	pageErr := func(op string, err error) error {
		return &Error{Kind: KindPage, Op: op, URL: pageURL, Err: err}
	}

	err := d.retry.Do(ctx, fmt.Sprintf("page %d", page), func() error {
		return nav.Navigate(ctx, pageURL)
	})
	if err != nil {
		return nil, pageErr("navigate", err)
	}

	if spec.WaitFor != "" {
		if err := nav.WaitFor(ctx, spec.WaitFor, d.opts.PageLoadTimeout); err != nil {
			return nil, pageErr("wait for listings", fmt.Errorf("%w: %v", ErrEmptyPage, err))
		}
	}
	if err := nav.ScrollToBottom(ctx); err != nil {
		d.logger.Debug("[discover] Page %d: scroll failed: %v", page, err)
	}
	if err := utils.Sleep(ctx, d.opts.ScrollSettle); err != nil {
		return nil, err
	}

	doc, err := nav.Document(ctx)
	if err != nil {
		return nil, pageErr("read document", err)
	}
	base := doc.Url
	if base == nil {
		base, _ = url.Parse(pageURL)
	}

	items := d.items(doc.Selection)
	if items.Length() == 0 {
		return nil, pageErr("extract", ErrEmptyPage)
	}

	var listings []models.BasicListing
	items.Each(func(i int, item *goquery.Selection) {
		listing, err := d.buildListing(item, base)
		if err != nil {
			reason := "error"
			switch {
			case errors.Is(err, errDuplicate):
				reason = "duplicate"
				d.logger.Debug("[discover] Page %d card %d: %v", page, i+1, err)
			default:
				d.logger.Warn("[discover] Page %d card %d dropped: %v", page, i+1, err)
			}
			metrics.ListingsDropped.WithLabelValues(d.profile.Site.Name, reason).Inc()
			return
		}
		metrics.ListingsDiscovered.WithLabelValues(d.profile.Site.Name).Inc()
		listings = append(listings, listing)
	})

	if len(listings) == 0 {
		return nil, pageErr("extract", ErrEmptyPage)
	}
	return listings, nil
}

// items returns the listing cards of the first item selector that matches.
func (d *Discoverer) items(root *goquery.Selection) *goquery.Selection {
	spec := d.profile.Site.Listing
	container := root
	if spec.Container != "" {
		container = root.Find(spec.Container)
	}
	for _, selector := range spec.Items {
		if found := container.Find(selector); found.Length() > 0 {
			return found
		}
	}
	return container.Slice(0, 0)
}

// buildListing reads one card. The ordinal is only consumed once the card
// has been accepted.
func (d *Discoverer) buildListing(item *goquery.Selection, base *url.URL) (listing models.BasicListing, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: KindListing, Op: "build listing", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	p := d.profile
	title := p.title.Resolve(item)
	link := p.url.Resolve(item)
	if link.Known {
		link = models.Known(absoluteURL(base, link.Value))
	}
	if !title.Known && !link.Known {
		return listing, &Error{Kind: KindListing, Op: "build listing", Err: ErrEmptyCard}
	}
	if link.Known && !d.seen.Add(link.Value) {
		return listing, &Error{Kind: KindListing, Op: "build listing", URL: link.Value, Err: errDuplicate}
	}

	published := p.publishedAt.Resolve(item)
	if published.Known {
		published = p.dates.Normalize(published.Value)
	}

	d.ordinal++
	listing = models.BasicListing{
		ID:           d.ordinal,
		Title:        title,
		Price:        p.price.Resolve(item).Or(p.Site.DefaultPrice),
		PublishedAt:  published,
		Year:         p.year.Resolve(item),
		FuelType:     p.fuelType.Resolve(item),
		Transmission: p.transmission.Resolve(item),
		Seller:       p.seller.Resolve(item).Or(p.Site.DefaultSeller),
		URL:          link,
		Folder:       services.FolderIdentity(title.Or(untitledFolder).Value, d.ordinal),
	}
	return listing, nil
}
