package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"marketplace-scraper/metrics"
	"marketplace-scraper/models"
	"marketplace-scraper/services"
	"marketplace-scraper/utils"
)

// DetailOptions holds the settle delays applied on a detail page.
type DetailOptions struct {
	Settle       time.Duration
	ScrollSettle time.Duration
	ExpandSettle time.Duration
	MaxRetries   int
}

// DetailExtractor enriches one listing from its detail page.
type DetailExtractor struct {
	profile *Profile
	opts    DetailOptions
	images  *ImageHarvester
	retry   *utils.RetryConfig
	logger  *utils.Logger
}

func NewDetailExtractor(profile *Profile, opts DetailOptions, images *ImageHarvester, logger *utils.Logger) *DetailExtractor {
	return &DetailExtractor{
		profile: profile,
		opts:    opts,
		images:  images,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger: logger,
	}
}

// Extract visits the listing's detail page. It never fails: when the page
// cannot be loaded, or reading it panics, the record comes back with every
// field unknown and no images, keyed by the listing's ordinal and folder
// identity.
func (e *DetailExtractor) Extract(ctx context.Context, nav Navigator, listing models.BasicListing) (rec models.DetailRecord) {
	site := e.profile.Site.Name
	start := time.Now()
	defer func() {
		metrics.DetailDuration.WithLabelValues(site).Observe(time.Since(start).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("[detail] %s: %v", listing.Folder, &Error{Kind: KindListing, Op: "read detail", URL: listing.URL.Value, Err: fmt.Errorf("panic: %v", r)})
			metrics.DetailsTotal.WithLabelValues(site, "failed").Inc()
			rec = models.NewDetailRecord(listing.ID, listing.Folder)
		}
	}()

	rec = models.NewDetailRecord(listing.ID, listing.Folder)
	if !listing.URL.Known {
		e.logger.Warn("[detail] %s: no url, leaving details unknown", listing.Folder)
		metrics.DetailsTotal.WithLabelValues(site, "failed").Inc()
		return rec
	}
	pageURL := listing.URL.Value

	doc, err := e.load(ctx, nav, listing.Folder, pageURL)
	if err != nil {
		e.logger.Error("[detail] %s: %v", listing.Folder, &Error{Kind: KindListing, Op: "load detail", URL: pageURL, Err: err})
		metrics.DetailsTotal.WithLabelValues(site, "failed").Inc()
		return rec
	}

	e.Populate(doc.Selection, &rec, listing)

	base := doc.Url
	if base == nil {
		base, _ = url.Parse(pageURL)
	}
	if e.images != nil {
		rec.Images = e.images.Harvest(ctx, listing.Folder, e.profile.Site.Detail.Images.URLs(doc.Selection, base))
	}

	for _, key := range models.DetailFields {
		if !rec.Slot(key).Known {
			metrics.FieldMisses.WithLabelValues(site, key).Inc()
		}
	}
	metrics.DetailsTotal.WithLabelValues(site, "ok").Inc()
	e.logger.Debug("[detail] %s: done, %d images", listing.Folder, len(rec.Images))
	return rec
}

func (e *DetailExtractor) load(ctx context.Context, nav Navigator, folder, pageURL string) (*goquery.Document, error) {
	err := e.retry.Do(ctx, "detail "+folder, func() error {
		return nav.Navigate(ctx, pageURL)
	})
	if err != nil {
		return nil, err
	}
	if err := utils.Sleep(ctx, e.opts.Settle); err != nil {
		return nil, err
	}

	if err := nav.ScrollToBottom(ctx); err != nil {
		e.logger.Debug("[detail] %s: scroll failed: %v", folder, err)
	} else if err := utils.Sleep(ctx, e.opts.ScrollSettle); err != nil {
		return nil, err
	}

	if more := e.profile.Site.Detail.ShowMore; more != nil {
		clicked, err := nav.ClickText(ctx, more.Selector, more.Text)
		switch {
		case err != nil:
			e.logger.Debug("[detail] %s: show-more click failed: %v", folder, err)
		case clicked:
			if err := utils.Sleep(ctx, e.opts.ExpandSettle); err != nil {
				return nil, err
			}
		}
	}

	return nav.Document(ctx)
}

// Populate resolves every enrichment field from a rendered detail page.
// The header location is applied first, so a labelled sector found by the
// label scan overwrites it; the seller city only ever comes from the header.
func (e *DetailExtractor) Populate(root *goquery.Selection, rec *models.DetailRecord, listing models.BasicListing) {
	spec := e.profile.Site.Detail

	if loc := e.profile.location.Resolve(root); loc.Known {
		rec.Sector = loc
		rec.SellerCity = models.Known(services.CityFromLocation(loc.Value))
	}

	spec.Labels.Scan(root, rec)

	for field, chain := range e.profile.fallbacks {
		if slot := rec.Slot(field); !slot.Known {
			*slot = chain.Resolve(root)
		}
	}

	if eq := spec.Equipment.Collect(root, spec.Labels.Label); eq.Known {
		rec.Equipment = eq
	}

	if spec.BrandModelFromTitle && listing.Title.Known {
		brand, model := services.BrandModelFromTitle(listing.Title.Value)
		if !rec.Brand.Known {
			rec.Brand = models.Known(brand)
		}
		if !rec.Model.Known {
			rec.Model = models.Known(model)
		}
	}
}
