package scraper

import (
	"strconv"
	"strings"
	"time"

	"marketplace-scraper/models"
	"marketplace-scraper/services"
)

// Site describes one marketplace entirely as data: where its pages live and
// how to read listing cards and detail pages. Built-in sites live in the
// sites package; TOML files can override or add them.
type Site struct {
	Name          string              `toml:"name"`
	Pagination    Pagination          `toml:"pagination"`
	Dates         services.DateLocale `toml:"dates"`
	DefaultPrice  string              `toml:"default_price"`
	DefaultSeller string              `toml:"default_seller"`
	Listing       ListingSpec         `toml:"listing"`
	Detail        DetailSpec          `toml:"detail"`
}

// Pagination maps a 1-based page number to a URL. The {offset} placeholder in
// URL becomes Base + (page-1)*Stride; First, when set, is used verbatim for page 1.
type Pagination struct {
	URL    string `toml:"url"`
	First  string `toml:"first,omitempty"`
	Stride int    `toml:"stride"`
	Base   int    `toml:"base"`
}

const offsetPlaceholder = "{offset}"

func (p Pagination) PageURL(page int) string {
	if page == 1 && p.First != "" {
		return p.First
	}
	stride := p.Stride
	if stride == 0 {
		stride = 1
	}
	return strings.ReplaceAll(p.URL, offsetPlaceholder, strconv.Itoa(p.Base+(page-1)*stride))
}

// ListingSpec reads the cards of one discovery page.
type ListingSpec struct {
	// WaitFor gates extraction: the page counts as empty if it never shows up.
	WaitFor string `toml:"wait_for"`
	// Container scopes the item search; empty means the whole document.
	Container string `toml:"container,omitempty"`
	// Items is tried in order; the first selector matching anything wins.
	Items []string `toml:"items"`

	Title        []StrategySpec `toml:"title"`
	Price        []StrategySpec `toml:"price"`
	PublishedAt  []StrategySpec `toml:"published_at"`
	Year         []StrategySpec `toml:"year"`
	FuelType     []StrategySpec `toml:"fuel_type"`
	Transmission []StrategySpec `toml:"transmission"`
	Seller       []StrategySpec `toml:"seller"`
	URL          []StrategySpec `toml:"url"`
}

// DetailSpec reads a listing's detail page.
type DetailSpec struct {
	ShowMore *ClickSpec `toml:"show_more,omitempty"`
	// Location fills the sector and, up to its first comma, the seller city.
	Location []StrategySpec `toml:"location"`
	Labels   LabelTable     `toml:"labels"`
	// Fallbacks apply per detail field when the label scan left it unknown.
	Fallbacks map[string][]StrategySpec `toml:"fallbacks,omitempty"`
	Equipment EquipmentSpec             `toml:"equipment"`
	Images    ImageSpec                 `toml:"images"`
	// BrandModelFromTitle fills unknown brand and model from the first two title words.
	BrandModelFromTitle bool `toml:"brand_model_from_title"`
}

// ClickSpec identifies a disclosure button by element selector and visible text.
type ClickSpec struct {
	Selector string `toml:"selector"`
	Text     string `toml:"text"`
}

// LabelTable scans label/value pairs. Each Container holds one pair; the
// label text is matched against Rules in order and the first rule whose
// Contains is a substring claims it. A rule with an empty Field recognises
// a label only to ignore it.
type LabelTable struct {
	Container string      `toml:"container"`
	Label     string      `toml:"label"`
	Value     string      `toml:"value"`
	Rules     []LabelRule `toml:"rules"`
}

type LabelRule struct {
	Contains string `toml:"contains"`
	Field    string `toml:"field"`
}

// EquipmentSpec collects free-text feature entries.
type EquipmentSpec struct {
	Container string `toml:"container,omitempty"`
	Item      string `toml:"item"`
	// ValueOnly skips items that sit next to a label of the LabelTable.
	ValueOnly bool `toml:"value_only"`
	// ExcludeParents skips items whose parent text mentions an attribute label.
	ExcludeParents []string `toml:"exclude_parents,omitempty"`
	StripMarker    string   `toml:"strip_marker,omitempty"`
}

// ImageSpec lists image selectors in priority order; the first selector
// that yields any usable URL wins.
type ImageSpec struct {
	Selectors []string `toml:"selectors"`
	Attr      string   `toml:"attr"`
}

// Profile is a Site with every strategy chain compiled.
type Profile struct {
	Site *Site

	title, price, publishedAt, year, fuelType, transmission, seller, url Chain

	location  Chain
	fallbacks map[string]Chain
	dates     *services.DateNormalizer
}

// Compile validates the site and compiles its strategy tables.
func (s *Site) Compile() (*Profile, error) {
	if s.Name == "" {
		return nil, RunError(ErrUnknownSite, "site has no name")
	}
	if !strings.Contains(s.Pagination.URL, offsetPlaceholder) {
		return nil, RunError(ErrInvalidStrategy, "%s: pagination url needs an %s placeholder", s.Name, offsetPlaceholder)
	}
	if len(s.Listing.Items) == 0 {
		return nil, RunError(ErrInvalidStrategy, "%s: no listing item selectors", s.Name)
	}

	p := &Profile{Site: s, fallbacks: make(map[string]Chain)}
	targets := []struct {
		dst  *Chain
		spec []StrategySpec
	}{
		{&p.title, s.Listing.Title},
		{&p.price, s.Listing.Price},
		{&p.publishedAt, s.Listing.PublishedAt},
		{&p.year, s.Listing.Year},
		{&p.fuelType, s.Listing.FuelType},
		{&p.transmission, s.Listing.Transmission},
		{&p.seller, s.Listing.Seller},
		{&p.url, s.Listing.URL},
		{&p.location, s.Detail.Location},
	}
	for _, t := range targets {
		chain, err := CompileChain(t.spec)
		if err != nil {
			return nil, err
		}
		*t.dst = chain
	}

	var probe models.DetailRecord
	for _, rule := range s.Detail.Labels.Rules {
		if rule.Field != "" && probe.Slot(rule.Field) == nil {
			return nil, RunError(ErrInvalidStrategy, "%s: label rule %q targets unknown field %q", s.Name, rule.Contains, rule.Field)
		}
	}
	for field, specs := range s.Detail.Fallbacks {
		if probe.Slot(field) == nil {
			return nil, RunError(ErrInvalidStrategy, "%s: fallback for unknown field %q", s.Name, field)
		}
		chain, err := CompileChain(specs)
		if err != nil {
			return nil, err
		}
		p.fallbacks[field] = chain
	}

	p.dates = services.NewDateNormalizer(s.Dates, nil)
	return p, nil
}

// WithClock replaces the clock used for relative publication dates.
func (p *Profile) WithClock(now func() time.Time) *Profile {
	p.dates = services.NewDateNormalizer(p.Site.Dates, now)
	return p
}
