package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"marketplace-scraper/models"
	"marketplace-scraper/services"
)

// Scan writes every recognised label/value pair into rec and returns how
// many slots were written. Later pairs overwrite earlier ones for the same
// slot; unrecognised labels are ignored.
func (t LabelTable) Scan(root *goquery.Selection, rec *models.DetailRecord) int {
	if t.Container == "" || t.Label == "" || t.Value == "" {
		return 0
	}

	written := 0
	root.Find(t.Container).Each(func(_ int, c *goquery.Selection) {
		label := services.NormaliseText(c.Find(t.Label).First().Text())
		value := models.Known(services.NormaliseText(c.Find(t.Value).First().Text()))
		if label == "" || !value.Known {
			return
		}
		for _, rule := range t.Rules {
			if !strings.Contains(label, rule.Contains) {
				continue
			}
			if slot := rec.Slot(rule.Field); slot != nil {
				*slot = value
				written++
			}
			return
		}
	})
	return written
}

// Collect gathers equipment entries, joined with ", ".
func (s EquipmentSpec) Collect(root *goquery.Selection, labelSelector string) models.Field {
	if s.Item == "" {
		return models.Field{}
	}

	var entries []string
	scope(root, s.Container).Find(s.Item).Each(func(_ int, item *goquery.Selection) {
		text := services.StripMarker(item.Text(), s.StripMarker)
		if text == "" {
			return
		}
		if s.ValueOnly && labelSelector != "" && item.Siblings().Filter(labelSelector).Length() > 0 {
			return
		}
		parent := item.Parent().Text()
		for _, marker := range s.ExcludeParents {
			if strings.Contains(parent, marker) {
				return
			}
		}
		entries = append(entries, text)
	})
	return models.Known(strings.Join(entries, ", "))
}

// URLs returns the image sources of the first selector yielding any usable
// absolute http(s) URL, in document order.
func (s ImageSpec) URLs(root *goquery.Selection, base *url.URL) []string {
	attr := s.Attr
	if attr == "" {
		attr = "src"
	}
	for _, selector := range s.Selectors {
		var urls []string
		root.Find(selector).Each(func(_ int, img *goquery.Selection) {
			raw, ok := img.Attr(attr)
			if !ok {
				return
			}
			if abs := absoluteURL(base, raw); abs != "" {
				urls = append(urls, abs)
			}
		})
		if len(urls) > 0 {
			return urls
		}
	}
	return nil
}

// absoluteURL resolves raw against base and keeps only http(s) results.
func absoluteURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
