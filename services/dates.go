package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"marketplace-scraper/models"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

var firstNumber = regexp.MustCompile(`\d+`)

// DateLocale lists the keywords that classify a "time ago" phrase. Units are
// matched by substring containment and checked in the order minute, hour,
// day, month, year, so the first matching unit wins.
type DateLocale struct {
	Instant []string `toml:"instant"`
	Minute  []string `toml:"minute"`
	Hour    []string `toml:"hour"`
	Day     []string `toml:"day"`
	Month   []string `toml:"month"`
	Year    []string `toml:"year"`
}

// French covers phrases such as "il y a 5 minutes" or "il y a quelques instants".
var French = DateLocale{
	Instant: []string{"quelques instants"},
	Minute:  []string{"minute"},
	Hour:    []string{"heure"},
	Day:     []string{"jour"},
	Month:   []string{"mois"},
	Year:    []string{"an"},
}

// DateNormalizer turns relative publication phrases into absolute timestamps.
type DateNormalizer struct {
	locale DateLocale
	now    func() time.Time
}

// NewDateNormalizer builds a normalizer. A nil clock means time.Now.
func NewDateNormalizer(locale DateLocale, now func() time.Time) *DateNormalizer {
	if now == nil {
		now = time.Now
	}
	return &DateNormalizer{locale: locale, now: now}
}

// Normalize converts phrase to an absolute time. Minute and hour phrases keep
// the time of day; day, month (30 days) and year (365 days) phrases keep the
// date only. Phrases without a number or a known unit come back unknown.
func (n *DateNormalizer) Normalize(phrase string) models.Field {
	now := n.now()
	lower := strings.ToLower(phrase)

	if containsAny(lower, n.locale.Instant) {
		return models.Known(now.Format(timestampLayout))
	}

	digits := firstNumber.FindString(lower)
	if digits == "" {
		return models.Field{}
	}
	num, err := strconv.Atoi(digits)
	if err != nil {
		return models.Field{}
	}

	switch {
	case containsAny(lower, n.locale.Minute):
		return models.Known(now.Add(-time.Duration(num) * time.Minute).Format(timestampLayout))
	case containsAny(lower, n.locale.Hour):
		return models.Known(now.Add(-time.Duration(num) * time.Hour).Format(timestampLayout))
	case containsAny(lower, n.locale.Day):
		return models.Known(now.AddDate(0, 0, -num).Format(dateLayout))
	case containsAny(lower, n.locale.Month):
		return models.Known(now.AddDate(0, 0, -30*num).Format(dateLayout))
	case containsAny(lower, n.locale.Year):
		return models.Known(now.AddDate(0, 0, -365*num).Format(dateLayout))
	}
	return models.Field{}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
