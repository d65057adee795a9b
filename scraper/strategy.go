package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"marketplace-scraper/models"
	"marketplace-scraper/services"
)

var errNoMatch = errors.New("no matching element")

// Strategy is one named way of reading a value out of a document fragment.
type Strategy struct {
	Name    string
	Extract func(*goquery.Selection) (string, error)
}

// Chain is an ordered list of strategies for one logical field.
type Chain []Strategy

// Resolve tries each strategy in order and returns the first non-empty value.
// Missing elements, empty text, errors and panics all just move on to the
// next strategy; when none succeeds the field is unknown.
func (c Chain) Resolve(sel *goquery.Selection) models.Field {
	for _, st := range c {
		v, err := st.try(sel)
		if err != nil {
			continue
		}
		if f := models.Known(services.NormaliseText(v)); f.Known {
			return f
		}
	}
	return models.Field{}
}

func (s Strategy) try(sel *goquery.Selection) (v string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %q panicked: %v", s.Name, r)
		}
	}()
	if s.Extract == nil || sel == nil {
		return "", errNoMatch
	}
	return s.Extract(sel)
}

// Strategy kinds understood by StrategySpec.
const (
	KindText     = "text"
	KindAttr     = "attr"
	KindContains = "contains"
	KindMatch    = "match"
	KindAfter    = "after"
)

// StrategySpec is the declarative form of a Strategy, as stored in site
// tables and TOML override files.
type StrategySpec struct {
	Name     string   `toml:"name"`
	Kind     string   `toml:"kind"`
	Selector string   `toml:"selector,omitempty"`
	Attr     string   `toml:"attr,omitempty"`
	Any      []string `toml:"any,omitempty"`
	Pattern  string   `toml:"pattern,omitempty"`
	Label    string   `toml:"label,omitempty"`
	Sibling  string   `toml:"sibling,omitempty"`
}

// Compile turns sp into an executable Strategy.
func (sp StrategySpec) Compile() (Strategy, error) {
	name := sp.Name
	if name == "" {
		name = sp.Kind + ":" + sp.Selector
	}
	bad := func(format string, args ...any) (Strategy, error) {
		return Strategy{}, RunError(ErrInvalidStrategy, "%s: %s", name, fmt.Sprintf(format, args...))
	}

	switch sp.Kind {
	case KindText:
		return Strategy{Name: name, Extract: func(sel *goquery.Selection) (string, error) {
			found := scope(sel, sp.Selector).First()
			if found.Length() == 0 {
				return "", errNoMatch
			}
			return found.Text(), nil
		}}, nil

	case KindAttr:
		if sp.Attr == "" {
			return bad("attr kind needs an attribute name")
		}
		return Strategy{Name: name, Extract: func(sel *goquery.Selection) (string, error) {
			v, ok := scope(sel, sp.Selector).First().Attr(sp.Attr)
			if !ok {
				return "", errNoMatch
			}
			return v, nil
		}}, nil

	case KindContains:
		if len(sp.Any) == 0 {
			return bad("contains kind needs at least one token")
		}
		return Strategy{Name: name, Extract: func(sel *goquery.Selection) (string, error) {
			return firstText(scope(sel, sp.Selector), func(text string) bool {
				for _, token := range sp.Any {
					if strings.Contains(text, token) {
						return true
					}
				}
				return false
			})
		}}, nil

	case KindMatch:
		re, err := regexp.Compile(sp.Pattern)
		if err != nil {
			return bad("pattern: %v", err)
		}
		return Strategy{Name: name, Extract: func(sel *goquery.Selection) (string, error) {
			return firstText(scope(sel, sp.Selector), re.MatchString)
		}}, nil

	case KindAfter:
		if sp.Label == "" || sp.Selector == "" {
			return bad("after kind needs a selector and a label")
		}
		return Strategy{Name: name, Extract: func(sel *goquery.Selection) (string, error) {
			label := sel.Find(sp.Selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
				return strings.Contains(s.Text(), sp.Label)
			}).First()
			if label.Length() == 0 {
				return "", errNoMatch
			}
			next := label.NextAll()
			if sp.Sibling != "" {
				next = label.NextAllFiltered(sp.Sibling)
			}
			if next.Length() == 0 {
				return "", errNoMatch
			}
			return next.First().Text(), nil
		}}, nil
	}
	return bad("unknown kind %q", sp.Kind)
}

// CompileChain compiles specs in order.
func CompileChain(specs []StrategySpec) (Chain, error) {
	chain := make(Chain, 0, len(specs))
	for _, sp := range specs {
		st, err := sp.Compile()
		if err != nil {
			return nil, err
		}
		chain = append(chain, st)
	}
	return chain, nil
}

// scope selects within sel; an empty selector means sel itself.
func scope(sel *goquery.Selection, selector string) *goquery.Selection {
	if selector == "" {
		return sel
	}
	return sel.Find(selector)
}

func firstText(candidates *goquery.Selection, keep func(string) bool) (string, error) {
	var out string
	candidates.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if text != "" && keep(text) {
			out = text
			return false
		}
		return true
	})
	if out == "" {
		return "", errNoMatch
	}
	return out, nil
}
