package scrapertest

import (
	"fmt"
	"html"
	"strings"

	"marketplace-scraper/models"
	"marketplace-scraper/scraper"
	"marketplace-scraper/services"
)

// BaseURL hosts the canned marketplace.
const BaseURL = "https://cars.test"

// ListURL is the discovery page URL of Site for page.
func ListURL(page int) string {
	return fmt.Sprintf("%s/list?page=%d", BaseURL, page)
}

func text(selector string) []scraper.StrategySpec {
	return []scraper.StrategySpec{{Kind: scraper.KindText, Selector: selector}}
}

// Site is a small marketplace whose markup is produced by ListingPage and
// DetailPage.
func Site() *scraper.Site {
	return &scraper.Site{
		Name:          "testsite",
		Pagination:    scraper.Pagination{URL: BaseURL + "/list?page={offset}", Stride: 1, Base: 1},
		Dates:         services.French,
		DefaultPrice:  "Prix non spécifié",
		DefaultSeller: "Particulier",
		Listing: scraper.ListingSpec{
			WaitFor:     ".results",
			Container:   ".results",
			Items:       []string{"a.card"},
			Title:       text(".title"),
			Price:       text(".price"),
			PublishedAt: text(".date"),
			Year: []scraper.StrategySpec{
				{Kind: scraper.KindMatch, Selector: "li", Pattern: `^(19|20)\d{2}$`},
			},
			FuelType: []scraper.StrategySpec{
				{Kind: scraper.KindContains, Selector: "li", Any: []string{"Diesel", "Essence"}},
			},
			Transmission: []scraper.StrategySpec{
				{Kind: scraper.KindContains, Selector: "li", Any: []string{"Manuelle", "Automatique"}},
			},
			Seller: text(".seller"),
			URL: []scraper.StrategySpec{
				{Kind: scraper.KindAttr, Attr: "href"},
			},
		},
		Detail: scraper.DetailSpec{
			ShowMore: &scraper.ClickSpec{Selector: "button", Text: "Voir plus"},
			Location: text(".location"),
			Labels: scraper.LabelTable{
				Container: ".row",
				Label:     ".k",
				Value:     ".v",
				Rules: []scraper.LabelRule{
					{Contains: "Année"},
					{Contains: "Marque", Field: models.FieldBrand},
					{Contains: "Modèle", Field: models.FieldModel},
					{Contains: "Kilométrage", Field: models.FieldMileage},
					{Contains: "Secteur", Field: models.FieldSector},
				},
			},
			Fallbacks: map[string][]scraper.StrategySpec{
				models.FieldCategory: {
					{Kind: scraper.KindAfter, Selector: "h4", Label: "Categorie", Sibling: "p"},
				},
			},
			Equipment:           scraper.EquipmentSpec{Container: ".equipment", Item: "span", StripMarker: "✔"},
			Images:              scraper.ImageSpec{Selectors: []string{"img.photo"}},
			BrandModelFromTitle: true,
		},
	}
}

// Card is one listing card on a discovery page. Empty fields are left out of
// the markup.
type Card struct {
	Title  string
	Price  string
	Date   string
	Seller string
	Href   string
	Specs  []string
}

// ListingPage renders a discovery page. With no cards the container is still
// present but empty.
func ListingPage(cards ...Card) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="results">`)
	for _, c := range cards {
		if c.Href != "" {
			fmt.Fprintf(&b, `<a class="card" href="%s">`, html.EscapeString(c.Href))
		} else {
			b.WriteString(`<a class="card">`)
		}
		optional(&b, "h3", "title", c.Title)
		optional(&b, "span", "price", c.Price)
		optional(&b, "span", "date", c.Date)
		optional(&b, "p", "seller", c.Seller)
		if len(c.Specs) > 0 {
			b.WriteString("<ul>")
			for _, s := range c.Specs {
				fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(s))
			}
			b.WriteString("</ul>")
		}
		b.WriteString("</a>")
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// Detail is the content of one detail page.
type Detail struct {
	Location  string
	Labels    [][2]string
	Category  string
	Equipment []string
	Images    []string
	ShowMore  bool
}

// DetailPage renders a detail page.
func DetailPage(d Detail) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	optional(&b, "span", "location", d.Location)
	for _, kv := range d.Labels {
		fmt.Fprintf(&b, `<div class="row"><span class="k">%s</span><span class="v">%s</span></div>`,
			html.EscapeString(kv[0]), html.EscapeString(kv[1]))
	}
	if d.Category != "" {
		fmt.Fprintf(&b, `<section><h4>Categorie</h4><p>%s</p></section>`, html.EscapeString(d.Category))
	}
	if len(d.Equipment) > 0 {
		b.WriteString(`<div class="equipment">`)
		for _, e := range d.Equipment {
			fmt.Fprintf(&b, "<span>%s</span>", html.EscapeString(e))
		}
		b.WriteString(`</div>`)
	}
	for _, src := range d.Images {
		fmt.Fprintf(&b, `<img class="photo" src="%s">`, html.EscapeString(src))
	}
	if d.ShowMore {
		b.WriteString(`<button>Voir plus</button>`)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func optional(b *strings.Builder, tag, class, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, `<%s class="%s">%s</%s>`, tag, class, html.EscapeString(value), tag)
}
