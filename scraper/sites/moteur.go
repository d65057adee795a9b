package sites

import (
	"marketplace-scraper/models"
	"marketplace-scraper/scraper"
	"marketplace-scraper/services"
)

const moteurBase = "https://www.moteur.ma/fr/voiture/achat-voiture-occasion/"

// Moteur reads www.moteur.ma used-car listings, 30 per page.
func Moteur() *scraper.Site {
	return &scraper.Site{
		Name: "moteur",
		Pagination: scraper.Pagination{
			URL:    moteurBase + "{offset}",
			First:  moteurBase,
			Stride: 30,
		},
		Dates:         services.French,
		DefaultPrice:  "Prix non spécifié",
		DefaultSeller: "Particulier",
		Listing: scraper.ListingSpec{
			WaitFor: ".row-item",
			Items:   []string{".row-item"},
			Title: []scraper.StrategySpec{
				{Name: "title", Kind: scraper.KindText, Selector: ".title_mark_model"},
			},
			Price: []scraper.StrategySpec{
				{Name: "price", Kind: scraper.KindText, Selector: ".PriceListing"},
			},
			Year: []scraper.StrategySpec{
				{Name: "year-li", Kind: scraper.KindMatch, Selector: "li", Pattern: `^(19|20)\d{2}$`},
			},
			FuelType: []scraper.StrategySpec{
				{Name: "fuel-li", Kind: scraper.KindMatch, Selector: "li", Pattern: `(?i)^(essence|diesel|hybride|électrique)$`},
			},
			Transmission: []scraper.StrategySpec{
				{Name: "gearbox-li", Kind: scraper.KindContains, Selector: "li", Any: []string{"Automatique", "Manuelle"}},
			},
			URL: []scraper.StrategySpec{
				{Name: "title-link", Kind: scraper.KindAttr, Selector: "h3.title_mark_model a", Attr: "href"},
				{Name: "detail-link", Kind: scraper.KindAttr, Selector: "a[href*='detail-annonce']", Attr: "href"},
			},
		},
		Detail: scraper.DetailSpec{
			Location: []scraper.StrategySpec{
				{Name: "city-link", Kind: scraper.KindText, Selector: "a[href*='ville']"},
			},
			Labels: scraper.LabelTable{
				Container: ".detail_line",
				Label:     "span:nth-of-type(1)",
				Value:     "span:nth-of-type(2)",
				Rules: []scraper.LabelRule{
					{Contains: "Kilométrage", Field: models.FieldMileage},
					{Contains: "Année"},
					{Contains: "Boite de vitesses", Field: models.FieldTransmission},
					{Contains: "Carburant", Field: models.FieldFuelType},
					{Contains: "Puissance fiscale", Field: models.FieldFiscalPower},
					{Contains: "Nombre de portes", Field: models.FieldDoors},
					{Contains: "Première main", Field: models.FieldFirstHand},
					{Contains: "Véhicule dédouané", Field: models.FieldOrigin},
				},
			},
			// Cards carry no poster; the detail page names dealers.
			Fallbacks: map[string][]scraper.StrategySpec{
				models.FieldSeller: {
					{Name: "megaphone", Kind: scraper.KindText, Selector: "a:has(i.icon-normal-megaphone)"},
					{Name: "stock-pro", Kind: scraper.KindText, Selector: "div.actions.block_tele a[href*='stock-professionnel']"},
				},
			},
			Equipment: scraper.EquipmentSpec{
				Item:        "div.option_ad",
				StripMarker: "✔",
			},
			Images: scraper.ImageSpec{
				Selectors: []string{"img[data-u='image']"},
				Attr:      "src",
			},
			BrandModelFromTitle: true,
		},
	}
}
