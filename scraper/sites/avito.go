package sites

import (
	"marketplace-scraper/models"
	"marketplace-scraper/scraper"
	"marketplace-scraper/services"
)

// Avito reads www.avito.ma used-car listings.
func Avito() *scraper.Site {
	const (
		card        = "a.sc-1jge648-0.jZXrfL"
		attribute   = "div[class*='sc-19cngu6-1']"
		valueSpan   = "span[class*='fjZBup']"
		labelSpan   = "span[class*='bXFCIH']"
		fuelPattern = `^(Essence|Diesel|Hybride|Électrique)$`
	)

	return &scraper.Site{
		Name: "avito",
		Pagination: scraper.Pagination{
			URL:    "https://www.avito.ma/fr/maroc/voitures_d_occasion-%C3%A0_vendre?o={offset}",
			Stride: 1,
			Base:   1,
		},
		Dates:         services.French,
		DefaultPrice:  "Prix non spécifié",
		DefaultSeller: "Particulier",
		Listing: scraper.ListingSpec{
			WaitFor:   ".sc-1nre5ec-1",
			Container: ".sc-1nre5ec-1",
			Items:     []string{card, "a.sc-1jge648-0", "a[href*='/voitures']"},
			Title: []scraper.StrategySpec{
				{Name: "title", Kind: scraper.KindText, Selector: "p.sc-1x0vz2r-0.iHApav"},
				{Name: "title-class", Kind: scraper.KindText, Selector: "p[class*='iHApav']"},
				{Name: "title-attr", Kind: scraper.KindAttr, Attr: "title"},
			},
			Price: []scraper.StrategySpec{
				{Name: "price", Kind: scraper.KindText, Selector: "p.sc-1x0vz2r-0.dJAfqm"},
				{Name: "price-dh", Kind: scraper.KindContains, Selector: "p, span", Any: []string{"DH"}},
			},
			PublishedAt: []scraper.StrategySpec{
				{Name: "date", Kind: scraper.KindText, Selector: "p.sc-1x0vz2r-0.layWaX"},
				{Name: "date-ago", Kind: scraper.KindContains, Selector: "p", Any: []string{"il y a"}},
			},
			Year: []scraper.StrategySpec{
				{Name: "year-exact", Kind: scraper.KindMatch, Selector: "span", Pattern: `^(19|20)\d{2}$`},
				{Name: "year-contains", Kind: scraper.KindContains, Selector: "span", Any: []string{"20"}},
			},
			FuelType: []scraper.StrategySpec{
				{Name: "fuel", Kind: scraper.KindContains, Selector: "span", Any: []string{"Essence", "Diesel", "Hybride", "Électrique"}},
				{Name: "fuel-li", Kind: scraper.KindMatch, Selector: "li", Pattern: fuelPattern},
			},
			Transmission: []scraper.StrategySpec{
				{Name: "gearbox", Kind: scraper.KindContains, Selector: "span", Any: []string{"Automatique", "Manuelle"}},
			},
			Seller: []scraper.StrategySpec{
				{Name: "shop", Kind: scraper.KindText, Selector: "p.sc-1x0vz2r-0.hNCqYw.sc-1wnmz4-5.dXzQnB"},
			},
			URL: []scraper.StrategySpec{
				{Name: "href", Kind: scraper.KindAttr, Attr: "href"},
				{Name: "inner-href", Kind: scraper.KindAttr, Selector: "a", Attr: "href"},
			},
		},
		Detail: scraper.DetailSpec{
			ShowMore: &scraper.ClickSpec{Selector: "button", Text: "Voir plus"},
			Location: []scraper.StrategySpec{
				{Name: "location", Kind: scraper.KindText, Selector: "span[class*='iKguVF']"},
			},
			Labels: scraper.LabelTable{
				Container: attribute,
				Label:     labelSpan,
				Value:     valueSpan,
				Rules: []scraper.LabelRule{
					{Contains: "Année-Modèle"},
					{Contains: "Type de véhicule", Field: models.FieldCategory},
					{Contains: "Catégorie", Field: models.FieldCategory},
					{Contains: "Kilométrage", Field: models.FieldMileage},
					{Contains: "Marque", Field: models.FieldBrand},
					{Contains: "Modèle", Field: models.FieldModel},
					{Contains: "Nombre de portes", Field: models.FieldDoors},
					{Contains: "Origine", Field: models.FieldOrigin},
					{Contains: "Première main", Field: models.FieldFirstHand},
					{Contains: "Puissance fiscale", Field: models.FieldFiscalPower},
					{Contains: "État", Field: models.FieldCondition},
					{Contains: "Secteur", Field: models.FieldSector},
				},
			},
			Fallbacks: map[string][]scraper.StrategySpec{
				models.FieldCategory: {
					{Name: "categorie-sibling", Kind: scraper.KindAfter, Selector: "span", Label: "Categorie", Sibling: valueSpan},
				},
			},
			Equipment: scraper.EquipmentSpec{
				Container:      attribute,
				Item:           valueSpan,
				ValueOnly:      true,
				ExcludeParents: []string{"Type de", "Année", "Marque"},
			},
			Images: scraper.ImageSpec{
				Selectors: []string{"div.picture img", ".sc-1gjavk-0"},
				Attr:      "src",
			},
		},
	}
}
