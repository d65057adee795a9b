package sites

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-scraper/models"
	"marketplace-scraper/scraper"
	"marketplace-scraper/services"
	"marketplace-scraper/utils"
)

func TestBuiltinSitesCompile(t *testing.T) {
	for name, site := range Builtin() {
		_, err := site.Compile()
		assert.NoError(t, err, name)
		assert.Equal(t, name, site.Name)
	}
}

func TestBuiltinPagination(t *testing.T) {
	avito := Avito().Pagination
	assert.Equal(t, "https://www.avito.ma/fr/maroc/voitures_d_occasion-%C3%A0_vendre?o=1", avito.PageURL(1))
	assert.Equal(t, "https://www.avito.ma/fr/maroc/voitures_d_occasion-%C3%A0_vendre?o=3", avito.PageURL(3))

	moteur := Moteur().Pagination
	assert.Equal(t, moteurBase, moteur.PageURL(1))
	assert.Equal(t, moteurBase+"30", moteur.PageURL(2))
	assert.Equal(t, moteurBase+"60", moteur.PageURL(3))
}

func TestProfileUnknownSite(t *testing.T) {
	_, err := Profile("leboncoin", "")
	assert.ErrorIs(t, err, scraper.ErrUnknownSite)
	assert.True(t, scraper.IsKind(err, scraper.KindRun))
}

func TestLoadOverridesAndAddsSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.toml")
	content := `
[[site]]
name = "wandaloo"
default_price = "N/A"

[site.pagination]
url = "https://www.wandaloo.com/occasion/?page={offset}"
stride = 1
base = 1

[site.listing]
wait_for = ".annonce"
items = [".annonce"]

[[site.listing.title]]
kind = "text"
selector = "h2"

[[site.listing.url]]
kind = "attr"
selector = "a"
attr = "href"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	all, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"avito", "moteur", "wandaloo"}, Names(all))

	site := all["wandaloo"]
	assert.Equal(t, "N/A", site.DefaultPrice)
	assert.Equal(t, "https://www.wandaloo.com/occasion/?page=2", site.Pagination.PageURL(2))
	assert.NotEmpty(t, site.Dates.Minute, "dates default to French")

	p, err := Profile("wandaloo", path)
	require.NoError(t, err)
	assert.Equal(t, "wandaloo", p.Site.Name)
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.toml")
	content := `
[[site]]
name = "avito"

[site.pagination]
url = "https://www.avito.ma/?o={offset}"

[site.listing]
items = ["a"]

[[site.listing.title]]
kind = "xpath"
selector = "//h3"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Profile("avito", path)
	assert.ErrorIs(t, err, scraper.ErrInvalidStrategy)
}

func TestMoteurDetailPage(t *testing.T) {
	page := `<html><body>
		<a href="/fr/voiture/ville/rabat">Rabat</a>
		<div class="detail_line"><span>Kilométrage</span><span>95 000</span></div>
		<div class="detail_line"><span>Année</span><span>2017</span></div>
		<div class="detail_line"><span>Puissance fiscale</span><span>6 CV</span></div>
		<div class="detail_line"><span>Véhicule dédouané</span><span>Oui</span></div>
		<div class="detail_line"><span>Boite de vitesses</span><span>Automatique</span></div>
		<div class="detail_line"><span>Carburant</span><span>Diesel</span></div>
		<div class="actions block_tele"><ul>
			<li><a href="/fr/stock-professionnel/auto-plus"><i class="icon-normal-megaphone"></i> Auto Plus</a></li>
		</ul></div>
		<div class="option_ad">✔ Climatisation</div>
		<div class="option_ad">✔ Radio</div>
		<img data-u="image" src="https://www.moteur.ma/images/1.jpg">
		<img data-u="image" src="/images/2.jpg">
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	profile, err := Moteur().Compile()
	require.NoError(t, err)
	e := scraper.NewDetailExtractor(profile, scraper.DetailOptions{}, nil, utils.NewDiscardLogger())

	card := models.BasicListing{
		Title:    models.Known("Volkswagen golf 7"),
		FuelType: models.Known("Essence"),
		Seller:   models.Known("Particulier"),
	}
	rec := models.NewDetailRecord(1, "1_Volkswagen_Golf")
	e.Populate(doc.Selection, &rec, card)

	assert.Equal(t, "95 000", rec.Mileage.Value)
	assert.Equal(t, "6 CV", rec.FiscalPower.Value)
	assert.Equal(t, "Oui", rec.Origin.Value)
	assert.Equal(t, "Rabat", rec.SellerCity.Value)
	assert.Equal(t, "Climatisation, Radio", rec.Equipment.Value)
	assert.Equal(t, "VOLKSWAGEN", rec.Brand.Value)
	assert.Equal(t, "Golf", rec.Model.Value)
	assert.Equal(t, "Auto Plus", rec.Seller.Value)
	assert.Equal(t, "Automatique", rec.Transmission.Value)
	assert.Equal(t, "Diesel", rec.FuelType.Value)

	merged := services.Merge(card, rec).Basic
	assert.Equal(t, "Auto Plus", merged.Seller.Value, "the poster named on the page replaces the default seller")
	assert.Equal(t, "Automatique", merged.Transmission.Value, "the page fills a gearbox the card lacked")
	assert.Equal(t, "Essence", merged.FuelType.Value, "a fuel type from the card is kept")

	urls := Moteur().Detail.Images.URLs(doc.Selection, nil)
	assert.Equal(t, []string{"https://www.moteur.ma/images/1.jpg"}, urls, "relative srcs need a base")
}

func TestMoteurSellerFallsBackToDealerLink(t *testing.T) {
	page := `<html><body>
		<div class="block-inner block-detail-ad"><div class="actions block_tele">
			<a href="/fr/stock-professionnel/garage-atlas">Garage Atlas</a>
		</div></div>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	profile, err := Moteur().Compile()
	require.NoError(t, err)
	e := scraper.NewDetailExtractor(profile, scraper.DetailOptions{}, nil, utils.NewDiscardLogger())

	rec := models.NewDetailRecord(1, "1_x")
	e.Populate(doc.Selection, &rec, models.BasicListing{})
	assert.Equal(t, "Garage Atlas", rec.Seller.Value)
	assert.False(t, rec.Transmission.Known)
}

func TestAvitoDetailPage(t *testing.T) {
	page := `<html><body>
		<span class="sc-1x0vz2r-0 iKguVF">Casablanca, Maarif</span>
		<div class="sc-19cngu6-1 dQMBcQ"><span class="sc-1x0vz2r-0 bXFCIH">Modèle</span><span class="sc-1x0vz2r-0 fjZBup">Clio</span></div>
		<div class="sc-19cngu6-1 dQMBcQ"><span class="sc-1x0vz2r-0 bXFCIH">Année-Modèle</span><span class="sc-1x0vz2r-0 fjZBup">2019</span></div>
		<div class="sc-19cngu6-1 dQMBcQ"><span class="sc-1x0vz2r-0 bXFCIH">Marque</span><span class="sc-1x0vz2r-0 fjZBup">Renault</span></div>
		<div class="sc-19cngu6-1 dQMBcQ"><span class="sc-1x0vz2r-0 bXFCIH">Kilométrage</span><span class="sc-1x0vz2r-0 fjZBup">80 000 - 84 999</span></div>
		<div class="sc-19cngu6-1 dQMBcQ"><span class="sc-1x0vz2r-0 bXFCIH">Categorie</span><span class="sc-1x0vz2r-0 fjZBup">Citadine</span></div>
		<div class="sc-19cngu6-1 dQMBcQ"><div>Type de carburant <span class="sc-1x0vz2r-0 fjZBup">Diesel</span></div></div>
		<div class="sc-19cngu6-1 dQMBcQ"><div>Marque du véhicule <span class="sc-1x0vz2r-0 fjZBup">Renault</span></div></div>
		<div class="sc-19cngu6-1 dQMBcQ"><span class="sc-1x0vz2r-0 fjZBup">Climatisation</span><span class="sc-1x0vz2r-0 fjZBup">ABS</span></div>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	profile, err := Avito().Compile()
	require.NoError(t, err)
	e := scraper.NewDetailExtractor(profile, scraper.DetailOptions{}, nil, utils.NewDiscardLogger())

	rec := models.NewDetailRecord(1, "1_Renault_Clio")
	e.Populate(doc.Selection, &rec, models.BasicListing{Title: models.Known("Renault Clio 5")})

	assert.Equal(t, "Clio", rec.Model.Value, "Année-Modèle must not claim the model")
	assert.Equal(t, "Renault", rec.Brand.Value)
	assert.Equal(t, "80 000 - 84 999", rec.Mileage.Value)
	assert.Equal(t, "Citadine", rec.Category.Value, "unaccented Categorie resolves through the sibling fallback")
	assert.Equal(t, "Casablanca, Maarif", rec.Sector.Value)
	assert.Equal(t, "Casablanca", rec.SellerCity.Value)
	assert.Equal(t, "Climatisation, ABS", rec.Equipment.Value, "labelled values and attribute parents are not equipment")
	assert.False(t, rec.Doors.Known)
}
