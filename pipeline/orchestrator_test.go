package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-scraper/models"
	"marketplace-scraper/scraper"
	"marketplace-scraper/scraper/scrapertest"
	"marketplace-scraper/storage"
	"marketplace-scraper/utils"
)

type recordingSink struct {
	mu      sync.Mutex
	records []models.CombinedRecord
	ctxErr  error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Write(ctx context.Context, records []models.CombinedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	s.ctxErr = ctx.Err()
	return nil
}

func (s *recordingSink) Close() error { return nil }

type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) Write(context.Context, []models.CombinedRecord) error {
	return errors.New("broker unavailable")
}
func (failingSink) Close() error { return nil }

func twoListingWeb() *scrapertest.Web {
	return scrapertest.NewWeb().
		Page(scrapertest.ListURL(1), scrapertest.ListingPage(
			scrapertest.Card{Title: "Peugeot 208", Price: "120 000 DH", Href: "/annonce/1", Specs: []string{"2019", "Diesel"}},
			scrapertest.Card{Title: "Dacia Logan", Price: "70 000 DH", Href: "/annonce/2", Specs: []string{"2015", "Essence"}},
		)).
		Page(scrapertest.BaseURL+"/annonce/1", scrapertest.DetailPage(scrapertest.Detail{
			Location: "Rabat, Agdal",
			Labels:   [][2]string{{"Kilométrage", "60 000"}},
		})).
		Fail(scrapertest.BaseURL+"/annonce/2", context.DeadlineExceeded)
}

func newOrchestrator(t *testing.T, web *scrapertest.Web, opts Options) *Orchestrator {
	t.Helper()
	profile, err := scrapertest.Site().Compile()
	require.NoError(t, err)

	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	if opts.Scope == (scraper.Scope{}) {
		opts.Scope = scraper.Scope{Start: 1, End: 1}
	}
	opts.RunID = "test-run"
	opts.Discover.MaxRetries = 1
	opts.Detail.MaxRetries = 1
	return New(profile, opts, web, utils.NewDiscardLogger())
}

func readCSV(t *testing.T, path string) []map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	var out []map[string]string
	for _, row := range rows[1:] {
		m := make(map[string]string, len(row))
		for i, h := range rows[0] {
			m[h] = row[i]
		}
		out = append(out, m)
	}
	return out
}

func TestRunTimedOutDetailStillYieldsRow(t *testing.T) {
	web := twoListingWeb()
	sink := &recordingSink{}
	o := newOrchestrator(t, web, Options{}).WithSinks(sink)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Interrupted)

	rows := readCSV(t, res.OutputPath)
	require.Len(t, rows, 2)

	assert.Equal(t, "1", rows[0]["id"])
	assert.Equal(t, "60 000", rows[0]["mileage"])
	assert.Equal(t, "Rabat", rows[0]["seller_city"])
	assert.Equal(t, "PEUGEOT", rows[0]["brand"])

	second := rows[1]
	assert.Equal(t, "2", second["id"])
	assert.Equal(t, "Dacia Logan", second["title"])
	assert.Equal(t, "70 000 DH", second["price"])
	assert.Equal(t, "2015", second["year"])
	assert.Equal(t, "2_Dacia_Logan", second["folder"])
	for _, key := range models.DetailFields {
		assert.Equal(t, models.Unknown, second[key], key)
	}
	assert.Equal(t, "", second["images"])

	assert.Len(t, sink.records, 2)
	assert.Equal(t, 2, res.Report.TotalListings)
	assert.Equal(t, 1, res.Report.Failed)

	listings, err := storage.ReadListings(res.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, res.Listings, listings)
}

func TestRunRejectsBadScopeBeforeOpeningSessions(t *testing.T) {
	web := twoListingWeb()
	o := newOrchestrator(t, web, Options{Scope: scraper.Scope{Start: 3, End: 1}})

	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, scraper.ErrInvalidPageRange)
	assert.Zero(t, web.Opened())
	assert.Empty(t, web.Visited())
}

func TestRunRejectsUnknownPhase(t *testing.T) {
	web := twoListingWeb()
	o := newOrchestrator(t, web, Options{Phase: "crawl"})

	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, scraper.ErrInvalidPhase)
	assert.Zero(t, web.Opened())
}

func TestRunEnrichNeedsArtifact(t *testing.T) {
	web := twoListingWeb()
	o := newOrchestrator(t, web, Options{Phase: PhaseEnrich})

	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, scraper.ErrMissingArtifact)
	assert.True(t, scraper.IsKind(err, scraper.KindRun))
	assert.Zero(t, web.Opened())
}

func TestRunPhasesSplitDiscoveryAndEnrichment(t *testing.T) {
	dir := t.TempDir()
	web := twoListingWeb()

	res, err := newOrchestrator(t, web, Options{OutputDir: dir, Phase: PhaseDiscover}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Listings, 2)
	assert.Empty(t, res.Records)
	assert.FileExists(t, filepath.Join(dir, "testsite_listings_p1-p1.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "testsite_details_p1-p1.csv"))

	visitedAfterDiscovery := len(web.Visited())

	res, err = newOrchestrator(t, web, Options{OutputDir: dir, Phase: PhaseEnrich}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "1_Peugeot_208", res.Records[0].Basic.Folder)
	assert.Equal(t, filepath.Join(dir, "testsite_details_p1-p1.csv"), res.OutputPath)

	assert.NotContains(t, web.Visited()[visitedAfterDiscovery:], scrapertest.ListURL(1))
}

func TestRunParallelWorkersKeepDiscoveryOrder(t *testing.T) {
	cards := []scrapertest.Card{}
	web := scrapertest.NewWeb()
	for i, title := range []string{"Audi A3", "BMW Serie1", "Citroen C3", "Dacia Duster", "Fiat Tipo"} {
		href := "/annonce/" + string(rune('a'+i))
		cards = append(cards, scrapertest.Card{Title: title, Href: href})
		web.Page(scrapertest.BaseURL+href, scrapertest.DetailPage(scrapertest.Detail{
			Labels: [][2]string{{"Kilométrage", title}},
		}))
	}
	web.Page(scrapertest.ListURL(1), scrapertest.ListingPage(cards...))

	res, err := newOrchestrator(t, web, Options{DetailWorkers: 3}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 5)

	for i, rec := range res.Records {
		assert.Equal(t, i+1, rec.Basic.ID)
		assert.Equal(t, cards[i].Title, rec.Detail.Mileage.Value)
		assert.Equal(t, rec.Basic.Folder, rec.Detail.Folder)
	}
	assert.Equal(t, 4, web.Opened(), "one discovery session and three detail sessions")
}

func TestRunPausesBetweenDetailVisits(t *testing.T) {
	web := twoListingWeb()
	o := newOrchestrator(t, web, Options{
		ListingDelay: 150 * time.Millisecond,
		Detail:       scraper.DetailOptions{Settle: 200 * time.Millisecond},
	})

	_, err := o.Run(context.Background())
	require.NoError(t, err)

	visited := web.Visited()
	require.Equal(t, []string{scrapertest.ListURL(1), scrapertest.BaseURL + "/annonce/1", scrapertest.BaseURL + "/annonce/2"}, visited)

	times := web.VisitTimes()
	gap := times[2].Sub(times[1])
	assert.GreaterOrEqual(t, gap, 350*time.Millisecond, "settle plus the listing delay separate two visits")
}

func TestRunUsesCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cp, err := storage.OpenCheckpoint(filepath.Join(dir, "checkpoint.db"))
	require.NoError(t, err)
	defer cp.Close()

	web := twoListingWeb()
	_, err = newOrchestrator(t, web, Options{OutputDir: dir}).WithCheckpoint(cp).Run(context.Background())
	require.NoError(t, err)

	rerun := twoListingWeb()
	res, err := newOrchestrator(t, rerun, Options{OutputDir: dir, Phase: PhaseEnrich}).WithCheckpoint(cp).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	assert.Equal(t, "60 000", res.Records[0].Detail.Mileage.Value)
	assert.Equal(t, []string{scrapertest.BaseURL + "/annonce/2"}, rerun.Visited(),
		"only the unresolved listing is visited again")
}

func TestRunSinkFailureDoesNotStopOthers(t *testing.T) {
	sink := &recordingSink{}
	o := newOrchestrator(t, twoListingWeb(), Options{}).WithSinks(failingSink{}, sink)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sink.records, 2)
	assert.FileExists(t, res.OutputPath)
}

func TestRunCancelledStillWritesSinks(t *testing.T) {
	sink := &recordingSink{}
	o := newOrchestrator(t, twoListingWeb(), Options{}).WithSinks(sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Empty(t, res.Records)
	assert.NoError(t, sink.ctxErr, "sinks run on a context detached from the cancellation")
	assert.FileExists(t, res.OutputPath)
}

func TestLatestOutputPath(t *testing.T) {
	o := newOrchestrator(t, scrapertest.NewWeb(), Options{OutputDir: "out", Scope: scraper.Scope{Start: 1, End: 1, Single: true}})
	assert.Equal(t, filepath.Join("out", "testsite_latest.csv"), o.OutputPath())
	assert.Equal(t, filepath.Join("out", "testsite_listings_p1-p1.csv"), o.ArtifactPath())
}

func TestParsePhase(t *testing.T) {
	for in, want := range map[string]Phase{"": PhaseAll, "all": PhaseAll, "discover": PhaseDiscover, "enrich": PhaseEnrich} {
		got, err := ParsePhase(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParsePhase("scrape")
	assert.ErrorIs(t, err, scraper.ErrInvalidPhase)
}
