// Package pipeline sequences one scraping run: discovery, the intermediate
// listings artifact, detail enrichment and the final batch write to sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"marketplace-scraper/metrics"
	"marketplace-scraper/models"
	"marketplace-scraper/scraper"
	"marketplace-scraper/services"
	"marketplace-scraper/storage"
	"marketplace-scraper/utils"
)

// Phase selects which half of the pipeline a run executes.
type Phase string

const (
	PhaseAll      Phase = "all"
	PhaseDiscover Phase = "discover"
	PhaseEnrich   Phase = "enrich"
)

// ParsePhase rejects anything but the three known phases.
func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case PhaseAll, PhaseDiscover, PhaseEnrich:
		return p, nil
	case "":
		return PhaseAll, nil
	}
	return "", scraper.RunError(scraper.ErrInvalidPhase, "%q is not one of all, discover, enrich", s)
}

// Checkpoint stores finished detail records between runs.
type Checkpoint interface {
	Load(ctx context.Context, site string, listing models.BasicListing) (models.DetailRecord, bool, error)
	Save(ctx context.Context, site string, listing models.BasicListing, rec models.DetailRecord) error
}

// Options configures an Orchestrator.
type Options struct {
	RunID         string
	Scope         scraper.Scope
	Phase         Phase
	OutputDir     string
	ImagesDir     string
	ImageTimeout  time.Duration
	ImageWorkers  int
	DetailWorkers int
	ListingDelay  time.Duration
	Discover      scraper.DiscoverOptions
	Detail        scraper.DetailOptions
}

// Result is what a run produced. Interrupted is set when the run was
// cancelled; Records then holds only the listings finished before the stop.
type Result struct {
	Listings     []models.BasicListing
	Records      []models.CombinedRecord
	ArtifactPath string
	OutputPath   string
	Report       *models.RunReport
	Interrupted  bool
}

// Orchestrator runs the pipeline for one site profile.
type Orchestrator struct {
	profile    *scraper.Profile
	opts       Options
	sessions   scraper.SessionFactory
	checkpoint Checkpoint
	sinks      []storage.RecordWriter
	insights   *services.InsightService
	logger     *utils.Logger
}

func New(profile *scraper.Profile, opts Options, sessions scraper.SessionFactory, logger *utils.Logger) *Orchestrator {
	if opts.Phase == "" {
		opts.Phase = PhaseAll
	}
	if opts.DetailWorkers < 1 {
		opts.DetailWorkers = 1
	}
	if opts.ImagesDir == "" {
		opts.ImagesDir = filepath.Join(opts.OutputDir, profile.Site.Name+"_images")
	}
	return &Orchestrator{
		profile:  profile,
		opts:     opts,
		sessions: sessions,
		insights: services.NewInsightService(logger),
		logger:   logger,
	}
}

// WithCheckpoint enables resumable enrichment.
func (o *Orchestrator) WithCheckpoint(cp Checkpoint) *Orchestrator {
	o.checkpoint = cp
	return o
}

// WithSinks adds output sinks besides the CSV file. The caller owns them and
// closes them after Run.
func (o *Orchestrator) WithSinks(sinks ...storage.RecordWriter) *Orchestrator {
	o.sinks = append(o.sinks, sinks...)
	return o
}

// ArtifactPath is where the discovery batch of this run is stored.
func (o *Orchestrator) ArtifactPath() string {
	s := o.opts.Scope
	return filepath.Join(o.opts.OutputDir, fmt.Sprintf("%s_listings_p%d-p%d.csv", o.profile.Site.Name, s.Start, s.End))
}

// OutputPath is the merged CSV of this run.
func (o *Orchestrator) OutputPath() string {
	s := o.opts.Scope
	if s.Single {
		return filepath.Join(o.opts.OutputDir, o.profile.Site.Name+"_latest.csv")
	}
	return filepath.Join(o.opts.OutputDir, fmt.Sprintf("%s_details_p%d-p%d.csv", o.profile.Site.Name, s.Start, s.End))
}

// Run executes the configured phase. Invalid configuration is rejected before
// any session is opened. Every other failure is absorbed below the run, so
// the only other errors are infrastructure ones such as no browser session.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if err := o.opts.Scope.Validate(); err != nil {
		return nil, err
	}
	if _, err := ParsePhase(string(o.opts.Phase)); err != nil {
		return nil, err
	}

	res := &Result{ArtifactPath: o.ArtifactPath()}
	site := o.profile.Site.Name

	if o.opts.Phase == PhaseEnrich {
		listings, err := storage.ReadListings(res.ArtifactPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, scraper.RunError(scraper.ErrMissingArtifact, "%s (run -phase discover first)", res.ArtifactPath)
			}
			return nil, err
		}
		res.Listings = listings
		o.logger.Info("[pipeline] Loaded %d listings from %s", len(listings), res.ArtifactPath)
	} else {
		listings, err := o.discover(ctx)
		if err != nil && !isCancel(err) {
			return nil, err
		}
		res.Listings = listings
		res.Interrupted = err != nil

		if werr := storage.WriteListings(res.ArtifactPath, listings); werr != nil {
			o.logger.Error("[pipeline] Could not write discovery artifact: %v", werr)
		} else {
			o.logger.Info("[pipeline] %d listings saved to %s", len(listings), res.ArtifactPath)
		}
	}

	if o.opts.Phase == PhaseDiscover {
		return res, nil
	}

	if !res.Interrupted {
		records, err := o.enrich(ctx, res.Listings)
		if err != nil {
			return nil, err
		}
		res.Records = records
		res.Interrupted = ctx.Err() != nil
	}
	if res.Interrupted {
		o.logger.Warn("[pipeline] Run interrupted, keeping %d finished records", len(res.Records))
	}

	// Sinks still get to write what was gathered after a cancellation.
	res.OutputPath = o.OutputPath()
	o.write(context.WithoutCancel(ctx), res.OutputPath, res.Records)

	res.Report = o.insights.Generate(site, o.opts.RunID, res.Records)
	return res, nil
}

// Report prints the run summary.
func (o *Orchestrator) Report(w io.Writer, res *Result) {
	if res == nil || res.Report == nil {
		return
	}
	o.insights.Print(w, res.Report)
}

func (o *Orchestrator) discover(ctx context.Context) ([]models.BasicListing, error) {
	nav, err := o.sessions.NewSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open discovery session: %w", err)
	}
	defer nav.Close()

	d := scraper.NewDiscoverer(o.profile, o.opts.Discover, o.logger)
	return d.Discover(ctx, nav, o.opts.Scope)
}

type enriched struct {
	index  int
	record models.DetailRecord
}

// enrich visits every detail page. Each worker owns one session and pauses
// for ListingDelay after each visit; the pool also spaces visit starts across
// sessions by the same interval. A single collector places records by
// discovery index so output order never depends on which worker finished first.
func (o *Orchestrator) enrich(ctx context.Context, listings []models.BasicListing) ([]models.CombinedRecord, error) {
	if len(listings) == 0 {
		return nil, nil
	}
	site := o.profile.Site.Name

	workers := o.opts.DetailWorkers
	if workers > len(listings) {
		workers = len(listings)
	}
	sessions := make(chan scraper.Navigator, workers)
	for i := 0; i < workers; i++ {
		nav, err := o.sessions.NewSession(ctx)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("open detail session: %w", err)
			}
			o.logger.Warn("[pipeline] Only %d of %d detail sessions opened: %v", i, workers, err)
			workers = i
			break
		}
		sessions <- nav
	}
	defer func() {
		close(sessions)
		for nav := range sessions {
			_ = nav.Close()
		}
	}()

	images := scraper.NewImageHarvester(o.opts.ImagesDir, o.opts.ImageTimeout, o.opts.ImageWorkers, o.logger)
	extractor := scraper.NewDetailExtractor(o.profile, o.opts.Detail, images, o.logger)

	done := make([]*models.DetailRecord, len(listings))
	results := make(chan enriched)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for r := range results {
			rec := r.record
			done[r.index] = &rec
		}
	}()

	o.logger.Info("[pipeline] Enriching %d listings with %d session(s)", len(listings), workers)
	pool := utils.NewWorkerPool(workers, o.opts.ListingDelay)
	for i, listing := range listings {
		if ctx.Err() != nil {
			break
		}

		if rec, ok := o.fromCheckpoint(ctx, listing); ok {
			metrics.DetailsTotal.WithLabelValues(site, "checkpoint").Inc()
			results <- enriched{index: i, record: rec}
			continue
		}

		pool.Submit(ctx, func() {
			nav := <-sessions
			defer func() { sessions <- nav }()

			o.logger.Info("[pipeline] [%d/%d] %s", i+1, len(listings), listing.Folder)
			rec := extractor.Extract(ctx, nav, listing)
			if ctx.Err() != nil {
				return
			}
			o.saveCheckpoint(ctx, listing, rec)
			results <- enriched{index: i, record: rec}

			// The session stays idle for the delay before its next visit.
			_ = utils.Sleep(ctx, o.opts.ListingDelay)
		})
	}
	pool.Wait()
	close(results)
	<-collected

	records := make([]models.CombinedRecord, 0, len(listings))
	for i, listing := range listings {
		if done[i] == nil {
			continue
		}
		records = append(records, services.Merge(listing, *done[i]))
	}
	return records, nil
}

func (o *Orchestrator) fromCheckpoint(ctx context.Context, listing models.BasicListing) (models.DetailRecord, bool) {
	if o.checkpoint == nil {
		return models.DetailRecord{}, false
	}
	rec, ok, err := o.checkpoint.Load(ctx, o.profile.Site.Name, listing)
	if err != nil {
		o.logger.Warn("[pipeline] %v", err)
		return models.DetailRecord{}, false
	}
	if ok {
		o.logger.Debug("[pipeline] %s: restored from checkpoint", listing.Folder)
	}
	return rec, ok
}

func (o *Orchestrator) saveCheckpoint(ctx context.Context, listing models.BasicListing, rec models.DetailRecord) {
	if o.checkpoint == nil {
		return
	}
	if err := o.checkpoint.Save(ctx, o.profile.Site.Name, listing, rec); err != nil {
		o.logger.Warn("[pipeline] %v", err)
	}
}

// write hands the whole batch to the CSV file and then every extra sink. A
// failing sink is logged and does not stop the others.
func (o *Orchestrator) write(ctx context.Context, path string, records []models.CombinedRecord) {
	csvWriter, err := storage.NewCSVWriter(path)
	if err != nil {
		o.logger.Error("[pipeline] %v", err)
	} else {
		o.writeTo(ctx, csvWriter, records)
		if err := csvWriter.Close(); err != nil {
			o.logger.Error("[pipeline] csv: close: %v", err)
		}
	}

	for _, sink := range o.sinks {
		o.writeTo(ctx, sink, records)
	}
}

func (o *Orchestrator) writeTo(ctx context.Context, sink storage.RecordWriter, records []models.CombinedRecord) {
	if err := sink.Write(ctx, records); err != nil {
		metrics.SinkWrites.WithLabelValues(sink.Name(), "failed").Add(float64(len(records)))
		o.logger.Error("[pipeline] %s write failed: %v", sink.Name(), err)
		return
	}
	metrics.SinkWrites.WithLabelValues(sink.Name(), "ok").Add(float64(len(records)))
	o.logger.Info("[pipeline] %d records written to %s", len(records), sink.Name())
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
