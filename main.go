package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"marketplace-scraper/config"
	"marketplace-scraper/metrics"
	"marketplace-scraper/pipeline"
	"marketplace-scraper/scraper"
	"marketplace-scraper/scraper/sites"
	"marketplace-scraper/storage"
	"marketplace-scraper/utils"
)

func main() {
	cfg := config.Load()

	flag.StringVar(&cfg.Site, "site", cfg.Site, "marketplace to scrape (avito, moteur or a SITES_FILE entry)")
	flag.IntVar(&cfg.StartPage, "start", cfg.StartPage, "first discovery page")
	flag.IntVar(&cfg.EndPage, "end", cfg.EndPage, "last discovery page")
	flag.BoolVar(&cfg.Latest, "latest", false, "scrape page 1 only and stop at the first empty page")
	flag.StringVar(&cfg.Phase, "phase", cfg.Phase, "all, discover or enrich")
	flag.Parse()

	logger := utils.NewLoggerWith(utils.LogOptions{Level: cfg.LogLevel, File: cfg.LogFile})
	os.Exit(run(cfg, logger))
}

func run(cfg *config.Config, logger *utils.Logger) int {
	runID := uuid.NewString()

	// Run-level checks happen before the browser starts.
	if err := cfg.Validate(); err != nil {
		logger.Error("%s", scraper.UserMessage(err))
		return 2
	}
	profile, err := sites.Profile(cfg.Site, cfg.SitesFile)
	if err != nil {
		logger.Error("%s", scraper.UserMessage(err))
		return 2
	}
	phase, err := pipeline.ParsePhase(cfg.Phase)
	if err != nil {
		logger.Error("%s", scraper.UserMessage(err))
		return 2
	}
	scope := cfg.Scope()

	logger.Info("=== Marketplace scraper starting (run %s) ===", runID)
	logger.Info("Config: site %s | pages %d-%d | phase %s | detail workers %d | delay %v",
		cfg.Site, scope.Start, scope.End, phase, cfg.DetailWorkers, cfg.ListingDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go metrics.Serve(ctx, cfg.MetricsAddr, logger)
	}

	browser, err := scraper.NewBrowser(scraper.BrowserOptions{
		ChromeBin:         cfg.ChromeBin,
		Headless:          cfg.Headless,
		NavigationTimeout: cfg.NavigationTimeout,
		AcceptLanguage:    "fr-FR,fr;q=0.9",
	}, logger)
	if err != nil {
		logger.Error("Failed to start Chrome: %v", err)
		return 1
	}
	defer browser.Close()

	orch := pipeline.New(profile, pipeline.Options{
		RunID:         runID,
		Scope:         scope,
		Phase:         phase,
		OutputDir:     cfg.OutputDir,
		ImagesDir:     cfg.ImagesRoot(),
		ImageTimeout:  cfg.ImageTimeout,
		ImageWorkers:  cfg.ImageWorkers,
		DetailWorkers: cfg.DetailWorkers,
		ListingDelay:  cfg.ListingDelay,
		Discover: scraper.DiscoverOptions{
			PageLoadTimeout: cfg.PageLoadTimeout,
			ScrollSettle:    cfg.ScrollSettle,
			MaxRetries:      cfg.MaxRetries,
		},
		Detail: scraper.DetailOptions{
			Settle:       cfg.DetailSettle,
			ScrollSettle: cfg.ScrollSettle,
			ExpandSettle: cfg.ExpandSettle,
			MaxRetries:   cfg.MaxRetries,
		},
	}, browser, logger)

	if cfg.CheckpointDB != "" {
		cp, err := storage.OpenCheckpoint(cfg.CheckpointDB)
		if err != nil {
			logger.Warn("Checkpoint disabled: %v", err)
		} else {
			defer cp.Close()
			orch.WithCheckpoint(cp)
		}
	}

	for _, sink := range openSinks(ctx, cfg, runID, logger) {
		defer sink.Close()
		orch.WithSinks(sink)
	}

	res, err := orch.Run(ctx)
	if err != nil {
		var se *scraper.Error
		if errors.As(err, &se) && se.Kind == scraper.KindRun {
			logger.Error("%s", scraper.UserMessage(err))
			return 2
		}
		logger.Error("Run failed: %v", err)
		return 1
	}

	if phase == pipeline.PhaseDiscover {
		fmt.Printf("\n  Done. %d listings → %s\n\n", len(res.Listings), res.ArtifactPath)
		return 0
	}

	orch.Report(os.Stdout, res)
	fmt.Printf("  Done. %d records → %s | images → %s\n\n", len(res.Records), res.OutputPath, cfg.ImagesRoot())
	if res.Interrupted {
		logger.Warn("Run was interrupted; output holds the records finished before the stop")
	}
	return 0
}

// openSinks connects the optional sinks. A sink that cannot connect is
// skipped; the CSV output is always written.
func openSinks(ctx context.Context, cfg *config.Config, runID string, logger *utils.Logger) []storage.RecordWriter {
	var sinks []storage.RecordWriter

	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(ctx, cfg.DSN(), cfg.Site, runID)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
		} else {
			sinks = append(sinks, pg)
		}
	}

	if cfg.RedisEnabled {
		pub, err := storage.NewStreamPublisher(ctx, storage.StreamOptions{
			Addr:    cfg.RedisAddr,
			Stream:  cfg.Stream(),
			MaxLen:  cfg.RedisMaxLen,
			Timeout: cfg.PublishTimeout,
			Site:    cfg.Site,
			RunID:   runID,
		})
		if err != nil {
			logger.Error("Failed to connect to Redis: %v", err)
		} else {
			sinks = append(sinks, pub)
		}
	}

	return sinks
}
