package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marketplace-scraper/scraper"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Site      string
	StartPage int
	EndPage   int
	Latest    bool
	Phase     string
	SitesFile string

	OutputDir string
	ImagesDir string

	PageLoadTimeout   time.Duration
	NavigationTimeout time.Duration
	ScrollSettle      time.Duration
	DetailSettle      time.Duration
	ExpandSettle      time.Duration
	ListingDelay      time.Duration
	ImageTimeout      time.Duration
	ImageWorkers      int
	DetailWorkers     int
	MaxRetries        int

	ChromeBin string
	Headless  bool

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisEnabled   bool
	RedisAddr      string
	RedisStream    string
	RedisMaxLen    int64
	PublishTimeout time.Duration

	CheckpointDB string
	MetricsAddr  string
	LogLevel     string
	LogFile      string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		Site:      getEnv("SITE", "avito"),
		StartPage: getEnvInt("START_PAGE", 1),
		EndPage:   getEnvInt("END_PAGE", 1),
		Phase:     getEnv("PHASE", "all"),
		SitesFile: getEnv("SITES_FILE", ""),

		OutputDir: getEnv("OUTPUT_DIR", "./output"),
		ImagesDir: getEnv("IMAGES_DIR", ""),

		PageLoadTimeout:   getEnvDuration("PAGE_LOAD_TIMEOUT", 10*time.Second),
		NavigationTimeout: getEnvDuration("NAVIGATION_TIMEOUT", 60*time.Second),
		ScrollSettle:      getEnvDuration("SCROLL_SETTLE", 3*time.Second),
		DetailSettle:      getEnvDuration("DETAIL_SETTLE", 3*time.Second),
		ExpandSettle:      getEnvDuration("EXPAND_SETTLE", time.Second),
		ListingDelay:      getEnvDuration("LISTING_DELAY", 2*time.Second),
		ImageTimeout:      getEnvDuration("IMAGE_TIMEOUT", 10*time.Second),
		ImageWorkers:      getEnvInt("IMAGE_WORKERS", 4),
		DetailWorkers:     getEnvInt("DETAIL_WORKERS", 1),
		MaxRetries:        getEnvInt("MAX_RETRIES", 2),

		ChromeBin: getEnv("CHROME_BIN", ""),
		Headless:  getEnvBool("HEADLESS", true),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "vehicles_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisEnabled:   getEnvBool("REDIS_ENABLED", false),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisStream:    getEnv("REDIS_STREAM", ""),
		RedisMaxLen:    int64(getEnvInt("REDIS_MAXLEN", 0)),
		PublishTimeout: getEnvDuration("PUBLISH_TIMEOUT", 10*time.Second),

		CheckpointDB: getEnv("CHECKPOINT_DB", ""),
		MetricsAddr:  getEnv("METRICS_ADDR", ""),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
	}
}

// Scope is the page selection of the run. Latest mode always means page 1 only.
func (c *Config) Scope() scraper.Scope {
	if c.Latest {
		return scraper.Scope{Start: 1, End: 1, Single: true}
	}
	return scraper.Scope{Start: c.StartPage, End: c.EndPage}
}

// Validate rejects a configuration no run could succeed with. It never
// touches the network.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Site) == "" {
		return scraper.RunError(scraper.ErrUnknownSite, "no site configured")
	}
	if err := c.Scope().Validate(); err != nil {
		return err
	}
	switch c.Phase {
	case "all", "discover", "enrich":
	default:
		return scraper.RunError(scraper.ErrInvalidPhase, "%q is not one of all, discover, enrich", c.Phase)
	}
	return nil
}

// ImagesRoot defaults to <OUTPUT_DIR>/<site>_images.
func (c *Config) ImagesRoot() string {
	if c.ImagesDir != "" {
		return c.ImagesDir
	}
	return filepath.Join(c.OutputDir, c.Site+"_images")
}

// Stream defaults to <site>_listings.
func (c *Config) Stream() string {
	if c.RedisStream != "" {
		return c.RedisStream
	}
	return c.Site + "_listings"
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("1500ms", "3s") or a bare number of
// milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}
