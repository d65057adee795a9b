package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"marketplace-scraper/models"
)

var pgColumns = []string{
	"run_id", "site", "ordinal", "title", "price", "published_at", "year", "fuel_type", "transmission",
	"seller", "url", "category", "sector", "mileage", "brand", "model", "doors", "origin", "first_hand",
	"fiscal_power", "condition", "equipment", "seller_city", "folder", "images",
}

// PostgresWriter persists merged records to PostgreSQL. Unknown fields are
// stored as NULL.
type PostgresWriter struct {
	db    *sql.DB
	site  string
	runID string
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn, site, runID string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, site: site, runID: runID}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vehicle_listings (
			id           SERIAL PRIMARY KEY,
			run_id       UUID         NOT NULL,
			site         VARCHAR(50)  NOT NULL,
			ordinal      INTEGER      NOT NULL,
			title        TEXT,
			price        TEXT,
			published_at TEXT,
			year         TEXT,
			fuel_type    TEXT,
			transmission TEXT,
			seller       TEXT,
			url          TEXT,
			category     TEXT,
			sector       TEXT,
			mileage      TEXT,
			brand        TEXT,
			model        TEXT,
			doors        TEXT,
			origin       TEXT,
			first_hand   TEXT,
			fiscal_power TEXT,
			condition    TEXT,
			equipment    TEXT,
			seller_city  TEXT,
			folder       TEXT         NOT NULL,
			images       TEXT         NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (run_id, ordinal)
		);

		CREATE INDEX IF NOT EXISTS idx_vehicle_listings_site  ON vehicle_listings(site);
		CREATE INDEX IF NOT EXISTS idx_vehicle_listings_url   ON vehicle_listings(url);
		CREATE INDEX IF NOT EXISTS idx_vehicle_listings_brand ON vehicle_listings(brand);
	`)
	return err
}

func (pw *PostgresWriter) Name() string { return "postgres" }

// Write batch-inserts the records of this run.
func (pw *PostgresWriter) Write(ctx context.Context, records []models.CombinedRecord) error {
	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := pw.insertBatch(ctx, records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(ctx context.Context, batch []models.CombinedRecord) error {
	n := len(pgColumns)
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*n)

	for idx, r := range batch {
		placeholders := make([]string, n)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", idx*n+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs, pw.rowArgs(r)...)
	}

	query := fmt.Sprintf(`
		INSERT INTO vehicle_listings (%s)
		VALUES %s
		ON CONFLICT (run_id, ordinal) DO NOTHING
	`, strings.Join(pgColumns, ", "), strings.Join(valueStrings, ","))

	if _, err := pw.db.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("postgres: insert batch: %w", err)
	}
	return nil
}

// rowArgs follows pgColumns.
func (pw *PostgresWriter) rowArgs(r models.CombinedRecord) []interface{} {
	b, d := r.Basic, r.Detail
	args := []interface{}{
		pw.runID, pw.site, b.ID,
		nullable(b.Title), nullable(b.Price), nullable(b.PublishedAt), nullable(b.Year),
		nullable(b.FuelType), nullable(b.Transmission), nullable(b.Seller), nullable(b.URL),
	}
	for _, key := range models.DetailFields {
		args = append(args, nullable(*d.Slot(key)))
	}
	return append(args, b.Folder, d.ImagePaths())
}

func nullable(f models.Field) sql.NullString {
	return sql.NullString{String: f.Value, Valid: f.Known}
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
