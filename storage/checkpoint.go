package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"marketplace-scraper/models"
)

// Checkpoint remembers enrichment results between runs so an interrupted
// enrich phase can resume without revisiting finished listings.
type Checkpoint struct {
	db *sql.DB
}

// OpenCheckpoint opens (or creates) the SQLite checkpoint database at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: enable WAL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS details (
			site       TEXT NOT NULL,
			folder     TEXT NOT NULL,
			url        TEXT NOT NULL,
			record     TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (site, folder, url)
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("checkpoint: migrate: %w", err)
	}

	return &Checkpoint{db: db}, nil
}

// Load returns the stored record for the listing, if any.
func (c *Checkpoint) Load(ctx context.Context, site string, listing models.BasicListing) (models.DetailRecord, bool, error) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT record FROM details WHERE site = ? AND folder = ? AND url = ?`,
		site, listing.Folder, listing.URL.String(),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return models.DetailRecord{}, false, nil
	}
	if err != nil {
		return models.DetailRecord{}, false, fmt.Errorf("checkpoint: load %s: %w", listing.Folder, err)
	}

	var rec models.DetailRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return models.DetailRecord{}, false, fmt.Errorf("checkpoint: decode %s: %w", listing.Folder, err)
	}
	return rec, true, nil
}

// Save stores a record. Records that resolved nothing are skipped so a later
// run retries them.
func (c *Checkpoint) Save(ctx context.Context, site string, listing models.BasicListing, rec models.DetailRecord) error {
	if !rec.Resolved() {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("checkpoint: encode %s: %w", listing.Folder, err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO details (site, folder, url, record, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(site, folder, url) DO UPDATE SET
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP
	`, site, listing.Folder, listing.URL.String(), string(raw))
	if err != nil {
		return fmt.Errorf("checkpoint: save %s: %w", listing.Folder, err)
	}
	return nil
}

func (c *Checkpoint) Close() error {
	return c.db.Close()
}
