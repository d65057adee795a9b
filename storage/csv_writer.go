package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"marketplace-scraper/models"
)

// CSVWriter writes merged records to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, w, err := createCSV(path, models.CombinedHeader)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{path: path, file: f, writer: w}, nil
}

func (c *CSVWriter) Name() string { return "csv" }

// Path is the file being written.
func (c *CSVWriter) Path() string { return c.path }

// Write appends one row per record in CombinedHeader order.
func (c *CSVWriter) Write(_ context.Context, records []models.CombinedRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range records {
		if err := c.writer.Write(r.Row()); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}

func createCSV(path string, header []string) (*os.File, *csv.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()
	return f, w, nil
}

// WriteListings stores the discovery batch as the intermediate artifact that
// lets enrichment run separately from discovery.
func WriteListings(path string, listings []models.BasicListing) error {
	f, w, err := createCSV(path, models.BasicHeader)
	if err != nil {
		return err
	}
	for _, l := range listings {
		if err := w.Write(l.Row()); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv: write listing %d: %w", l.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	return f.Close()
}

// ReadListings loads an artifact written by WriteListings. Sentinel values
// come back as unknown fields.
func ReadListings(path string) ([]models.BasicListing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(models.BasicHeader)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv: %q has no header", path)
	}

	listings := make([]models.BasicListing, 0, len(rows)-1)
	for i, row := range rows[1:] {
		id, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("csv: %q line %d: bad id %q", path, i+2, row[0])
		}
		listings = append(listings, models.BasicListing{
			ID:           id,
			Title:        models.ParseField(row[1]),
			Price:        models.ParseField(row[2]),
			PublishedAt:  models.ParseField(row[3]),
			Year:         models.ParseField(row[4]),
			FuelType:     models.ParseField(row[5]),
			Transmission: models.ParseField(row[6]),
			Seller:       models.ParseField(row[7]),
			URL:          models.ParseField(row[8]),
			Folder:       row[9],
		})
	}
	return listings, nil
}
