package storage

import (
	"context"

	"marketplace-scraper/models"
)

// RecordWriter is the interface any output sink must satisfy. Write receives
// the whole batch of a run at once.
type RecordWriter interface {
	Name() string
	Write(ctx context.Context, records []models.CombinedRecord) error
	Close() error
}
