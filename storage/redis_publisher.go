package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketplace-scraper/models"
)

// StreamPublisher emits one Redis Streams entry per merged record. An entry
// counts as delivered once the server has returned its ID.
type StreamPublisher struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	timeout time.Duration
	site    string
	runID   string
}

// StreamOptions configures NewStreamPublisher.
type StreamOptions struct {
	Addr    string
	Stream  string
	MaxLen  int64
	Timeout time.Duration
	Site    string
	RunID   string
}

// NewStreamPublisher connects to Redis and checks the server answers.
func NewStreamPublisher(ctx context.Context, opts StreamOptions) (*StreamPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr})

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}

	return newStreamPublisher(client, opts), nil
}

func newStreamPublisher(client *redis.Client, opts StreamOptions) *StreamPublisher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &StreamPublisher{
		client:  client,
		stream:  opts.Stream,
		maxLen:  opts.MaxLen,
		timeout: opts.Timeout,
		site:    opts.Site,
		runID:   opts.RunID,
	}
}

func (p *StreamPublisher) Name() string { return "redis" }

// Write publishes every record, each bounded by the publish timeout. Failed
// entries do not stop the rest; the error reports how many were lost.
func (p *StreamPublisher) Write(ctx context.Context, records []models.CombinedRecord) error {
	failed := 0
	var lastErr error
	for _, r := range records {
		if err := p.publish(ctx, r); err != nil {
			failed++
			lastErr = err
		}
	}
	if failed > 0 {
		return fmt.Errorf("redis: %d of %d records not acknowledged: %w", failed, len(records), lastErr)
	}
	return nil
}

func (p *StreamPublisher) publish(ctx context.Context, r models.CombinedRecord) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: entryValues(r, p.site, p.runID),
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd listing %d: %w", r.Basic.ID, err)
	}
	return nil
}

func entryValues(r models.CombinedRecord, site, runID string) map[string]interface{} {
	values := make(map[string]interface{}, len(models.CombinedHeader)+2)
	for k, v := range r.Values() {
		values[k] = v
	}
	values["site"] = site
	values["run_id"] = runID
	return values
}

func (p *StreamPublisher) Close() error {
	return p.client.Close()
}
