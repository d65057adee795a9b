package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"marketplace-scraper/metrics"
	"marketplace-scraper/models"
	"marketplace-scraper/utils"
)

// ImageHarvester downloads listing photos into one folder per listing.
type ImageHarvester struct {
	client  *http.Client
	root    string
	workers int
	logger  *utils.Logger
}

// NewImageHarvester stores images under root, fetching at most workers at a
// time with the given per-image timeout.
func NewImageHarvester(root string, timeout time.Duration, workers int, logger *utils.Logger) *ImageHarvester {
	if workers < 1 {
		workers = 1
	}
	return &ImageHarvester{
		client:  &http.Client{Timeout: timeout},
		root:    root,
		workers: workers,
		logger:  logger,
	}
}

// Root is the directory asset paths are relative to.
func (h *ImageHarvester) Root() string { return h.root }

// Harvest fetches urls into <root>/<folder>/image_<n>.<ext>, n being the
// 1-based position in urls. Failed images are skipped without renumbering the
// rest. The returned references are in input order.
func (h *ImageHarvester) Harvest(ctx context.Context, folder string, urls []string) []models.AssetReference {
	dir := filepath.Join(h.root, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		h.logger.Error("[images] %s: create folder: %v", folder, err)
		return nil
	}
	if len(urls) == 0 {
		return nil
	}

	written := make([]*models.AssetReference, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)

	for i, u := range urls {
		g.Go(func() error {
			ref, err := h.fetch(gctx, dir, folder, i+1, u)
			if err != nil {
				metrics.ImagesTotal.WithLabelValues("failed").Inc()
				h.logger.Warn("[images] %s: image %d (%s) skipped: %v", folder, i+1, u, err)
				return nil
			}
			metrics.ImagesTotal.WithLabelValues("ok").Inc()
			written[i] = &ref
			return nil
		})
	}
	_ = g.Wait()

	refs := make([]models.AssetReference, 0, len(urls))
	for _, ref := range written {
		if ref != nil {
			refs = append(refs, *ref)
		}
	}
	h.logger.Debug("[images] %s: %d/%d images written", folder, len(refs), len(urls))
	return refs
}

func (h *ImageHarvester) fetch(ctx context.Context, dir, folder string, index int, src string) (models.AssetReference, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return models.AssetReference{}, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return models.AssetReference{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.AssetReference{}, fmt.Errorf("bad status code: %d", resp.StatusCode)
	}

	name := fmt.Sprintf("image_%d%s", index, extensionFor(resp.Header.Get("Content-Type")))
	target := filepath.Join(dir, name)

	f, err := os.Create(target)
	if err != nil {
		return models.AssetReference{}, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return models.AssetReference{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(target)
		return models.AssetReference{}, fmt.Errorf("close %s: %w", name, err)
	}

	return models.AssetReference{Index: index, Path: path.Join(folder, name)}, nil
}

func extensionFor(contentType string) string {
	if strings.Contains(strings.ToLower(contentType), "png") {
		return ".png"
	}
	return ".jpg"
}
