package images

import (
	"context"
	"log/slog"

	"minimarket/internal/apperrors"

	"golang.org/x/sync/semaphore"
)

// MaxConcurrentDecodes caps how many uploads are decoded and resized at once.
// Each decode may hold up to MaxPixels worth of bitmap.
const MaxConcurrentDecodes = 2

// Pipeline normalizes an upload and hands the result to a Store.
type Pipeline struct {
	normalizer *Normalizer
	store      Store
	decodes    *semaphore.Weighted
	log        *slog.Logger
}

func NewPipeline(normalizer *Normalizer, store Store, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		normalizer: normalizer,
		store:      store,
		decodes:    semaphore.NewWeighted(MaxConcurrentDecodes),
		log:        log,
	}
}

// Process returns the public URL of the normalized image. Nothing is uploaded
// when normalization fails.
func (p *Pipeline) Process(ctx context.Context, contentType string, raw []byte) (string, error) {
	normalized, err := p.normalize(ctx, contentType, raw)
	if err != nil {
		return "", err
	}
	url, err := p.store.Upload(ctx, normalized)
	if err != nil {
		p.log.Error("image upload failed", "error", err)
		return "", err
	}
	p.log.Info("image uploaded", "original_bytes", len(raw), "normalized_bytes", len(normalized), "url", url)
	return url, nil
}

func (p *Pipeline) normalize(ctx context.Context, contentType string, raw []byte) ([]byte, error) {
	// oversize payloads are refused before waiting for a slot
	if err := p.normalizer.CheckSize(int64(len(raw))); err != nil {
		return nil, err
	}
	if err := p.decodes.Acquire(ctx, 1); err != nil {
		return nil, apperrors.Wrap(apperrors.KindUploadFailed, "image processing cancelled", err)
	}
	defer p.decodes.Release(1)
	return p.normalizer.Normalize(contentType, raw)
}

// CheckSize exposes the normalizer's size ceiling so callers can reject a
// payload before reading it.
func (p *Pipeline) CheckSize(size int64) error {
	return p.normalizer.CheckSize(size)
}
