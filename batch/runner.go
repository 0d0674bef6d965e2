package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"reelcomposer/logging"
)

// RenderFunc renders one batch and returns the path of its segment
type RenderFunc func(ctx context.Context, b Batch) (string, error)

// Runner renders batches with bounded parallelism
type Runner struct {
	Concurrency int
	Logger      *slog.Logger
}

// NewRunner creates a runner; concurrency below one means sequential
func NewRunner(concurrency int, logger *slog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runner{Concurrency: concurrency, Logger: logger}
}

// Run renders every batch and returns segment paths in batch order. The
// first failure cancels the remaining renders; Run returns only after all
// started renders have finished.
func (r *Runner) Run(ctx context.Context, batches []Batch, render RenderFunc) ([]string, error) {
	paths := make([]string, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)

	for i, b := range batches {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log := logging.WithBatch(r.Logger, b.Index)
			start := time.Now()
			log.Debug("rendering batch", "images", len(b.Images), "duration", b.SegmentDuration)

			path, err := render(gctx, b)
			if err != nil {
				log.Warn("batch failed", "error", err)
				return fmt.Errorf("batch %d: %w", b.Index, err)
			}
			log.Info("batch rendered", "path", logging.SanitizePath(path), "elapsed", time.Since(start).Round(time.Millisecond))
			paths[i] = path
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
