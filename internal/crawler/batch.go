package crawler

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batches splits items into contiguous slices of at most size elements.
// A size below 1 is treated as 1.
func Batches[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end:end])
	}
	return out
}

// EnrichFunc transforms one item.
type EnrichFunc[T any] func(ctx context.Context, item T) (T, error)

// EnrichBatches runs fn over items in sequential batches of size, with the
// items of a batch processed concurrently. Results keep input order. A failed
// item keeps its input value and is logged; siblings are not cancelled.
// It returns the number of failed items.
func EnrichBatches[T any](ctx context.Context, items []T, size int, fn EnrichFunc[T], logger *zap.Logger) ([]T, int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := make([]T, len(items))
	copy(out, items)
	failed := make([]bool, len(items))

	batches := Batches(items, size)
	offset := 0
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return out, countTrue(failed), err
		}
		logger.Info("processing batch",
			zap.Int("batch", i+1),
			zap.Int("of", len(batches)),
			zap.Int("size", len(batch)),
		)

		var g errgroup.Group
		for j, item := range batch {
			idx := offset + j
			g.Go(func() error {
				res, err := fn(ctx, item)
				if err != nil {
					failed[idx] = true
					logger.Warn("item failed, keeping input", zap.Int("index", idx), zap.Error(err))
					return nil
				}
				out[idx] = res
				return nil
			})
		}
		_ = g.Wait()
		offset += len(batch)
	}
	return out, countTrue(failed), ctx.Err()
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}
