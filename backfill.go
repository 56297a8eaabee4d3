package docindex

import (
	"context"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/andreyvit/docindex/value"
	"golang.org/x/sync/errgroup"
)

// BackfillSink receives the keys of one row. Calls are serialized.
type BackfillSink func(pk []byte, keys [][]byte) error

// Backfill extracts keys for every row of rows using up to workers
// goroutines and hands them to sink. It stops at the first extraction or
// sink error, or when ctx is done. Rows reach sink in no particular order.
func Backfill(ctx context.Context, idx *Index, rows iter.Seq2[[]byte, value.Value], workers int, sink BackfillSink) (int, error) {
	if workers <= 0 {
		workers = 1
	}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	var n int
	for pk, row := range rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			keys, err := idx.Extract(row)
			observeExtract(idx, len(keys), err)
			if err != nil {
				return storeErrf(idx.table, idx, pk, err, "backfill")
			}
			mu.Lock()
			defer mu.Unlock()
			n++
			return sink(pk, keys)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	elapsed := time.Since(start)
	BackfillDuration.WithLabelValues(idx.table.Name, idx.Name()).Observe(float64(elapsed.Milliseconds()))
	idx.logger.LogAttrs(ctx, slog.LevelInfo, "backfill finished",
		slog.String("index", idx.String()),
		slog.Int("rows", n),
		slog.Duration("elapsed", elapsed),
		slog.Bool("ok", err == nil))
	return n, err
}
