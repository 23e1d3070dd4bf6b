package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ilfeat/internal/domain"
	"ilfeat/internal/logging"
)

// Request is one batch row. Either IonicLiquid or both Cation and Anion are set.
type Request struct {
	Cation      string
	Anion       string
	IonicLiquid string
	Mixture     domain.Mixture
	Selections  []Selection
}

// BatchResult holds the row or the error of the request at Index. Tag is the
// stable error tag and empty on success.
type BatchResult struct {
	Index int
	Row   *domain.FeatureRow
	Err   error
	Tag   string
}

// ProgressFunc is called after every finished row.
type ProgressFunc func(done, total int)

const statusOK = "ok"

// ExtractBatch runs the requests on Options.Workers workers and returns one
// result per request in input order. A failing row never stops the others.
// After ctx is cancelled no new row starts; rows that never ran are tagged
// "cancelled".
func (e *Extractor) ExtractBatch(ctx context.Context, reqs []Request, progress ProgressFunc) []BatchResult {
	runID := uuid.NewString()
	logger := e.logger.With(logging.String("run_id", runID))
	logger.Info("batch started", logging.Int("rows", len(reqs)), logging.Int("workers", e.opts.Workers))
	start := time.Now()

	results := make([]BatchResult, len(reqs))
	for i := range results {
		results[i] = BatchResult{Index: i, Err: context.Canceled, Tag: domain.ErrorTag(context.Canceled)}
	}

	var (
		mu       sync.Mutex
		done     int
		finished = make([]bool, len(reqs))
	)
	finish := func(i int, row *domain.FeatureRow, err error) {
		r := BatchResult{Index: i, Row: row, Err: err, Tag: domain.ErrorTag(err)}
		status := statusOK
		if err != nil {
			status = r.Tag
			logger.Warn("row failed", logging.Int("row", i), logging.String("tag", r.Tag), logging.Err(err))
		}
		e.metrics.BatchRow(status)

		mu.Lock()
		results[i] = r
		finished[i] = true
		done++
		n := done
		mu.Unlock()
		if progress != nil {
			progress(n, len(reqs))
		}
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, req := range reqs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				finish(i, nil, err)
				return nil
			}
			row, err := e.extract(ctx, req)
			finish(i, row, err)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		skipped := 0
		for i := range finished {
			if !finished[i] {
				skipped++
				e.metrics.BatchRow(results[i].Tag)
			}
		}
		logger.Warn("batch cancelled", logging.Int("unfinished", skipped))
	}
	logger.Info("batch finished", logging.Duration("elapsed", time.Since(start)))
	return results
}

func (e *Extractor) extract(ctx context.Context, req Request) (*domain.FeatureRow, error) {
	if req.IonicLiquid != "" {
		return e.ExtractIonicLiquid(ctx, req.IonicLiquid, req.Mixture, req.Selections)
	}
	return e.ExtractFeatures(ctx, req.Cation, req.Anion, req.Mixture, req.Selections)
}
