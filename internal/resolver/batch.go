// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// defaultConcurrency is the batch worker cap when none is configured.
const defaultConcurrency = 3

// Recorder receives each finished outcome as it completes. The ledger
// implements it; a nil Recorder disables recording.
type Recorder interface {
	RecordOutcome(ctx context.Context, position int, outcome types.RetrievalOutcome) error
}

// RetrieveBatch resolves identifiers concurrently, at most Concurrency
// in flight. Every input yields exactly one outcome at its input
// position; individual failures never stop the batch (Per prd005-batch
// R2.1-R2.3). Per-item progress is buffered and flushed whole so
// interleaved workers do not shred each other's lines.
func (r *Resolver) RetrieveBatch(ctx context.Context, raws []string, rec Recorder, w io.Writer) types.BatchReport {
	limit := r.cfg.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	outcomes := make([]types.RetrievalOutcome, len(raws))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, raw := range raws {
		g.Go(func() error {
			var buf bytes.Buffer
			fmt.Fprintf(&buf, "[%d/%d] %s\n", i+1, len(raws), raw)

			outcome := r.Retrieve(gctx, raw, &buf)
			outcomes[i] = outcome

			// Audit rows must survive a cancelled batch: a half-finished
			// run with recorded outcomes beats one that vanished.
			if rec != nil {
				if err := rec.RecordOutcome(context.WithoutCancel(gctx), i, outcome); err != nil {
					fmt.Fprintf(&buf, "  warning: recording outcome: %v\n", err)
				}
			}

			mu.Lock()
			w.Write(buf.Bytes())
			mu.Unlock()
			return nil
		})
	}
	// Workers report through outcomes, never through errors.
	_ = g.Wait()

	report := types.BatchReport{Outcomes: outcomes}
	report.Tally()
	fmt.Fprintf(w, "\nBatch summary: %d retrieved, %d skipped, %d not found, %d failed (total: %d)\n",
		report.Succeeded, report.Skipped, report.NotFound, report.Failed, report.Total)
	return report
}
