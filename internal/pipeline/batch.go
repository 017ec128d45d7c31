package pipeline

import (
	"context"
	"sync"

	"callqa/internal/logging"
	"callqa/internal/records"
)

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Request Request
	Record  records.CallRecord
	Err     error
}

// RunBatch evaluates reqs with at most the configured number of calls in
// flight. Results come back in request order; one call failing does not stop
// the others.
func (e *Evaluator) RunBatch(ctx context.Context, reqs []Request) []BatchResult {
	results := make([]BatchResult, len(reqs))
	slots := make(chan struct{}, e.maxParallel)
	var wg sync.WaitGroup

	for i, req := range reqs {
		results[i].Request = req
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = ctx.Err()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			rec, err := e.Run(ctx, req)
			results[i].Record = rec
			results[i].Err = err
		}()
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info("batch complete",
		logging.String(logging.FieldEventType, "batch_complete"),
		logging.Int("calls", len(reqs)),
		logging.Int("failed", failed),
	)
	return results
}
