package pipeline

import (
	"context"
	"sync"
)

// imageJob is one path waiting for a worker.
type imageJob struct {
	index int
	path  string
}

// runParallel fans paths out to a fixed pool of workers and collects results
// back in input order. Images not dispatched before ctx ends are reported
// skipped.
func (p *Pipeline) runParallel(ctx context.Context, paths []string, agg *Aggregator, progress ProgressCallback) []ImageResult {
	workers := min(p.cfg.Workers, len(paths))

	jobs := make(chan imageJob)
	results := make(chan ImageResult, len(paths))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go p.worker(ctx, jobs, results, agg, &wg)
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- imageJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]ImageResult, len(paths))
	done := make([]bool, len(paths))
	completed := 0
	for r := range results {
		ordered[r.Index] = r
		done[r.Index] = true
		completed++
		progress.OnImageDone(completed, len(paths), r)
	}

	// The dispatcher has returned once jobs is closed and every worker exited.
	for i, path := range paths {
		if done[i] {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		ordered[i] = p.skipUnprocessed(i, path, err)
		completed++
		progress.OnImageDone(completed, len(paths), ordered[i])
	}
	return ordered
}

// worker processes jobs until the channel closes. A job already received is
// always finished so its temp file is released.
func (p *Pipeline) worker(ctx context.Context, jobs <-chan imageJob, results chan<- ImageResult, agg *Aggregator, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		r := p.ProcessImage(ctx, job.index, job.path)
		agg.Add(r.Index, r.Candidates)
		results <- r
	}
}
