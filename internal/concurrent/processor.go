// Package concurrent fans local spreadsheet imports out over a worker
// pool. It backs the bulk ingest CLI; the HTTP service runs single
// files through the jobs engine instead.
package concurrent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/parser"
	"github.com/sabanasdb/internal/storage"
)

// Job is one spreadsheet queued for import.
type Job struct {
	Path  string
	JobID int
}

// Result is the outcome of importing one spreadsheet.
type Result struct {
	JobID    int
	Path     string
	FileID   int64
	Carrier  parser.Carrier
	Stats    parser.Stats
	Inserted int
	Replaced int64
	Error    error
	Duration time.Duration
}

// Summary aggregates one import run.
type Summary struct {
	Files      int
	Succeeded  int
	Failed     int
	RowsRead   int
	RowsKept   int
	Duplicates int
	Replaced   int64
	Elapsed    time.Duration
}

// Processor imports spreadsheets concurrently through the repository.
type Processor struct {
	repo       *storage.Repository
	numWorkers int
	carrier    parser.Carrier // empty: detect per file
	verbose    bool
	quiet      bool

	// regMu serializes id assignment: NextFileID computes MAX(id)+1,
	// so two workers registering at once would collide.
	regMu sync.Mutex
}

// New creates a concurrent import processor.
func New(repo *storage.Repository, numWorkers int, carrier parser.Carrier, verbose, quiet bool) *Processor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Processor{
		repo:       repo,
		numWorkers: numWorkers,
		carrier:    carrier,
		verbose:    verbose,
		quiet:      quiet,
	}
}

// ProcessFiles imports the given spreadsheets and returns the run
// summary. Failed files are reported and skipped; the returned error is
// non-nil when at least one file failed.
func (p *Processor) ProcessFiles(ctx context.Context, paths []string) (*Summary, error) {
	if len(paths) == 0 {
		return &Summary{}, nil
	}

	jobs := make(chan Job, len(paths))
	results := make(chan Result, len(paths))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < p.numWorkers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, jobs, results, &wg)
	}

	// Send jobs
	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- Job{Path: path, JobID: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Collect results
	go func() {
		wg.Wait()
		close(results)
	}()

	return p.collectResults(results)
}

// worker processes jobs from the jobs channel
func (p *Processor) worker(ctx context.Context, workerID int, jobs <-chan Job, results chan<- Result, wg *sync.WaitGroup) {
	defer wg.Done()

	if p.verbose {
		fmt.Printf("Worker %d started\n", workerID)
	}

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				if p.verbose {
					fmt.Printf("Worker %d finished\n", workerID)
				}
				return
			}

			result := p.importFile(ctx, job)

			select {
			case results <- result:
			case <-ctx.Done():
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// importFile registers one spreadsheet and drives it through the same
// state transitions a service-run job takes, so the file index ends up
// indistinguishable from an API ingest.
func (p *Processor) importFile(ctx context.Context, job Job) Result {
	start := time.Now()
	result := Result{JobID: job.JobID, Path: job.Path}

	if !p.quiet {
		fmt.Printf("[Job %d] Processing: %s\n", job.JobID, job.Path)
	}

	carrier := p.carrier
	if carrier == "" {
		carrier = parser.Detect(nil, "", job.Path)
	}
	result.Carrier = carrier

	fileID, err := p.register(ctx, job.Path, carrier)
	if err != nil {
		result.Error = fmt.Errorf("registering %s: %w", job.Path, err)
		result.Duration = time.Since(start)
		return result
	}
	result.FileID = fileID

	res, replaced, err := p.ingest(ctx, fileID, job.Path, carrier)
	result.Duration = time.Since(start)
	if err != nil {
		if merr := p.repo.MarkError(ctx, fileID); merr != nil {
			fmt.Printf("[Job %d] ERROR: marking file %d failed: %v\n", job.JobID, fileID, merr)
		}
		result.Error = err
		fmt.Printf("[Job %d] ERROR: %v\n", job.JobID, err)
		return result
	}

	result.Stats = res.Stats
	result.Inserted = len(res.Records)
	result.Replaced = replaced

	if !p.quiet {
		fmt.Printf("[Job %d] ✓ file %d: %d rows read, %d inserted (%s)\n",
			job.JobID, fileID, res.Stats.RowsRead, len(res.Records), carrier)
	}
	return result
}

// register creates the file index row and reserves it for this worker.
func (p *Processor) register(ctx context.Context, path string, carrier parser.Carrier) (int64, error) {
	p.regMu.Lock()
	fileID, err := p.repo.NextFileID(ctx)
	if err != nil {
		p.regMu.Unlock()
		return 0, err
	}
	rec := &database.FileRecord{
		ID:          fileID,
		Path:        path,
		State:       database.StateUploaded,
		CarrierName: string(carrier),
	}
	err = p.repo.CreateFile(ctx, rec)
	p.regMu.Unlock()
	if err != nil {
		return 0, err
	}
	if _, err := p.repo.TryTransitionState(ctx, fileID, database.StateUploaded, database.StateQueued, storage.StampNone); err != nil {
		return 0, err
	}
	return fileID, nil
}

func (p *Processor) ingest(ctx context.Context, fileID int64, path string, carrier parser.Carrier) (*parser.Result, int64, error) {
	ok, err := p.repo.TryTransitionState(ctx, fileID, database.StateQueued, database.StateProcessing, storage.StampStart)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, fmt.Errorf("file %d was claimed by another worker", fileID)
	}

	cp, err := parser.ForCarrier(carrier)
	if err != nil {
		return nil, 0, err
	}
	f, err := parser.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	res, err := cp.Parse(f, fileID)
	if err != nil {
		return nil, 0, err
	}

	replaced, err := p.repo.ReplaceRecords(ctx, fileID, res.Records)
	if err != nil {
		return nil, 0, err
	}

	ok, err = p.repo.TryTransitionState(ctx, fileID, database.StateProcessing, database.StateProcessed, storage.StampFinish)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, fmt.Errorf("file %d left processing before completion", fileID)
	}
	return res, replaced, nil
}

// collectResults drains the results channel and totals the run.
func (p *Processor) collectResults(results <-chan Result) (*Summary, error) {
	summary := &Summary{}
	startTime := time.Now()

	for result := range results {
		summary.Files++
		if result.Error != nil {
			summary.Failed++
			continue
		}
		summary.Succeeded++
		summary.RowsRead += result.Stats.RowsRead
		summary.RowsKept += result.Stats.RowsKept
		summary.Duplicates += result.Stats.Duplicates
		summary.Replaced += result.Replaced
	}
	summary.Elapsed = time.Since(startTime)

	if !p.quiet {
		fmt.Printf("\nImport complete: %d files processed, %d rows inserted, %d errors\n",
			summary.Succeeded, summary.RowsKept, summary.Failed)
	}

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%d files failed during import", summary.Failed)
	}
	return summary, nil
}
