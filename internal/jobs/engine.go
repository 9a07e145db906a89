// Package jobs drives the sabanas ingest lifecycle. A job is accepted on
// the API request path (uploaded → queued), then a background worker
// downloads the drop from the carrier FTP, parses it and replaces the
// file's records in one transaction (queued → processing → processed or
// error). Conditional state transitions are the only synchronization:
// any number of workers may race on the same file and exactly one wins.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sabanasdb/internal/cache"
	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/logging"
	"github.com/sabanasdb/internal/metrics"
	"github.com/sabanasdb/internal/parser"
	"github.com/sabanasdb/internal/storage"
)

// Downloader fetches a remote carrier drop into destDir and returns the
// local path. Satisfied by ftp.Client.
type Downloader interface {
	Download(ctx context.Context, remotePath, destDir string) (string, error)
}

// Engine accepts ingest jobs and processes them on a bounded pool of
// background goroutines.
type Engine struct {
	repo       *storage.Repository
	downloader Downloader
	tracker    *cache.Tracker
	tmpDir     string

	sem    chan struct{}
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEngine creates an Engine with the given concurrency. The tracker
// may be nil, which disables the job journal. Background jobs run on a
// context owned by the engine, not the accepting request, so an HTTP
// client going away never aborts a download in flight.
func NewEngine(repo *storage.Repository, downloader Downloader, tracker *cache.Tracker, tmpDir string, workers int) *Engine {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		repo:       repo,
		downloader: downloader,
		tracker:    tracker,
		tmpDir:     tmpDir,
		sem:        make(chan struct{}, workers),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// AcceptJob claims a file for ingestion and schedules its processing.
// The file must be in the uploaded state; anything else returns a
// StateConflictError carrying the state the file is actually in. A
// missing file returns storage.ErrFileNotFound. On success the returned
// job id is freshly minted and the record snapshot reflects the queued
// state.
func (e *Engine) AcceptJob(ctx context.Context, fileID int64, correlationID string) (string, *database.FileRecord, error) {
	rec, err := e.repo.GetFile(ctx, fileID)
	if err != nil {
		return "", nil, err
	}
	if rec.State != database.StateUploaded {
		return "", nil, &StateConflictError{FileID: fileID, Current: rec.State}
	}

	ok, err := e.repo.TryTransitionState(ctx, fileID, database.StateUploaded, database.StateQueued, storage.StampNone)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		// A concurrent request claimed the file between the read and the
		// transition. Report whatever state won.
		cur := rec.State
		if latest, gerr := e.repo.GetFile(ctx, fileID); gerr == nil {
			cur = latest.State
		}
		return "", nil, &StateConflictError{FileID: fileID, Current: cur}
	}
	rec.State = database.StateQueued

	jobID := uuid.New().String()
	if err := e.tracker.Record(ctx, &cache.JobRecord{
		FileID:        fileID,
		JobID:         jobID,
		CorrelationID: correlationID,
		State:         database.StateQueued,
		Carrier:       rec.CarrierName,
		Path:          rec.Path,
		AcceptedAt:    time.Now().UTC(),
	}); err != nil {
		logging.Debug("job journal write failed", logging.FileID(fileID), logging.Err(err))
	}
	metrics.JobsAccepted.Inc()
	logging.Info("job accepted",
		logging.FileID(fileID),
		logging.JobID(jobID),
		logging.Correlation(correlationID),
		logging.File(rec.Path))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.sem <- struct{}{}
		defer func() { <-e.sem }()
		e.ProcessJob(e.ctx, fileID, correlationID)
	}()

	return jobID, rec, nil
}

// ProcessJob runs one file through download, parse and insert. It is
// safe to call concurrently for the same file: only the caller that
// wins the queued → processing transition does any work, everyone else
// returns silently. Every failure past that point lands the file in the
// error state with a finish timestamp.
func (e *Engine) ProcessJob(ctx context.Context, fileID int64, correlationID string) {
	rec, err := e.repo.GetFile(ctx, fileID)
	if err != nil {
		if !errors.Is(err, storage.ErrFileNotFound) {
			logging.Error("job lookup failed",
				logging.FileID(fileID), logging.Correlation(correlationID), logging.Err(err))
		}
		return
	}
	if rec.State != database.StateQueued {
		return
	}
	ok, err := e.repo.TryTransitionState(ctx, fileID, database.StateQueued, database.StateProcessing, storage.StampStart)
	if err != nil {
		logging.Error("processing claim failed",
			logging.FileID(fileID), logging.Correlation(correlationID), logging.Err(err))
		return
	}
	if !ok {
		// A peer worker owns the file.
		return
	}

	start := time.Now()
	e.journal(ctx, fileID, func(j *cache.JobRecord) {
		now := time.Now().UTC()
		j.State = database.StateProcessing
		j.StartedAt = &now
	})
	logging.Info("job started",
		logging.FileID(fileID), logging.Correlation(correlationID), logging.File(rec.Path))

	carrier, result, removed, err := e.process(ctx, rec)
	if err != nil {
		e.fail(fileID, correlationID, start, err)
		return
	}

	ok, err = e.repo.TryTransitionState(ctx, fileID, database.StateProcessing, database.StateProcessed, storage.StampFinish)
	if err != nil {
		e.fail(fileID, correlationID, start, fmt.Errorf("finishing transition: %w", err))
		return
	}
	if !ok {
		// Someone else moved the file out of processing, most likely a
		// reaper that gave up on this job. The rows are inserted; leave
		// the state alone and record what happened.
		logging.Warn("file left processing before completion could be recorded",
			logging.FileID(fileID), logging.Correlation(correlationID))
		return
	}

	e.journal(ctx, fileID, func(j *cache.JobRecord) {
		now := time.Now().UTC()
		j.State = database.StateProcessed
		j.FinishedAt = &now
		j.Carrier = string(carrier)
		j.Stats = &result.Stats
	})
	metrics.JobsCompleted.WithLabelValues("processed").Inc()
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	logging.Info("job processed",
		logging.FileID(fileID),
		logging.Correlation(correlationID),
		logging.Carrier(string(carrier)),
		logging.Count("rows_read", result.Stats.RowsRead),
		logging.Count("rows_inserted", len(result.Records)),
		logging.Count("rows_replaced", int(removed)),
		logging.Count("duplicates", result.Stats.Duplicates),
		logging.Duration("elapsed", time.Since(start)))
}

// process owns the scratch directory for one job: download, dispatch,
// parse, replace. The directory is removed on every exit path.
func (e *Engine) process(ctx context.Context, rec *database.FileRecord) (parser.Carrier, *parser.Result, int64, error) {
	scratch := filepath.Join(e.tmpDir, strconv.FormatInt(rec.ID, 10))
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", nil, 0, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	localPath, err := e.downloader.Download(ctx, rec.Path, scratch)
	if err != nil {
		return "", nil, 0, fmt.Errorf("downloading %s: %w", rec.Path, err)
	}

	carrier := parser.Detect(rec.CarrierID, rec.CarrierName, localPath)
	p, err := parser.ForCarrier(carrier)
	if err != nil {
		return carrier, nil, 0, err
	}
	f, err := parser.ReadFile(localPath)
	if err != nil {
		return carrier, nil, 0, err
	}
	result, err := p.Parse(f, rec.ID)
	if err != nil {
		return carrier, nil, 0, err
	}

	label := string(carrier)
	metrics.RowsRead.WithLabelValues(label).Add(float64(result.Stats.RowsRead))
	metrics.RowsDiscarded.WithLabelValues(label, "number_a").Add(float64(result.Stats.DiscardedNumberA))
	metrics.RowsDiscarded.WithLabelValues(label, "date").Add(float64(result.Stats.DiscardedDate))
	metrics.RowsDiscarded.WithLabelValues(label, "imei").Add(float64(result.Stats.DiscardedIMEI))
	metrics.RowsDiscarded.WithLabelValues(label, "geo").Add(float64(result.Stats.DiscardedGeo))
	metrics.RowsDiscarded.WithLabelValues(label, "duplicate").Add(float64(result.Stats.Duplicates))

	// Zero kept rows is still a successful run; the delete half of the
	// replace clears any stale rows from an earlier revision of the file.
	removed, err := e.repo.ReplaceRecords(ctx, rec.ID, result.Records)
	if err != nil {
		return carrier, nil, 0, fmt.Errorf("replacing records: %w", err)
	}
	metrics.RowsInserted.WithLabelValues(label).Add(float64(len(result.Records)))

	return carrier, result, removed, nil
}

// fail lands the file in the error state with a finish timestamp and
// records the cause in the journal. The terminal write runs on its own
// context: the job context may already be canceled, and a file must
// never stay in processing because its job was aborted.
func (e *Engine) fail(fileID int64, correlationID string, start time.Time, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.repo.MarkError(ctx, fileID); err != nil {
		logging.Error("marking file as error failed",
			logging.FileID(fileID), logging.Correlation(correlationID), logging.Err(err))
	}
	e.journal(ctx, fileID, func(j *cache.JobRecord) {
		now := time.Now().UTC()
		j.State = database.StateError
		j.FinishedAt = &now
		j.Error = cause.Error()
	})
	metrics.JobsCompleted.WithLabelValues("error").Inc()
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	logging.Error("job failed",
		logging.FileID(fileID),
		logging.Correlation(correlationID),
		logging.Duration("elapsed", time.Since(start)),
		logging.Err(cause))
}

func (e *Engine) journal(ctx context.Context, fileID int64, fn func(*cache.JobRecord)) {
	if err := e.tracker.Update(ctx, fileID, fn); err != nil {
		logging.Debug("job journal update failed", logging.FileID(fileID), logging.Err(err))
	}
}

// Shutdown waits for in-flight jobs to finish. When ctx expires first,
// the engine's background context is canceled so the remaining jobs
// fail fast; their files end up in the error state rather than stuck.
func (e *Engine) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-done
		return ctx.Err()
	}
}
