package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sabanasdb/internal/database"
	"github.com/sabanasdb/internal/logging"
	"github.com/sabanasdb/internal/parser"
)

// JobRecord is the journal entry kept for one ingest run. The database row
// stays the source of truth; the journal adds the identifiers and counters
// that never reach the table.
type JobRecord struct {
	FileID        int64              `json:"file_id"`
	JobID         string             `json:"job_id"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	State         database.FileState `json:"state"`
	Carrier       string             `json:"carrier,omitempty"`
	Path          string             `json:"path,omitempty"`
	AcceptedAt    time.Time          `json:"accepted_at"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	FinishedAt    *time.Time         `json:"finished_at,omitempty"`
	Error         string             `json:"error,omitempty"`
	Stats         *parser.Stats      `json:"stats,omitempty"`
}

// Tracker journals ingest runs and caches accept responses for
// idempotent replay. A nil Tracker is valid and disables both features.
type Tracker struct {
	cache    Cache
	keys     *KeyGenerator
	jobTTL   time.Duration
	replyTTL time.Duration
}

const (
	defaultJobTTL   = 7 * 24 * time.Hour
	defaultReplyTTL = 24 * time.Hour
)

// NewTracker wraps a cache in a job tracker. Returns nil when the cache is
// nil so callers can pass the result around without checks.
func NewTracker(c Cache, jobTTL, replyTTL time.Duration) *Tracker {
	if c == nil {
		return nil
	}
	if jobTTL <= 0 {
		jobTTL = defaultJobTTL
	}
	if replyTTL <= 0 {
		replyTTL = defaultReplyTTL
	}
	return &Tracker{
		cache:    c,
		keys:     NewKeyGenerator(""),
		jobTTL:   jobTTL,
		replyTTL: replyTTL,
	}
}

// Record stores the journal entry for rec.FileID, replacing any previous one.
func (t *Tracker) Record(ctx context.Context, rec *JobRecord) error {
	if t == nil {
		return nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("tracker: marshal job %d: %w", rec.FileID, err)
	}
	return t.cache.Set(ctx, t.keys.JobKey(rec.FileID), data, t.jobTTL)
}

// Update loads the journal entry for fileID, applies fn and stores the
// result. A missing entry starts from a zero record, so phase updates
// survive a restart between accept and processing.
func (t *Tracker) Update(ctx context.Context, fileID int64, fn func(*JobRecord)) error {
	if t == nil {
		return nil
	}
	rec, err := t.Job(ctx, fileID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &JobRecord{FileID: fileID}
	}
	fn(rec)
	return t.Record(ctx, rec)
}

// Job returns the journal entry for fileID, or nil when none is tracked.
func (t *Tracker) Job(ctx context.Context, fileID int64) (*JobRecord, error) {
	if t == nil {
		return nil, nil
	}
	data, err := t.cache.Get(ctx, t.keys.JobKey(fileID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec JobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("tracker: decode job %d: %w", fileID, err)
	}
	return &rec, nil
}

// Forget drops the journal entry for fileID.
func (t *Tracker) Forget(ctx context.Context, fileID int64) error {
	if t == nil {
		return nil
	}
	return t.cache.Delete(ctx, t.keys.JobKey(fileID))
}

// SaveReply stores the accept response body under the client's
// idempotency key.
func (t *Tracker) SaveReply(ctx context.Context, key string, body []byte) error {
	if t == nil || key == "" {
		return nil
	}
	return t.cache.Set(ctx, t.keys.IdempotencyKey(key), body, t.replyTTL)
}

// CachedReply returns the stored response for an idempotency key. Replay
// is best effort: lookup failures disable it for the request rather than
// failing the request.
func (t *Tracker) CachedReply(ctx context.Context, key string) ([]byte, bool) {
	if t == nil || key == "" {
		return nil, false
	}
	body, err := t.cache.Get(ctx, t.keys.IdempotencyKey(key))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logging.Debugf("tracker: idempotency lookup: %v", err)
		}
		return nil, false
	}
	return body, true
}

// Stats exposes the underlying cache counters, nil when tracking is off.
func (t *Tracker) Stats() *Metrics {
	if t == nil {
		return nil
	}
	return t.cache.GetMetrics()
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	if t == nil {
		return nil
	}
	return t.cache.Close()
}
