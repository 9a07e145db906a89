// Package storage is the repository over the sabanas tables: the file
// index with its compare-and-swap state transitions, and the canonical
// record table written as delete-then-bulk-insert inside one
// transaction.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sabanasdb/internal/database"
)

// ErrFileNotFound is returned when a file id is absent from the index.
var ErrFileNotFound = errors.New("file not found")

// ErrInvalidRecord marks a canonical record that fails validation before
// insert. The surrounding transaction is rolled back.
var ErrInvalidRecord = errors.New("invalid record")

// insertChunkSize bounds one multi-VALUES statement. 60 rows at 15
// parameters each stays under SQLite's 999 bound-variable limit.
const insertChunkSize = 60

// Stamp selects which timestamp a state transition writes.
type Stamp int

const (
	StampNone Stamp = iota
	StampStart
	StampFinish
)

// Repository provides thread-safe access to the sabanas tables with
// prepared statements.
type Repository struct {
	db        *database.DB
	archivos  string
	registros string

	getStmt    *sql.Stmt
	countStmt  *sql.Stmt
	deleteStmt *sql.Stmt
	errorStmt  *sql.Stmt
	nextIDStmt *sql.Stmt
	mu         sync.RWMutex
}

// New creates a Repository and prepares its fixed statements.
func New(db *database.DB) (*Repository, error) {
	r := &Repository{
		db:        db,
		archivos:  db.Dialect().Table("archivos"),
		registros: db.Dialect().Table("registros_telefonicos"),
	}
	if err := r.prepareStatements(); err != nil {
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return r, nil
}

func (r *Repository) prepareStatements() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn := r.db.Conn()
	rebind := r.db.Dialect().Rebind

	var err error
	r.getStmt, err = conn.Prepare(rebind(
		`SELECT id, path, state, started_at, finished_at, carrier_id, carrier_name
		 FROM ` + r.archivos + ` WHERE id = ?`))
	if err != nil {
		return fmt.Errorf("failed to prepare select statement: %w", err)
	}

	r.countStmt, err = conn.Prepare(rebind(
		`SELECT COUNT(*) FROM ` + r.registros + ` WHERE file_id = ?`))
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}

	r.deleteStmt, err = conn.Prepare(rebind(
		`DELETE FROM ` + r.registros + ` WHERE file_id = ?`))
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	r.errorStmt, err = conn.Prepare(rebind(
		`UPDATE ` + r.archivos + ` SET state = ?, finished_at = ? WHERE id = ?`))
	if err != nil {
		return fmt.Errorf("failed to prepare error statement: %w", err)
	}

	r.nextIDStmt, err = conn.Prepare(
		`SELECT COALESCE(MAX(id), 0) + 1 FROM ` + r.archivos)
	if err != nil {
		return fmt.Errorf("failed to prepare next-id statement: %w", err)
	}

	return nil
}

// Close closes all prepared statements.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, stmt := range []*sql.Stmt{r.getStmt, r.countStmt, r.deleteStmt, r.errorStmt, r.nextIDStmt} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close statements: %v", errs)
	}
	return nil
}

// GetFile loads one file index row, or ErrFileNotFound.
func (r *Repository) GetFile(ctx context.Context, fileID int64) (*database.FileRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		f           database.FileRecord
		state       string
		started     sql.NullTime
		finished    sql.NullTime
		carrierID   sql.NullInt64
		carrierName sql.NullString
	)
	err := r.getStmt.QueryRowContext(ctx, fileID).
		Scan(&f.ID, &f.Path, &state, &started, &finished, &carrierID, &carrierName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file %d: %w", fileID, err)
	}

	f.State = database.FileState(state)
	if started.Valid {
		t := started.Time
		f.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		f.FinishedAt = &t
	}
	if carrierID.Valid {
		id := carrierID.Int64
		f.CarrierID = &id
	}
	f.CarrierName = carrierName.String
	return &f, nil
}

// CreateFile inserts a file index row. Ids are assigned upstream (FTP
// drop watcher) or via NextFileID for local ingestion.
func (r *Repository) CreateFile(ctx context.Context, f *database.FileRecord) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := r.db.Dialect().Rebind(
		`INSERT INTO ` + r.archivos + ` (id, path, state, started_at, finished_at, carrier_id, carrier_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	state := f.State
	if state == "" {
		state = database.StateUploaded
	}
	_, err := r.db.Conn().ExecContext(ctx, query,
		f.ID, f.Path, string(state),
		nullTime(f.StartedAt), nullTime(f.FinishedAt),
		nullInt64(f.CarrierID), nullString(f.CarrierName))
	if err != nil {
		return fmt.Errorf("failed to insert file %d: %w", f.ID, err)
	}
	return nil
}

// NextFileID returns the next free file id.
func (r *Repository) NextFileID(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var id int64
	if err := r.nextIDStmt.QueryRowContext(ctx).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to compute next file id: %w", err)
	}
	return id, nil
}

// TryTransitionState atomically moves a file from one state to another
// with a single conditional UPDATE. It reports whether this caller won
// the transition: false means the row was not in the expected state,
// which is how concurrent workers lose reservation races. StampStart
// and StampFinish additionally record the phase timestamp.
func (r *Repository) TryTransitionState(ctx context.Context, fileID int64, from, to database.FileState, stamp Stamp) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := `state = ?`
	args := []any{string(to)}
	switch stamp {
	case StampStart:
		set += `, started_at = ?`
		args = append(args, time.Now().UTC())
	case StampFinish:
		set += `, finished_at = ?`
		args = append(args, time.Now().UTC())
	}
	query := r.db.Dialect().Rebind(
		`UPDATE ` + r.archivos + ` SET ` + set + ` WHERE id = ? AND state = ?`)
	args = append(args, fileID, string(from))

	res, err := r.db.Conn().ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to transition file %d to %s: %w", fileID, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read transition result: %w", err)
	}
	return n == 1, nil
}

// MarkError forces a file into the error state regardless of its
// current one and stamps the finish time. Used on every failure path
// after a job owns the file.
func (r *Repository) MarkError(ctx context.Context, fileID int64) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, err := r.errorStmt.ExecContext(ctx, string(database.StateError), time.Now().UTC(), fileID); err != nil {
		return fmt.Errorf("failed to mark file %d as error: %w", fileID, err)
	}
	return nil
}

// DeleteRecordsForFile removes every canonical record of one file and
// returns how many rows went away.
func (r *Repository) DeleteRecordsForFile(ctx context.Context, fileID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, err := r.deleteStmt.ExecContext(ctx, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records of file %d: %w", fileID, err)
	}
	return res.RowsAffected()
}

// CountRecordsForFile returns the number of canonical records stored
// for one file.
func (r *Repository) CountRecordsForFile(ctx context.Context, fileID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	if err := r.countStmt.QueryRowContext(ctx, fileID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records of file %d: %w", fileID, err)
	}
	return n, nil
}

// BulkInsertRecords inserts records in chunked multi-VALUES statements
// inside one transaction. Every record is validated first; any invalid
// record aborts and rolls back the whole batch.
func (r *Repository) BulkInsertRecords(ctx context.Context, records []database.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.insertRecords(ctx, tx, records); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceRecords deletes every stored record of the file and inserts
// the new batch, both inside a single transaction, so a reprocessed
// file can never end up half old and half new. Returns the number of
// deleted rows.
func (r *Repository) ReplaceRecords(ctx context.Context, fileID int64, records []database.CanonicalRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	deleteQuery := r.db.Dialect().Rebind(`DELETE FROM ` + r.registros + ` WHERE file_id = ?`)
	res, err := tx.ExecContext(ctx, deleteQuery, fileID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records of file %d: %w", fileID, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}

	if err := r.insertRecords(ctx, tx, records); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit replace of file %d: %w", fileID, err)
	}
	return deleted, nil
}

func (r *Repository) insertRecords(ctx context.Context, tx *sql.Tx, records []database.CanonicalRecord) error {
	for i := range records {
		if err := validateRecord(&records[i]); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	for i := 0; i < len(records); i += insertChunkSize {
		end := i + insertChunkSize
		if end > len(records) {
			end = len(records)
		}
		if err := r.insertChunk(ctx, tx, records[i:end]); err != nil {
			return fmt.Errorf("failed to insert chunk at %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repository) insertChunk(ctx context.Context, tx *sql.Tx, chunk []database.CanonicalRecord) error {
	if len(chunk) == 0 {
		return nil
	}

	const row = `(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var b strings.Builder
	b.WriteString(`INSERT INTO ` + r.registros + ` (
		file_id, number_a, number_b, record_type, event_at, duration_sec,
		latitude_raw, longitude_raw, azimuth, latitude_dec, longitude_dec,
		altitude, target_coordinate, imei, phone
	) VALUES `)
	args := make([]any, 0, len(chunk)*15)
	for i, rec := range chunk {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(row)
		args = append(args,
			rec.FileID,
			rec.NumberA,
			nullString(rec.NumberB),
			int(rec.RecordType),
			rec.EventAt.UTC(),
			rec.DurationSec,
			nullString(rec.LatitudeRaw),
			nullString(rec.LongitudeRaw),
			rec.Azimuth,
			rec.LatitudeDec,
			rec.LongitudeDec,
			rec.Altitude,
			rec.TargetCoordinate,
			nullString(rec.IMEI),
			nullString(rec.Phone),
		)
	}

	if _, err := tx.ExecContext(ctx, r.db.Dialect().Rebind(b.String()), args...); err != nil {
		return fmt.Errorf("failed to execute batch insert: %w", err)
	}
	return nil
}

// StaleProcessingFiles lists files sitting in the processing state whose
// start stamp is older than the cutoff (or missing entirely). Input for
// the reaper, which still transitions them via TryTransitionState.
func (r *Repository) StaleProcessingFiles(ctx context.Context, cutoff time.Time) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := r.db.Dialect().Rebind(
		`SELECT id FROM ` + r.archivos + ` WHERE state = ? AND (started_at IS NULL OR started_at < ?)`)
	rows, err := r.db.Conn().QueryContext(ctx, query, string(database.StateProcessing), cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query stale files: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan stale file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// validateRecord enforces the canonical row contract before anything
// reaches the database: a subscriber number, a real event time inside
// the accepted year horizon, an IMEI that is absent or exactly 15
// digits, and coordinates inside world bounds.
func validateRecord(rec *database.CanonicalRecord) error {
	if strings.TrimSpace(rec.NumberA) == "" {
		return fmt.Errorf("%w: empty number_a", ErrInvalidRecord)
	}
	if rec.EventAt.IsZero() {
		return fmt.Errorf("%w: zero event_at", ErrInvalidRecord)
	}
	if y := rec.EventAt.Year(); y > time.Now().Year()+1 {
		return fmt.Errorf("%w: event year %d out of range", ErrInvalidRecord, y)
	}
	if rec.IMEI != "" && len(rec.IMEI) != 15 {
		return fmt.Errorf("%w: imei %q is not 15 digits", ErrInvalidRecord, rec.IMEI)
	}
	if rec.DurationSec < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidRecord)
	}
	if rec.LatitudeDec != nil && (*rec.LatitudeDec < -90 || *rec.LatitudeDec > 90) {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidRecord, *rec.LatitudeDec)
	}
	if rec.LongitudeDec != nil && (*rec.LongitudeDec < -180 || *rec.LongitudeDec > 180) {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidRecord, *rec.LongitudeDec)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
