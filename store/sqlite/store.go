// Package sqlite implements store.Store on SQLite via database/sql and
// the mattn/go-sqlite3 driver. This is the durability backend the
// library grew up with: a single file, WAL journaling, and the record
// table created on open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
	"github.com/nnikos123/android-priority-jobqueue/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite-backed record store.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and bootstraps the
// schema. Use ":memory:" for an ephemeral database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("jobqueue/sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("jobqueue/sqlite: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("jobqueue/sqlite: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS job_records (
		id TEXT PRIMARY KEY,
		job_type TEXT NOT NULL DEFAULT '',
		payload BLOB,
		priority INTEGER NOT NULL,
		group_id TEXT NOT NULL DEFAULT '',
		run_count INTEGER NOT NULL DEFAULT 0,
		created_ns INTEGER NOT NULL,
		delay_until_ns INTEGER NOT NULL,
		running_session_id INTEGER NOT NULL,
		insertion_order INTEGER,
		requires_network INTEGER NOT NULL DEFAULT 0,
		tags TEXT,
		cancelled INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_job_records_session ON job_records(running_session_id);
	CREATE INDEX IF NOT EXISTS idx_job_records_order ON job_records(priority DESC, created_ns ASC, insertion_order ASC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert persists a new record.
func (s *Store) Insert(ctx context.Context, rec jobqueue.Record) error {
	tags, err := marshalTags(rec.Tags)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO job_records (
			id, job_type, payload, priority, group_id, run_count,
			created_ns, delay_until_ns, running_session_id,
			insertion_order, requires_network, tags, cancelled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.JobType, rec.Payload, rec.Priority, rec.GroupID, rec.RunCount,
		rec.CreatedNs, rec.DelayUntilNs, rec.RunningSessionID,
		orderValue(rec.InsertionOrder), boolInt(rec.RequiresNetwork), tags, boolInt(rec.Cancelled),
	)
	if err != nil {
		// SQLite reports "UNIQUE constraint failed" for primary key hits.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return jobqueue.ErrDuplicateJob
		}
		return fmt.Errorf("jobqueue/sqlite: insert: %w", err)
	}
	return nil
}

// Update overwrites an existing record.
func (s *Store) Update(ctx context.Context, rec jobqueue.Record) error {
	tags, err := marshalTags(rec.Tags)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE job_records SET
			job_type = ?, payload = ?, priority = ?, group_id = ?,
			run_count = ?, created_ns = ?, delay_until_ns = ?,
			running_session_id = ?, insertion_order = ?,
			requires_network = ?, tags = ?, cancelled = ?
		WHERE id = ?`,
		rec.JobType, rec.Payload, rec.Priority, rec.GroupID,
		rec.RunCount, rec.CreatedNs, rec.DelayUntilNs,
		rec.RunningSessionID, orderValue(rec.InsertionOrder),
		boolInt(rec.RequiresNetwork), tags, boolInt(rec.Cancelled),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("jobqueue/sqlite: update: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return jobqueue.ErrJobNotFound
	}
	return nil
}

// Remove deletes a record by id.
func (s *Store) Remove(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM job_records WHERE id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("jobqueue/sqlite: remove: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return jobqueue.ErrJobNotFound
	}
	return nil
}

// FindByID retrieves a record by id.
func (s *Store) FindByID(ctx context.Context, jobID string) (jobqueue.Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, jobID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return jobqueue.Record{}, jobqueue.ErrJobNotFound
	}
	if err != nil {
		return jobqueue.Record{}, fmt.Errorf("jobqueue/sqlite: find: %w", err)
	}
	return rec, nil
}

// Count returns the number of persisted records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("jobqueue/sqlite: count: %w", err)
	}
	return n, nil
}

// OrphanedBySession returns records left behind by another session,
// ordered by the composite ordering key.
func (s *Store) OrphanedBySession(ctx context.Context, currentSessionID int64) ([]jobqueue.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE running_session_id != ?
		ORDER BY priority DESC, created_ns ASC, insertion_order ASC`,
		currentSessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("jobqueue/sqlite: orphaned: %w", err)
	}
	defer rows.Close()

	var out []jobqueue.Record
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("jobqueue/sqlite: orphaned scan: %w", scanErr)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM job_records`); err != nil {
		return fmt.Errorf("jobqueue/sqlite: clear: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `
	SELECT id, job_type, payload, priority, group_id, run_count,
	       created_ns, delay_until_ns, running_session_id,
	       insertion_order, requires_network, tags, cancelled
	FROM job_records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (jobqueue.Record, error) {
	var (
		rec             jobqueue.Record
		order           sql.NullInt64
		requiresNetwork int
		cancelled       int
		tags            sql.NullString
	)
	err := row.Scan(
		&rec.ID, &rec.JobType, &rec.Payload, &rec.Priority, &rec.GroupID,
		&rec.RunCount, &rec.CreatedNs, &rec.DelayUntilNs,
		&rec.RunningSessionID, &order, &requiresNetwork, &tags, &cancelled,
	)
	if err != nil {
		return jobqueue.Record{}, err
	}
	if order.Valid {
		v := order.Int64
		rec.InsertionOrder = &v
	}
	rec.RequiresNetwork = requiresNetwork != 0
	rec.Cancelled = cancelled != 0
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &rec.Tags); err != nil {
			return jobqueue.Record{}, err
		}
	}
	return rec, nil
}

func marshalTags(tags []string) (any, error) {
	if tags == nil {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("jobqueue/sqlite: marshal tags: %w", err)
	}
	return string(b), nil
}

func orderValue(order *int64) any {
	if order == nil {
		return nil
	}
	return *order
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
