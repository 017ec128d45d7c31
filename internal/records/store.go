package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"callqa/internal/config"
	"callqa/internal/services"
)

// Store is the append-only call log.
type Store struct {
	db   *sql.DB
	path string

	// writeMu serializes appends within the process; SQLite serializes
	// across processes.
	writeMu sync.Mutex
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the call database under cfg's data dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Append stores rec. A missing call ID or timestamp is filled in and the
// stored record is returned. Appending a call ID twice is a validation error.
func (s *Store) Append(ctx context.Context, rec CallRecord) (CallRecord, error) {
	if strings.TrimSpace(rec.CallID) == "" {
		rec.CallID = NewCallID()
	}
	if strings.TrimSpace(rec.Timestamp) == "" {
		rec.Timestamp = Timestamp(time.Now())
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return CallRecord{}, fmt.Errorf("encode record: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM calls WHERE call_id = ?", rec.CallID).Scan(&exists); err != nil {
			return err
		}
		if exists > 0 {
			return services.Wrap(services.ErrValidation, "records", "append", fmt.Sprintf("call %s already recorded", rec.CallID), nil)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO calls (call_id, recorded_at, region, user_id, final_score, grade, record_json)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.CallID,
			rec.Timestamp,
			rec.Metadata.Region,
			rec.UserID,
			rec.FinalScore(),
			rec.Evaluation.Scoring.Grade,
			string(payload),
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return CallRecord{}, err
		}
		return CallRecord{}, fmt.Errorf("append call: %w", err)
	}
	return rec, nil
}

// ListAll returns every record in insertion order.
func (s *Store) ListAll(ctx context.Context) ([]CallRecord, error) {
	return s.List(ctx, Filter{})
}

// List returns records matching filter in insertion order.
func (s *Store) List(ctx context.Context, filter Filter) ([]CallRecord, error) {
	query := "SELECT record_json FROM calls"
	var (
		clauses []string
		args    []any
	)
	if filter.Region != "" {
		clauses = append(clauses, "region = ?")
		args = append(args, filter.Region)
	}
	if filter.UserID != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	out := []CallRecord{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		var rec CallRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode call: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return out, nil
}

// Get returns the record for callID or ErrNotFound.
func (s *Store) Get(ctx context.Context, callID string) (CallRecord, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT record_json FROM calls WHERE call_id = ?", callID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, services.Wrap(ErrNotFound, "records", "get", fmt.Sprintf("call %s", callID), nil)
	}
	if err != nil {
		return CallRecord{}, fmt.Errorf("get call: %w", err)
	}
	var rec CallRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return CallRecord{}, fmt.Errorf("decode call: %w", err)
	}
	return rec, nil
}

// Count returns the number of stored calls.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM calls").Scan(&n); err != nil {
		return 0, fmt.Errorf("count calls: %w", err)
	}
	return n, nil
}

// Import appends every record of a JSON array, such as a calls.json export.
// Records whose call ID is already stored are skipped. It returns how many
// records were appended.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	var recs []CallRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return 0, services.Wrap(services.ErrValidation, "records", "import", "expected a JSON array of call records", err)
	}
	added := 0
	for _, rec := range recs {
		if _, err := s.Append(ctx, rec); err != nil {
			if errors.Is(err, services.ErrValidation) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
		lastErr = op()
		if lastErr == nil || !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
