package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"coursepull/internal/config"
)

// Store manages the run ledger backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timeLayout keeps fractional seconds fixed-width so stored timestamps sort
// lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
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
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the history database at cfg.HistoryPath().
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the history database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
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

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts a running run and returns it with a fresh id.
func (s *Store) BeginRun(ctx context.Context, downloadRoot string, english bool) (Run, error) {
	run := Run{
		ID:           uuid.NewString(),
		StartedAt:    time.Now().UTC(),
		Status:       RunStatusRunning,
		English:      english,
		DownloadRoot: downloadRoot,
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, started_at, status, english, download_root) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.Format(timeLayout),
		run.Status,
		boolToInt(run.English),
		run.DownloadRoot,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordTask appends a download task outcome to a run.
func (s *Store) RecordTask(ctx context.Context, runID string, rec TaskRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	err := s.exec(ctx,
		`INSERT INTO tasks (
            run_id, course, stem, playback_url, outcome, reason, error_kind, error_message, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.Course,
		rec.Stem,
		nullableString(rec.PlaybackURL),
		rec.Outcome,
		nullableString(rec.Reason),
		nullableString(rec.ErrorKind),
		nullableString(rec.ErrorMessage),
		rec.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// RecordReconcile appends a reconciler outcome to a run.
func (s *Store) RecordReconcile(ctx context.Context, runID string, rec ReconcileRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	err := s.exec(ctx,
		`INSERT INTO reconciles (
            run_id, course, stem, outcome, moved, error_message, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID,
		rec.Course,
		rec.Stem,
		rec.Outcome,
		rec.Moved,
		nullableString(rec.ErrorMessage),
		rec.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert reconcile: %w", err)
	}
	return nil
}

// FinishRun stamps the end time and final status of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, runErr error) error {
	var message string
	if runErr != nil {
		message = runErr.Error()
	}
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE runs SET finished_at = ?, status = ?, error_message = ? WHERE id = ?`,
			time.Now().UTC().Format(timeLayout),
			status,
			nullableString(message),
			runID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `r.id, r.started_at, r.finished_at, r.status, r.english, r.download_root, r.error_message,
    (SELECT COUNT(1) FROM tasks t WHERE t.run_id = r.id AND t.outcome = 'downloaded'),
    (SELECT COUNT(1) FROM tasks t WHERE t.run_id = r.id AND t.outcome = 'skipped'),
    (SELECT COUNT(1) FROM tasks t WHERE t.run_id = r.id AND t.outcome = 'failed'),
    (SELECT COUNT(1) FROM reconciles c WHERE c.run_id = r.id AND c.outcome = 'merged')`

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun fetches a run by full id or unique id prefix.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+runColumns+` FROM runs r WHERE substr(r.id, 1, length(?)) = ? ORDER BY r.id = ? DESC LIMIT 2`,
		id, id, id)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate run: %w", err)
	}
	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case matches[0].ID == id, len(matches) == 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// RunTasks returns every task recorded for a run in insertion order.
func (s *Store) RunTasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT course, stem, playback_url, outcome, reason, error_kind, error_message, recorded_at
         FROM tasks WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var (
			rec                        TaskRecord
			url, reason, kind, message sql.NullString
			recordedAt                 string
		)
		if err := rows.Scan(&rec.Course, &rec.Stem, &url, &rec.Outcome, &reason, &kind, &message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		rec.PlaybackURL = url.String
		rec.Reason = reason.String
		rec.ErrorKind = kind.String
		rec.ErrorMessage = message.String
		rec.RecordedAt = parseTime(recordedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return records, nil
}

// RunReconciles returns every reconciler outcome recorded for a run.
func (s *Store) RunReconciles(ctx context.Context, runID string) ([]ReconcileRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT course, stem, outcome, moved, error_message, recorded_at
         FROM reconciles WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query reconciles: %w", err)
	}
	defer rows.Close()

	var records []ReconcileRecord
	for rows.Next() {
		var (
			rec        ReconcileRecord
			message    sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&rec.Course, &rec.Stem, &rec.Outcome, &rec.Moved, &message, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan reconcile: %w", err)
		}
		rec.ErrorMessage = message.String
		rec.RecordedAt = parseTime(recordedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reconciles: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run                 Run
		startedAt           string
		finishedAt, message sql.NullString
		english             int
	)
	if err := row.Scan(
		&run.ID, &startedAt, &finishedAt, &run.Status, &english, &run.DownloadRoot, &message,
		&run.Downloaded, &run.Skipped, &run.Failed, &run.Merged,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	run.English = english != 0
	run.ErrorMessage = message.String
	return run, nil
}

func parseTime(value string) time.Time {
	ts, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
