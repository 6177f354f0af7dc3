package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists run history in SQLite.
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

const runColumns = "id, job_id, source, title, source_language, target_language, subtitle_mode, resumed, start_stage, status, failed_stage, error_code, error_message, output_path, started_at, finished_at"

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
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history: database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas apply per connection; one connection keeps foreign keys on.
	db.SetMaxOpenConns(1)

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

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a running row and returns its identifier.
func (s *Store) StartRun(ctx context.Context, start RunStart) (int64, error) {
	if strings.TrimSpace(start.JobID) == "" {
		return 0, errors.New("start run: job id required")
	}
	if start.StartedAt.IsZero() {
		start.StartedAt = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO runs (
            job_id, source, title, source_language, target_language, subtitle_mode,
            resumed, start_stage, status, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		start.JobID,
		start.Source,
		nullableString(start.Title),
		nullableString(start.SourceLanguage),
		start.TargetLanguage,
		nullableString(start.SubtitleMode),
		boolToInt(start.Resumed),
		start.StartStage,
		StatusRunning,
		formatTime(start.StartedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// SetTitle records the video title once the probe has resolved it.
func (s *Store) SetTitle(ctx context.Context, runID int64, title string) error {
	if _, err := s.execWithRetry(ctx, `UPDATE runs SET title = ? WHERE id = ?`, nullableString(title), runID); err != nil {
		return fmt.Errorf("update run title: %w", err)
	}
	return nil
}

// RecordAttempt appends one stage attempt to a run.
func (s *Store) RecordAttempt(ctx context.Context, a Attempt) error {
	if a.RunID == 0 {
		return errors.New("record attempt: run id required")
	}
	if a.FinishedAt.IsZero() {
		a.FinishedAt = time.Now()
	}
	if a.StartedAt.IsZero() {
		a.StartedAt = a.FinishedAt
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO stage_attempts (
            run_id, stage, attempt, option, outcome, error_code, message, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RunID,
		a.Stage,
		a.Attempt,
		nullableString(a.Option),
		a.Outcome,
		nullableString(a.ErrorCode),
		nullableString(a.Message),
		formatTime(a.StartedAt),
		formatTime(a.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// FinishRun records the terminal state of a run.
func (s *Store) FinishRun(ctx context.Context, runID int64, finish RunFinish) error {
	if finish.FinishedAt.IsZero() {
		finish.FinishedAt = time.Now()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE runs
         SET status = ?, failed_stage = ?, error_code = ?, error_message = ?,
             output_path = ?, finished_at = ?
         WHERE id = ?`,
		finish.Status,
		nullableString(finish.FailedStage),
		nullableString(finish.ErrorCode),
		nullableString(finish.ErrorMessage),
		nullableString(finish.OutputPath),
		formatTime(finish.FinishedAt),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: run %d not found", runID)
	}
	return nil
}

// GetRun fetches one run. A missing run returns nil, nil.
func (s *Store) GetRun(ctx context.Context, runID int64) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// ForJob returns every run of jobID, oldest first.
func (s *Store) ForJob(ctx context.Context, jobID string) ([]Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs WHERE job_id = ? ORDER BY started_at, id`, jobID)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Attempts returns the stage attempts of a run in insertion order.
func (s *Store) Attempts(ctx context.Context, runID int64) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT run_id, stage, attempt, option, outcome, error_code, message, started_at, finished_at
         FROM stage_attempts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var (
			a                     Attempt
			option, code, msg     sql.NullString
			startedRaw, finishRaw string
		)
		if err := rows.Scan(&a.RunID, &a.Stage, &a.Attempt, &option, &a.Outcome, &code, &msg, &startedRaw, &finishRaw); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Option = option.String
		a.ErrorCode = code.String
		a.Message = msg.String
		a.StartedAt, _ = parseTimeString(startedRaw)
		a.FinishedAt, _ = parseTimeString(finishRaw)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// MarkAbandoned flips runs still marked running to abandoned, except runs of
// the jobs in exclude (jobs whose run lock is held by a live process).
func (s *Store) MarkAbandoned(ctx context.Context, exclude ...string) (int64, error) {
	query := `UPDATE runs SET status = ?, finished_at = ? WHERE status = ?`
	args := []any{StatusAbandoned, formatTime(time.Now()), StatusRunning}
	if len(exclude) > 0 {
		query += ` AND job_id NOT IN (` + makePlaceholders(len(exclude)) + `)`
		for _, id := range exclude {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Prune deletes finished runs that started before cutoff, attempts included.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM runs WHERE status != ? AND started_at < ?`,
		StatusRunning, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
