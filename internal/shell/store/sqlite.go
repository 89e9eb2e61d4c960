package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database. Timestamps are stored as
// fixed-precision RFC 3339 UTC strings so their lexical order matches their
// chronological order.
type runRow struct {
	ID           string  `db:"id"`
	Project      string  `db:"project"`
	ManifestPath string  `db:"manifest_path"`
	Status       string  `db:"status"`
	ErrorMessage string  `db:"error_message"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
	StartedAt    *string `db:"started_at"`
	StoppedAt    *string `db:"stopped_at"`
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, s.db, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.db, id)
}

func (s *SQLiteStore) GetLatestRun(ctx context.Context, project string) (*Run, error) {
	return getLatestRun(ctx, s.db, project)
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errorMessage string) error {
	return updateRunStatus(ctx, s.db, id, status, errorMessage)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, project string, opts ListOptions) ([]Run, error) {
	return listRuns(ctx, s.db, project, opts)
}

// =============================================================================
// Run Container Operations
// =============================================================================

// runContainerRow represents a run container row in the database.
type runContainerRow struct {
	ID            int64  `db:"id"`
	RunID         string `db:"run_id"`
	ServiceName   string `db:"service_name"`
	ContainerID   string `db:"container_id"`
	ContainerName string `db:"container_name"`
	Image         string `db:"image"`
	State         string `db:"state"`
	CreatedAt     string `db:"created_at"`
}

func (s *SQLiteStore) AddRunContainer(ctx context.Context, rc *RunContainer) error {
	return addRunContainer(ctx, s.db, rc)
}

func (s *SQLiteStore) ListRunContainers(ctx context.Context, runID string) ([]RunContainer, error) {
	return listRunContainers(ctx, s.db, runID)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateRun(ctx context.Context, run *Run) error {
	return createRun(ctx, s.tx, run)
}

func (s *txSQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetLatestRun(ctx context.Context, project string) (*Run, error) {
	return getLatestRun(ctx, s.tx, project)
}

func (s *txSQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errorMessage string) error {
	return updateRunStatus(ctx, s.tx, id, status, errorMessage)
}

func (s *txSQLiteStore) ListRuns(ctx context.Context, project string, opts ListOptions) ([]Run, error) {
	return listRuns(ctx, s.tx, project, opts)
}

func (s *txSQLiteStore) AddRunContainer(ctx context.Context, rc *RunContainer) error {
	return addRunContainer(ctx, s.tx, rc)
}

func (s *txSQLiteStore) ListRunContainers(ctx context.Context, runID string) ([]RunContainer, error) {
	return listRunContainers(ctx, s.tx, runID)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createRun(ctx context.Context, exec executor, run *Run) error {
	if !run.Status.Valid() {
		return NewStoreError("CreateRun", "run", run.ID, string(run.Status), ErrInvalidStatus)
	}

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	_, err := exec.ExecContext(ctx, `
		INSERT INTO stack_runs (id, project, manifest_path, status, error_message, created_at, updated_at, started_at, stopped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Project, run.ManifestPath, string(run.Status), run.ErrorMessage,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt),
		formatTimePtr(run.StartedAt), formatTimePtr(run.StoppedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return NewStoreError("CreateRun", "run", run.ID, "run already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateRun", "run", run.ID, err.Error(), err)
	}

	return nil
}

func getRun(ctx context.Context, exec executor, id string) (*Run, error) {
	var row runRow
	err := exec.GetContext(ctx, &row, `SELECT * FROM stack_runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", "run", id, "run not found", ErrNotFound)
		}
		return nil, NewStoreError("GetRun", "run", id, err.Error(), err)
	}

	return rowToRun(row)
}

func getLatestRun(ctx context.Context, exec executor, project string) (*Run, error) {
	var row runRow
	err := exec.GetContext(ctx, &row, `
		SELECT * FROM stack_runs WHERE project = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, project)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetLatestRun", "run", project, "no runs for project", ErrNotFound)
		}
		return nil, NewStoreError("GetLatestRun", "run", project, err.Error(), err)
	}

	return rowToRun(row)
}

func updateRunStatus(ctx context.Context, exec executor, id string, status RunStatus, errorMessage string) error {
	if !status.Valid() {
		return NewStoreError("UpdateRunStatus", "run", id, string(status), ErrInvalidStatus)
	}

	now := formatTime(time.Now().UTC())

	var result sql.Result
	var err error
	switch status {
	case RunStatusRunning:
		result, err = exec.ExecContext(ctx, `
			UPDATE stack_runs SET status = ?, error_message = ?, updated_at = ?, started_at = ?
			WHERE id = ?`, string(status), errorMessage, now, now, id)
	case RunStatusStopped, RunStatusFailed:
		result, err = exec.ExecContext(ctx, `
			UPDATE stack_runs SET status = ?, error_message = ?, updated_at = ?, stopped_at = ?
			WHERE id = ?`, string(status), errorMessage, now, now, id)
	default:
		result, err = exec.ExecContext(ctx, `
			UPDATE stack_runs SET status = ?, error_message = ?, updated_at = ?
			WHERE id = ?`, string(status), errorMessage, now, id)
	}
	if err != nil {
		return NewStoreError("UpdateRunStatus", "run", id, err.Error(), err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return NewStoreError("UpdateRunStatus", "run", id, err.Error(), err)
	}
	if affected == 0 {
		return NewStoreError("UpdateRunStatus", "run", id, "run not found", ErrNotFound)
	}

	return nil
}

func listRuns(ctx context.Context, exec executor, project string, opts ListOptions) ([]Run, error) {
	opts = opts.Normalize()

	var rows []runRow
	var err error
	if project != "" {
		err = exec.SelectContext(ctx, &rows, `
			SELECT * FROM stack_runs WHERE project = ?
			ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
			project, opts.Limit, opts.Offset)
	} else {
		err = exec.SelectContext(ctx, &rows, `
			SELECT * FROM stack_runs
			ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
			opts.Limit, opts.Offset)
	}
	if err != nil {
		return nil, NewStoreError("ListRuns", "run", "", err.Error(), err)
	}

	runs := make([]Run, 0, len(rows))
	for _, row := range rows {
		run, err := rowToRun(row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, nil
}

func addRunContainer(ctx context.Context, exec executor, rc *RunContainer) error {
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = time.Now().UTC()
	}

	result, err := exec.ExecContext(ctx, `
		INSERT INTO run_containers (run_id, service_name, container_id, container_name, image, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rc.RunID, rc.ServiceName, rc.ContainerID, rc.ContainerName, rc.Image, rc.State,
		formatTime(rc.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("AddRunContainer", "container", rc.ContainerID, "run not found", ErrNotFound)
		}
		return NewStoreError("AddRunContainer", "container", rc.ContainerID, err.Error(), err)
	}

	rc.ID, _ = result.LastInsertId()
	return nil
}

func listRunContainers(ctx context.Context, exec executor, runID string) ([]RunContainer, error) {
	var rows []runContainerRow
	err := exec.SelectContext(ctx, &rows, `
		SELECT * FROM run_containers WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, NewStoreError("ListRunContainers", "container", runID, err.Error(), err)
	}

	containers := make([]RunContainer, 0, len(rows))
	for _, row := range rows {
		createdAt, err := parseTime(row.CreatedAt)
		if err != nil {
			return nil, NewStoreError("ListRunContainers", "container", runID, err.Error(), err)
		}
		containers = append(containers, RunContainer{
			ID:            row.ID,
			RunID:         row.RunID,
			ServiceName:   row.ServiceName,
			ContainerID:   row.ContainerID,
			ContainerName: row.ContainerName,
			Image:         row.Image,
			State:         row.State,
			CreatedAt:     createdAt,
		})
	}

	return containers, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

func rowToRun(row runRow) (*Run, error) {
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, err.Error(), err)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, err.Error(), err)
	}
	startedAt, err := parseTimePtr(row.StartedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, err.Error(), err)
	}
	stoppedAt, err := parseTimePtr(row.StoppedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", "run", row.ID, err.Error(), err)
	}

	return &Run{
		ID:           row.ID,
		Project:      row.Project,
		ManifestPath: row.ManifestPath,
		Status:       RunStatus(row.Status),
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		StartedAt:    startedAt,
		StoppedAt:    stoppedAt,
	}, nil
}

// timeLayout is RFC 3339 UTC with a fixed-width fractional second. Queries
// order rows lexically on these strings, so the fraction must never be
// trimmed (RFC3339Nano drops trailing zeros, which breaks that ordering
// within a second).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
