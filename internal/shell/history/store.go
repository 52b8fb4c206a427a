// Package history persists a local record of past runs in SQLite so
// operators can see what was deployed where, and with what outcome.
// Recording is best-effort: a history failure never alters a run's exit
// code.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/shipway/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Store
// =============================================================================

// Store records run outcomes in a local SQLite database.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if necessary) the history database and runs
// migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	return &Store{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// Run Operations
// =============================================================================

// runRow represents a run row in the database.
type runRow struct {
	ID         int64     `db:"id"`
	RunID      string    `db:"run_id"`
	Project    string    `db:"project"`
	Stage      string    `db:"stage"`
	ExitCode   int       `db:"exit_code"`
	Message    string    `db:"message"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
}

func toRow(r domain.RunResult) runRow {
	return runRow{
		RunID:      r.RunID,
		Project:    r.Project,
		Stage:      string(r.Stage),
		ExitCode:   r.ExitCode,
		Message:    r.Message,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func fromRow(row runRow) domain.RunResult {
	return domain.RunResult{
		RunID:      row.RunID,
		Project:    row.Project,
		Stage:      domain.Stage(row.Stage),
		ExitCode:   row.ExitCode,
		Message:    row.Message,
		StartedAt:  row.StartedAt,
		FinishedAt: row.FinishedAt,
	}
}

// RecordRun appends one run outcome.
func (s *Store) RecordRun(ctx context.Context, result domain.RunResult) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO runs (run_id, project, stage, exit_code, message, started_at, finished_at)
		VALUES (:run_id, :project, :stage, :exit_code, :message, :started_at, :finished_at)`,
		toRow(result))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.RunResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []runRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, run_id, project, stage, exit_code, message, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	results := make([]domain.RunResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, fromRow(row))
	}
	return results, nil
}
