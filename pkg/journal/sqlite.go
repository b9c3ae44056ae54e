package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Journal is the SQLite-backed audit journal. A nil *Journal is valid and
// drops every write, so callers can pass it through unconditionally.
type Journal struct {
	db   *sql.DB
	path string
}

// Open creates the journal at path, opens the database, and applies
// pending migrations.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// migrate applies the embedded schema migrations.
func (j *Journal) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(j.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// BeginCycle records the start of a control cycle.
func (j *Journal) BeginCycle(ctx context.Context, cycleID string) error {
	if j == nil {
		return nil
	}
	query := `INSERT INTO cycles (id, started_at) VALUES (?, ?)`
	if _, err := j.db.ExecContext(ctx, query, cycleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record cycle start: %w", err)
	}
	return nil
}

// CompleteCycle records a cycle's outcome.
func (j *Journal) CompleteCycle(ctx context.Context, cycleID, outcome string) error {
	if j == nil {
		return nil
	}
	query := `UPDATE cycles SET outcome = ?, completed_at = ? WHERE id = ?`
	result, err := j.db.ExecContext(ctx, query, outcome, time.Now().UTC(), cycleID)
	if err != nil {
		return fmt.Errorf("failed to record cycle completion: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("cycle not found: %s", cycleID)
	}
	return nil
}

// RecordTransfer appends one transfer row.
func (j *Journal) RecordTransfer(ctx context.Context, cycleID, kind, source, dest, resource string, amount int) error {
	if j == nil {
		return nil
	}
	query := `
		INSERT INTO transfers (cycle_id, kind, source, dest, resource, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := j.db.ExecContext(ctx, query, cycleID, kind, source, dest, resource, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

// ListCycles returns recorded cycles, newest first.
func (j *Journal) ListCycles(ctx context.Context, limit, offset int) ([]*Cycle, error) {
	query := `
		SELECT id, COALESCE(outcome, ''), started_at, completed_at
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := j.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	cycles := []*Cycle{}
	for rows.Next() {
		c := &Cycle{}
		if err := rows.Scan(&c.ID, &c.Outcome, &c.StartedAt, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycles: %w", err)
	}
	return cycles, nil
}

// ListTransfersByCycle returns every transfer recorded for one cycle, in
// insertion order.
func (j *Journal) ListTransfersByCycle(ctx context.Context, cycleID string) ([]*Transfer, error) {
	query := `
		SELECT id, cycle_id, kind, source, dest, resource, amount, created_at
		FROM transfers
		WHERE cycle_id = ?
		ORDER BY id ASC
	`

	rows, err := j.db.QueryContext(ctx, query, cycleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	transfers := []*Transfer{}
	for rows.Next() {
		t := &Transfer{}
		if err := rows.Scan(&t.ID, &t.CycleID, &t.Kind, &t.Source, &t.Dest, &t.Resource, &t.Amount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}
	return transfers, nil
}

// HealthCheck verifies the database connection is healthy.
func (j *Journal) HealthCheck(ctx context.Context) error {
	if j == nil || j.db == nil {
		return fmt.Errorf("journal not initialized")
	}
	return j.db.PingContext(ctx)
}
