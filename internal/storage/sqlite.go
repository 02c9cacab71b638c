package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/eugenenazirov/boxplan/internal/calculator"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SQLiteStorage persists plans in a SQLite database file.
type SQLiteStorage struct {
	db *sql.DB
}

// OpenSQLite opens the database at path, sets recommended pragmas and
// applies pending migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, errors.New("sqlite storage requires a database path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps pragmas in effect and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStorage{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	return nil
}

// SavePlan inserts or replaces plan.
func (s *SQLiteStorage) SavePlan(ctx context.Context, plan StoredPlan) error {
	if plan.ID == "" {
		return ErrInvalidPlan
	}

	payload, err := json.Marshal(plan.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, created_at, source, channel, total_quantity, total_cost, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			source = excluded.source,
			channel = excluded.channel,
			total_quantity = excluded.total_quantity,
			total_cost = excluded.total_cost,
			payload = excluded.payload`,
		plan.ID,
		plan.CreatedAt.UTC().UnixNano(),
		plan.Source,
		plan.Plan.Channel.Name,
		plan.Plan.Summary.TotalQuantity,
		plan.Plan.Summary.TotalCost,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// GetPlan loads a plan by ID.
func (s *SQLiteStorage) GetPlan(ctx context.Context, id string) (StoredPlan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, source, payload FROM plans WHERE id = ?`, id)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredPlan{}, ErrNotFound
	}
	if err != nil {
		return StoredPlan{}, err
	}
	return plan, nil
}

// ListPlans returns up to limit plans, newest first. A non-positive limit returns all plans.
func (s *SQLiteStorage) ListPlans(ctx context.Context, limit int) ([]StoredPlan, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, source, payload FROM plans
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var out []StoredPlan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (StoredPlan, error) {
	var (
		out       StoredPlan
		createdAt int64
		payload   string
	)
	if err := row.Scan(&out.ID, &createdAt, &out.Source, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StoredPlan{}, err
		}
		return StoredPlan{}, fmt.Errorf("scan plan: %w", err)
	}

	var plan calculator.Plan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return StoredPlan{}, fmt.Errorf("decode plan %s: %w", out.ID, err)
	}
	out.CreatedAt = time.Unix(0, createdAt).UTC()
	out.Plan = plan
	return out, nil
}
