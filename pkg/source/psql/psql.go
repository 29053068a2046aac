// Package psql reads and writes measurements directly in the Postgres
// database behind the dashboard.
package psql

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
)

const DefaultTable = "environment_measurements"

type Config struct {
	ConnString string
	Table      string
	Logger     *slog.Logger
}

type Scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	pool    *pgxpool.Pool
	queries Queries
	logger  *slog.Logger
}

// New creates a connection pool. The pool connects lazily; use Ping to check
// the database is reachable.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	queries, err := BuildQueries(cfg.Table)
	if err != nil {
		return nil, err
	}
	cfg.Logger.LogAttrs(ctx, slog.LevelDebug, "Rendered query", slog.String("query", CleanForLogging(queries.Latest)))
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return &Store{
		pool:    pool,
		queries: queries,
		logger:  cfg.Logger,
	}, nil
}

// Latest returns the newest measurement of every sensor at the given
// locations, newest first
func (s *Store) Latest(ctx context.Context, locations []string) ([]measurement.Measurement, error) {
	rows, err := s.pool.Query(ctx, s.queries.Latest, locations)
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	return collectRows(rows)
}

func (s *Store) History(ctx context.Context, location string, typ measurement.Type, since time.Time) ([]measurement.Measurement, error) {
	rows, err := s.pool.Query(ctx, s.queries.History, location, string(typ), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return collectRows(rows)
}

// Insert writes one measurement. A zero CreatedAt uses the database clock.
func (s *Store) Insert(ctx context.Context, m measurement.Measurement) error {
	var createdAt *time.Time
	if !m.CreatedAt.IsZero() {
		ts := m.CreatedAt.UTC()
		createdAt = &ts
	}
	_, err := s.pool.Exec(ctx, s.queries.Insert, m.Location, string(m.Type), m.Value, createdAt)
	if err != nil {
		return fmt.Errorf("insert measurement: %w", err)
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "Stored measurement", slog.String("location", m.Location), slog.String("type", string(m.Type)), slog.Float64("value", m.Value))
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func collectRows(rows pgx.Rows) ([]measurement.Measurement, error) {
	defer rows.Close()
	var ms []measurement.Measurement
	for rows.Next() {
		m, err := Collect(rows)
		if err != nil {
			return nil, err
		}
		ms = append(ms, m)
	}
	return ms, rows.Err()
}

// Collect scans one row of id, location, type, value and created_at
func Collect(res Scanner) (measurement.Measurement, error) {
	var (
		m   measurement.Measurement
		typ string
	)
	if err := res.Scan(&m.ID, &m.Location, &typ, &m.Value, &m.CreatedAt); err != nil {
		return m, err
	}
	t, err := measurement.ParseType(typ)
	if err != nil {
		return m, err
	}
	m.Type = t
	return m, nil
}
