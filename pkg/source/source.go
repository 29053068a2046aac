// Package source defines the measurement backend the dashboard reads from and
// opens the configured implementation.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/influx"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/psql"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/supabase"
)

var (
	ErrMissingConfig  = errors.New("missing backend configuration")
	ErrUnknownBackend = errors.New("unknown backend")
)

const (
	Supabase = "supabase"
	Postgres = "postgres"
	Influx   = "influx"
)

// Source answers the two queries the dashboard needs
type Source interface {
	// Latest returns measurements of the given locations ordered by
	// created_at descending
	Latest(ctx context.Context, locations []string) ([]measurement.Measurement, error)
	// History returns the measurements of one sensor created at or after
	// since, ordered by created_at ascending
	History(ctx context.Context, location string, typ measurement.Type, since time.Time) ([]measurement.Measurement, error)
	Ping(ctx context.Context) error
	io.Closer
}

type Writer interface {
	Insert(ctx context.Context, m measurement.Measurement) error
}

type Backend interface {
	Source
	Writer
}

type Config struct {
	Kind     string
	Supabase supabase.Config
	Postgres psql.Config
	Influx   influx.Config
	Logger   *slog.Logger
}

// Open creates the backend named by cfg.Kind. An empty kind means Supabase.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Kind {
	case "", Supabase:
		c := cfg.Supabase
		if c.URL == "" || c.AnonKey == "" {
			return nil, fmt.Errorf("%w: supabase URL and anon key must be set", ErrMissingConfig)
		}
		c.Logger = cfg.Logger
		s, err := supabase.New(c)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Postgres:
		c := cfg.Postgres
		if c.ConnString == "" {
			return nil, fmt.Errorf("%w: postgres connection settings must be set", ErrMissingConfig)
		}
		c.Logger = cfg.Logger
		s, err := psql.New(ctx, c)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Influx:
		c := cfg.Influx
		c.Logger = cfg.Logger
		s, err := influx.New(c)
		if errors.Is(err, influx.ErrMissingConfig) {
			return nil, fmt.Errorf("%w: %w", ErrMissingConfig, err)
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Kind)
	}
}
