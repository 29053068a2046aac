// Package supabase reads and writes measurements through the PostgREST API of
// a Supabase project.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
)

const DefaultTable = "environment_measurements"

var ErrMissingCredentials = errors.New("supabase URL and anon key are required")

type Config struct {
	URL     string
	AnonKey string
	Table   string
	Timeout time.Duration
	Logger  *slog.Logger
}

type Client struct {
	client *resty.Client
	table  string
	logger *slog.Logger
}

// apiError is the PostgREST error body
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+"/rest/v1").
		SetHeader("apikey", cfg.AnonKey).
		SetAuthToken(cfg.AnonKey).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout)
	return &Client{
		client: c,
		table:  cfg.Table,
		logger: cfg.Logger,
	}, nil
}

// Latest returns every measurement of the given locations, newest first
func (c *Client) Latest(ctx context.Context, locations []string) ([]measurement.Measurement, error) {
	return c.query(ctx, map[string]string{
		"select":   "*",
		"location": "in.(" + quoteList(locations) + ")",
		"order":    "created_at.desc",
	})
}

// History returns the measurements of one sensor since the given time,
// oldest first
func (c *Client) History(ctx context.Context, location string, typ measurement.Type, since time.Time) ([]measurement.Measurement, error) {
	return c.query(ctx, map[string]string{
		"select":     "*",
		"location":   "eq." + location,
		"type":       "eq." + string(typ),
		"created_at": "gte." + since.UTC().Format(time.RFC3339Nano),
		"order":      "created_at.asc",
	})
}

func (c *Client) query(ctx context.Context, params map[string]string) ([]measurement.Measurement, error) {
	var (
		rows   []measurement.Measurement
		apiErr apiError
	)
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&rows).
		SetError(&apiErr).
		Get("/" + c.table)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.table, err)
	}
	if resp.IsError() {
		return nil, responseError(resp, apiErr)
	}
	c.logger.LogAttrs(ctx, slog.LevelDebug, "Queried measurements", slog.String("table", c.table), slog.Int("rows", len(rows)))
	return rows, nil
}

// Insert writes one measurement the way the ESP32 publisher does. A zero
// CreatedAt leaves the timestamp to the database default.
func (c *Client) Insert(ctx context.Context, m measurement.Measurement) error {
	body := map[string]any{
		"location": m.Location,
		"type":     m.Type,
		"value":    m.Value,
	}
	if !m.CreatedAt.IsZero() {
		body["created_at"] = m.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=minimal").
		SetBody(body).
		SetError(&apiErr).
		Post("/" + c.table)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", c.table, err)
	}
	if resp.IsError() {
		return responseError(resp, apiErr)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"select": "location", "limit": "1"}).
		SetError(&apiErr).
		Get("/" + c.table)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return responseError(resp, apiErr)
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}

func responseError(resp *resty.Response, apiErr apiError) error {
	if apiErr.Message != "" {
		return fmt.Errorf("supabase: %s: %s", resp.Status(), apiErr.Message)
	}
	return fmt.Errorf("supabase: %s", resp.Status())
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return strings.Join(quoted, ",")
}
