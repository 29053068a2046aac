// Package influx reads and writes measurements in an InfluxDB 2 bucket. Each
// measurement is a point of the configured measurement name tagged with
// location and type and carrying a single "value" field.
package influx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/template"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
)

const (
	DefaultMeasurement = "environment_measurements"
	DefaultLookback    = 30 * 24 * time.Hour
)

var ErrMissingConfig = errors.New("influx URL, token, org and bucket are required")

var (
	latestTmpl = template.Must(template.New("Latest").Parse(`
		from(bucket: {{.Bucket}})
			|> range(start: {{.Start}})
			|> filter(fn: (r) => r._measurement == {{.Measurement}} and r._field == "value")
			|> filter(fn: (r) => contains(value: r.location, set: [{{.Locations}}]))
			|> group(columns: ["location", "type"])
			|> last()
			|> group()
			|> sort(columns: ["_time"], desc: true)
	`))
	historyTmpl = template.Must(template.New("History").Parse(`
		from(bucket: {{.Bucket}})
			|> range(start: {{.Start}})
			|> filter(fn: (r) => r._measurement == {{.Measurement}} and r._field == "value")
			|> filter(fn: (r) => r.location == {{.Location}} and r.type == {{.Type}})
			|> group()
			|> sort(columns: ["_time"])
	`))
)

type tmplValues struct {
	Bucket      string
	Measurement string
	Start       string
	Locations   string
	Location    string
	Type        string
}

type Config struct {
	URL         string
	Token       string
	Org         string
	Bucket      string
	Measurement string
	// Lookback bounds how far back Latest searches for the newest points
	Lookback time.Duration
	Logger   *slog.Logger
}

type Store struct {
	client      influxdb2.Client
	query       api.QueryAPI
	write       api.WriteAPIBlocking
	bucket      string
	measurement string
	lookback    time.Duration
	logger      *slog.Logger
}

func New(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.Token == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, ErrMissingConfig
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Measurement == "" {
		cfg.Measurement = DefaultMeasurement
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Store{
		client:      client,
		query:       client.QueryAPI(cfg.Org),
		write:       client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket:      cfg.Bucket,
		measurement: cfg.Measurement,
		lookback:    cfg.Lookback,
		logger:      cfg.Logger,
	}, nil
}

func (s *Store) Latest(ctx context.Context, locations []string) ([]measurement.Measurement, error) {
	q, err := LatestQuery(s.bucket, s.measurement, locations, time.Now().Add(-s.lookback))
	if err != nil {
		return nil, err
	}
	return s.run(ctx, q)
}

func (s *Store) History(ctx context.Context, location string, typ measurement.Type, since time.Time) ([]measurement.Measurement, error) {
	q, err := HistoryQuery(s.bucket, s.measurement, location, typ, since)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, q)
}

func (s *Store) run(ctx context.Context, q string) ([]measurement.Measurement, error) {
	s.logger.LogAttrs(ctx, slog.LevelDebug, "Running Flux query", slog.String("query", cleanForLogging(q)))
	result, err := s.query.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("flux query: %w", err)
	}
	defer result.Close()
	var ms []measurement.Measurement
	for result.Next() {
		r := result.Record()
		location, _ := r.ValueByKey("location").(string)
		typ, err := measurement.ParseType(fmt.Sprint(r.ValueByKey("type")))
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "Skipping point", slog.String("location", location), slog.Any("error", err))
			continue
		}
		value, ok := toFloat(r.Value())
		if !ok {
			continue
		}
		ms = append(ms, measurement.Measurement{
			Location:  location,
			Type:      typ,
			Value:     value,
			CreatedAt: r.Time(),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("flux result: %w", err)
	}
	return ms, nil
}

func (s *Store) Insert(ctx context.Context, m measurement.Measurement) error {
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	p := influxdb2.NewPoint(
		s.measurement,
		map[string]string{"location": m.Location, "type": string(m.Type)},
		map[string]any{"value": m.Value},
		ts,
	)
	if err := s.write.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("write point: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("influx: ping failed")
	}
	return nil
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}

func LatestQuery(bucket, meas string, locations []string, start time.Time) (string, error) {
	quoted := make([]string, len(locations))
	for i, l := range locations {
		quoted[i] = strconv.Quote(l)
	}
	return render(latestTmpl, tmplValues{
		Bucket:      strconv.Quote(bucket),
		Measurement: strconv.Quote(meas),
		Start:       start.UTC().Format(time.RFC3339),
		Locations:   strings.Join(quoted, ", "),
	})
}

func HistoryQuery(bucket, meas, location string, typ measurement.Type, since time.Time) (string, error) {
	return render(historyTmpl, tmplValues{
		Bucket:      strconv.Quote(bucket),
		Measurement: strconv.Quote(meas),
		Start:       since.UTC().Format(time.RFC3339),
		Location:    strconv.Quote(location),
		Type:        strconv.Quote(string(typ)),
	})
}

func render(t *template.Template, v tmplValues) (string, error) {
	b := new(strings.Builder)
	if err := t.Execute(b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func cleanForLogging(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
