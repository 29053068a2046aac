// Package monitor keeps the live dashboard state: it polls the measurement
// backend, reduces the rows to the latest reading per sensor and derives the
// per-location views and alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/observable"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	DefaultHistoryHours = 24
)

var (
	DefaultLocations = []string{"garage", "heating"}

	ErrSourcePanic = errors.New("source panicked")
)

type Config struct {
	Locations    []string
	DisplayNames map[string]string
	Thresholds   measurement.Thresholds
	PollInterval time.Duration
	FetchTimeout time.Duration
	Messages     *i18n.Messages
	Logger       *slog.Logger
	Now          func() time.Time
}

// Snapshot is everything the view layer renders
type Snapshot struct {
	Measurements []measurement.Measurement  `json:"measurements"`
	Locations    []measurement.LocationView `json:"locations"`
	Alerts       []measurement.Alert        `json:"alerts"`
	Loading      bool                       `json:"loading"`
	Error        string                     `json:"error,omitempty"`
	LastUpdate   *time.Time                 `json:"last_update,omitempty"`
}

type Monitor struct {
	source source.Source
	cfg    Config
	logger *slog.Logger

	mu           sync.Mutex
	measurements []measurement.Measurement
	errMsg       string
	lastUpdate   time.Time
	inFlight     int
	issued       uint64
	settled      uint64
	state        *observable.Value[Snapshot]

	pollMu     sync.Mutex
	cancelPoll context.CancelFunc
	pollDone   chan struct{}
}

func New(src source.Source, cfg Config) *Monitor {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(cfg.Locations) == 0 {
		cfg.Locations = DefaultLocations
	}
	if cfg.DisplayNames == nil {
		cfg.DisplayNames = measurement.DefaultDisplayNames
	}
	if cfg.Thresholds == (measurement.Thresholds{}) {
		cfg.Thresholds = measurement.DefaultThresholds
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Messages == nil {
		cfg.Messages = i18n.Default
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	// nothing has been fetched yet, so the dashboard starts out loading
	return &Monitor{
		source: src,
		cfg:    cfg,
		logger: cfg.Logger,
		state:  observable.New(Snapshot{Loading: true}),
	}
}

// Fetch queries the latest measurements of the known locations and replaces
// the current set. On failure the previous set is kept and the snapshot
// carries a translated error message.
//
// Every call takes a sequence number. An outcome is applied only if no
// later-issued call has settled first, so an older response never
// overwrites a newer one.
func (m *Monitor) Fetch(ctx context.Context) (err error) {
	seq := m.begin()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSourcePanic, r)
			m.logger.LogAttrs(ctx, slog.LevelError, "Error fetching sensor data", slog.Any("error", err))
			m.settle(seq, nil, err)
		}
		m.end()
	}()
	rows, err := m.source.Latest(ctx, m.cfg.Locations)
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelError, "Error fetching sensor data", slog.Any("error", err))
		m.settle(seq, nil, err)
		return err
	}
	m.settle(seq, measurement.Latest(rows), nil)
	return nil
}

func (m *Monitor) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	m.inFlight++
	m.errMsg = ""
	m.publishLocked()
	return m.issued
}

func (m *Monitor) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	m.publishLocked()
}

func (m *Monitor) settle(seq uint64, latest []measurement.Measurement, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if seq <= m.settled {
		m.logger.LogAttrs(nil, slog.LevelDebug, "Discarding outdated fetch result", slog.Uint64("seq", seq), slog.Uint64("settled", m.settled))
		return
	}
	m.settled = seq
	if err != nil {
		m.errMsg = m.cfg.Messages.FetchError
		return
	}
	m.measurements = latest
	m.lastUpdate = m.cfg.Now()
	m.logger.LogAttrs(nil, slog.LevelDebug, "Fetched sensor data", slog.Int("measurements", len(latest)))
}

// publishLocked rebuilds the snapshot from scratch and hands it to the
// subscribers. Subscribers run with m.mu held and must not call back into
// Fetch.
func (m *Monitor) publishLocked() {
	locations := measurement.DeriveLocations(m.measurements, m.cfg.DisplayNames, m.cfg.Now())
	s := Snapshot{
		Measurements: m.measurements,
		Locations:    locations,
		Alerts:       measurement.DeriveAlerts(locations, m.cfg.Thresholds, m.cfg.Messages),
		Loading:      m.inFlight > 0,
		Error:        m.errMsg,
	}
	if !m.lastUpdate.IsZero() {
		ts := m.lastUpdate
		s.LastUpdate = &ts
	}
	m.state.Set(s)
}

// Snapshot returns the state published by the last change
func (m *Monitor) Snapshot() Snapshot {
	return m.state.Get()
}

func (m *Monitor) Locations() []measurement.LocationView {
	return m.state.Get().Locations
}

func (m *Monitor) Alerts() []measurement.Alert {
	return m.state.Get().Alerts
}

// Subscribe registers fn for every published snapshot
func (m *Monitor) Subscribe(fn func(Snapshot)) (cancel func()) {
	return m.state.Subscribe(fn)
}

func (m *Monitor) Thresholds() measurement.Thresholds {
	return m.cfg.Thresholds
}

func (m *Monitor) DisplayNames() map[string]string {
	return m.cfg.DisplayNames
}

// History returns the readings of one sensor over the last hours. A
// non-positive hours means DefaultHistoryHours. Errors are logged and
// returned together with an empty series.
func (m *Monitor) History(ctx context.Context, location string, typ measurement.Type, hours int) ([]measurement.Measurement, error) {
	if hours <= 0 {
		hours = DefaultHistoryHours
	}
	since := m.cfg.Now().Add(-time.Duration(hours) * time.Hour)
	ms, err := m.source.History(ctx, location, typ, since)
	if err != nil {
		m.logger.LogAttrs(ctx, slog.LevelError, "Error fetching historical data",
			slog.String("location", location),
			slog.String("type", string(typ)),
			slog.Int("hours", hours),
			slog.Any("error", err),
		)
		return []measurement.Measurement{}, err
	}
	if ms == nil {
		ms = []measurement.Measurement{}
	}
	return ms, nil
}
