package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/middleware"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/monitor"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/pwa"
)

const maxHistoryHours = 24 * 90

type readingResponse struct {
	Current     float64            `json:"current"`
	LastUpdated time.Time          `json:"last_updated"`
	Status      measurement.Status `json:"status"`
	Age         string             `json:"age"`
	Band        *measurement.Band  `json:"band,omitempty"`
}

type locationResponse struct {
	Location    string           `json:"location"`
	DisplayName string           `json:"display_name"`
	Temperature *readingResponse `json:"temperature,omitempty"`
	Humidity    *readingResponse `json:"humidity,omitempty"`
}

type dashboardResponse struct {
	Locations  []locationResponse  `json:"locations"`
	Alerts     []measurement.Alert `json:"alerts"`
	Loading    bool                `json:"loading"`
	Error      string              `json:"error,omitempty"`
	LastUpdate *time.Time          `json:"last_update,omitempty"`
}

type historyResponse struct {
	Location string                   `json:"location"`
	Type     measurement.Type         `json:"type"`
	Hours    int                      `json:"hours"`
	Points   []measurement.ChartPoint `json:"points"`
}

func dashboardHandler(d Dashboard, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc, err := parseLocation(r.URL.Query().Get("tz"))
		if err != nil {
			logger.LogAttrs(r.Context(), slog.LevelWarn, "Invalid timezone", slog.String("timezone", r.URL.Query().Get("tz")), slog.Any("error", err))
			http.Error(w, "Invalid timezone", http.StatusBadRequest)
			return
		}
		writeJSON(w, r, logger, createDashboard(d, middleware.Messages(r.Context()), now(), loc))
	})
}

func locationsHandler(d Dashboard, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc, err := parseLocation(r.URL.Query().Get("tz"))
		if err != nil {
			http.Error(w, "Invalid timezone", http.StatusBadRequest)
			return
		}
		resp := createDashboard(d, middleware.Messages(r.Context()), now(), loc)
		writeJSON(w, r, logger, resp.Locations)
	})
}

func alertsHandler(d Dashboard, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := createDashboard(d, middleware.Messages(r.Context()), now(), time.UTC)
		writeJSON(w, r, logger, resp.Alerts)
	})
}

func historyHandler(d Dashboard, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		location := strings.TrimSpace(q.Get("location"))
		if location == "" {
			http.Error(w, "Missing location", http.StatusBadRequest)
			return
		}
		typ, err := measurement.ParseType(q.Get("type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		hours, err := parseHours(q.Get("hours"))
		if err != nil {
			http.Error(w, "Invalid hours", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		ms, err := d.History(ctx, location, typ, hours)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			logger.LogAttrs(r.Context(), slog.LevelError, "Timeout while querying history", slog.Any("error", err))
			http.Error(w, "Timeout while querying history", http.StatusBadGateway)
			return
		case err == nil:
		default:
			http.Error(w, "Error while getting history", http.StatusInternalServerError)
			return
		}
		if hours <= 0 {
			hours = monitor.DefaultHistoryHours
		}
		writeJSON(w, r, logger, historyResponse{
			Location: location,
			Type:     typ,
			Hours:    hours,
			Points:   measurement.ChartPoints(ms),
		})
	})
}

func bandsHandler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msgs := middleware.Messages(r.Context())
		bands := measurement.Bands()
		for i := range bands {
			bands[i] = localizeBand(bands[i], msgs)
		}
		writeJSON(w, r, logger, bands)
	})
}

func classifyHandler(logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
		if err != nil {
			http.Error(w, "Invalid value", http.StatusBadRequest)
			return
		}
		writeJSON(w, r, logger, localizeBand(measurement.Classify(v), middleware.Messages(r.Context())))
	})
}

func refreshHandler(d Dashboard, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msgs := middleware.Messages(r.Context())
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		if err := d.Fetch(ctx); err != nil {
			// Fetch has already logged the cause
			http.Error(w, msgs.FetchError, http.StatusBadGateway)
			return
		}
		writeJSON(w, r, logger, createDashboard(d, msgs, now(), time.UTC))
	})
}

type appEvent struct {
	Event string `json:"event"`
}

func appStatusHandler(app *pwa.App, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, logger, app.Status())
	})
}

// appEventHandler records lifecycle events reported by the installed app
func appEventHandler(app *pwa.App, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev appEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		switch ev.Event {
		case "online":
			app.SetOnline(true)
		case "offline":
			app.SetOnline(false)
		case "installed":
			app.MarkInstalled()
		case "need_refresh":
			app.SignalNeedRefresh()
		case "offline_ready":
			app.SignalOfflineReady()
		default:
			http.Error(w, "Unknown event", http.StatusBadRequest)
			return
		}
		writeJSON(w, r, logger, app.Status())
	})
}

func appUpdateHandler(app *pwa.App, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reload := r.URL.Query().Get("reload") != "false"
		err := app.ApplyUpdate(r.Context(), reload)
		switch {
		case errors.Is(err, pwa.ErrNoUpdater):
			http.Error(w, err.Error(), http.StatusNotImplemented)
			return
		case errors.Is(err, pwa.ErrNoPendingVersion):
			http.Error(w, err.Error(), http.StatusConflict)
			return
		case err != nil:
			logger.LogAttrs(r.Context(), slog.LevelError, "Error applying update", slog.Any("error", err))
			http.Error(w, "Error applying update", http.StatusInternalServerError)
			return
		}
		writeJSON(w, r, logger, app.Status())
	})
}

// createDashboard renders the current snapshot for one request. Readings
// are re-evaluated at now so that ages and offline states stay current
// between polls.
func createDashboard(d Dashboard, msgs *i18n.Messages, now time.Time, loc *time.Location) dashboardResponse {
	snap := d.Snapshot()
	views := measurement.DeriveLocations(snap.Measurements, d.DisplayNames(), now)
	alerts := measurement.DeriveAlerts(views, d.Thresholds(), msgs)
	if alerts == nil {
		alerts = []measurement.Alert{}
	}
	resp := dashboardResponse{
		Locations: make([]locationResponse, 0, len(views)),
		Alerts:    alerts,
		Loading:   snap.Loading,
	}
	if snap.Error != "" {
		resp.Error = msgs.FetchError
	}
	if snap.LastUpdate != nil {
		t := snap.LastUpdate.In(loc)
		resp.LastUpdate = &t
	}
	for _, v := range views {
		lr := locationResponse{Location: v.Location, DisplayName: v.DisplayName}
		if v.Temperature != nil {
			lr.Temperature = createReading(*v.Temperature, msgs, now, loc)
			b := localizeBand(measurement.Classify(v.Temperature.Current), msgs)
			lr.Temperature.Band = &b
		}
		if v.Humidity != nil {
			lr.Humidity = createReading(*v.Humidity, msgs, now, loc)
		}
		resp.Locations = append(resp.Locations, lr)
	}
	return resp
}

func createReading(rd measurement.Reading, msgs *i18n.Messages, now time.Time, loc *time.Location) *readingResponse {
	return &readingResponse{
		Current:     rd.Current,
		LastUpdated: rd.LastUpdated.In(loc),
		Status:      rd.Status,
		Age:         measurement.FormatRelativeAge(rd.LastUpdated, now, msgs),
	}
}

func localizeBand(b measurement.Band, msgs *i18n.Messages) measurement.Band {
	b.Label = msgs.BandLabel(string(b.Range))
	return b
}

func writeJSON(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.LogAttrs(r.Context(), slog.LevelError, "Error while writing output", slog.Any("error", err))
	}
}

func parseHours(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	h, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if h < 0 || h > maxHistoryHours {
		return 0, errors.New("hours out of range")
	}
	return h, nil
}

func parseLocation(tz string) (loc *time.Location, err error) {
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		return
	}
	loc = time.UTC
	return
}

type shareResponse struct {
	Shared bool `json:"shared"`
}

// appShareHandler shares the app, with the body overriding the default
// title, text and URL
func appShareHandler(app *pwa.App, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.CanShare() {
			http.Error(w, "Sharing not available", http.StatusNotImplemented)
			return
		}
		var data pwa.ShareData
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
				http.Error(w, "Invalid payload", http.StatusBadRequest)
				return
			}
		}
		writeJSON(w, r, logger, shareResponse{Shared: app.Share(r.Context(), &data)})
	})
}
