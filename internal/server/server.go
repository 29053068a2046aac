package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/niktheblak/web-common/pkg/auth"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/middleware"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/monitor"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/pwa"
)

const requestTimeout = 5 * time.Second

// Dashboard is the live state served by the API. It is implemented by
// *monitor.Monitor.
type Dashboard interface {
	Snapshot() monitor.Snapshot
	Fetch(ctx context.Context) error
	History(ctx context.Context, location string, typ measurement.Type, hours int) ([]measurement.Measurement, error)
	Thresholds() measurement.Thresholds
	DisplayNames() map[string]string
}

type Config struct {
	Dashboard     Dashboard
	App           *pwa.App
	Authenticator auth.Authenticator
	Messages      *i18n.Messages
	Logger        *slog.Logger
	Now           func() time.Time
}

// New returns the HTTP handler of the dashboard API
func New(cfg Config) http.Handler {
	if cfg.Authenticator == nil {
		cfg.Authenticator = auth.AlwaysAllow()
	}
	if cfg.Messages == nil {
		cfg.Messages = i18n.Default
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	d, logger := cfg.Dashboard, cfg.Logger

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept-Language"},
		MaxAge:         300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticator(cfg.Authenticator, logger))
		r.Use(middleware.Language(cfg.Messages))
		r.Use(noStore)

		r.Get("/dashboard", dashboardHandler(d, cfg.Now, logger).ServeHTTP)
		r.Get("/locations", locationsHandler(d, cfg.Now, logger).ServeHTTP)
		r.Get("/alerts", alertsHandler(d, cfg.Now, logger).ServeHTTP)
		r.Get("/history", historyHandler(d, logger).ServeHTTP)
		r.Get("/bands", bandsHandler(logger).ServeHTTP)
		r.Get("/classify", classifyHandler(logger).ServeHTTP)
		r.Post("/refresh", refreshHandler(d, cfg.Now, logger).ServeHTTP)
		if cfg.App != nil {
			r.Get("/app", appStatusHandler(cfg.App, logger).ServeHTTP)
			r.Post("/app/events", appEventHandler(cfg.App, logger).ServeHTTP)
			r.Post("/app/update", appUpdateHandler(cfg.App, logger).ServeHTTP)
			r.Post("/app/share", appShareHandler(cfg.App, logger).ServeHTTP)
		}
	})
	return r
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, max-age=0")
		next.ServeHTTP(w, r)
	})
}
