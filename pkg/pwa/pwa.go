// Package pwa is the installable-app facade of the dashboard. It tracks the
// install prompt, network state and update availability reported by the host
// and exposes them as observable values.
package pwa

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/observable"
)

const DefaultUpdateInterval = time.Minute

var ErrNoUpdater = errors.New("no updater configured")

type Outcome string

const (
	Accepted  Outcome = "accepted"
	Dismissed Outcome = "dismissed"
)

type Choice struct {
	Outcome  Outcome
	Platform string
}

// PromptEvent is a captured install prompt. It can be shown once.
type PromptEvent interface {
	Prompt(ctx context.Context) error
	UserChoice(ctx context.Context) (Choice, error)
}

type ShareData struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text,omitempty"`
	URL   string `json:"url,omitempty"`
}

type Sharer interface {
	Share(ctx context.Context, data ShareData) error
}

// Registration is an installed service worker that can look for a newer
// version of itself
type Registration interface {
	Update(ctx context.Context) error
}

type DisplayMode interface {
	Standalone() bool
}

type Config struct {
	// AppURL is shared when the caller gives no URL
	AppURL   string
	Messages *i18n.Messages
	// Sharer is nil when the platform has no share facility
	Sharer Sharer
	// Updater activates a waiting update, optionally reloading the app
	Updater        func(ctx context.Context, reload bool) error
	UpdateInterval time.Duration
	Logger         *slog.Logger
}

type App struct {
	Installable  *observable.Value[bool]
	Installed    *observable.Value[bool]
	Online       *observable.Value[bool]
	NeedRefresh  *observable.Value[bool]
	OfflineReady *observable.Value[bool]

	cfg    Config
	logger *slog.Logger

	mu            sync.Mutex
	prompt        PromptEvent
	cancelUpdates context.CancelFunc
	updatesDone   chan struct{}
}

func New(cfg Config) *App {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Messages == nil {
		cfg.Messages = i18n.Default
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = DefaultUpdateInterval
	}
	return &App{
		Installable:  observable.New(false),
		Installed:    observable.New(false),
		Online:       observable.New(true),
		NeedRefresh:  observable.New(false),
		OfflineReady: observable.New(false),
		cfg:          cfg,
		logger:       cfg.Logger,
	}
}

// Init records the initial network state and whether the app already runs
// installed
func (a *App) Init(online bool, mode DisplayMode) {
	a.Online.Set(online)
	if mode != nil && mode.Standalone() {
		a.Installed.Set(true)
	}
}

// CapturePrompt keeps an install prompt for a later Install call
func (a *App) CapturePrompt(ev PromptEvent) {
	if ev == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompt = ev
	a.Installable.Set(true)
}

// MarkInstalled handles the platform's app-installed notification
func (a *App) MarkInstalled() {
	a.mu.Lock()
	a.prompt = nil
	a.Installable.Set(false)
	a.mu.Unlock()
	a.logger.Info("App installed")
	a.Installed.Set(true)
}

// Install shows the captured prompt and reports whether the user accepted.
// The prompt is consumed whatever the outcome, so a second call without a
// new prompt returns false.
func (a *App) Install(ctx context.Context) bool {
	a.mu.Lock()
	p := a.prompt
	if p != nil {
		// Installable mirrors a.prompt
		a.prompt = nil
		a.Installable.Set(false)
	}
	a.mu.Unlock()
	if p == nil {
		return false
	}

	if err := p.Prompt(ctx); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "Error showing install prompt", slog.Any("error", err))
		return false
	}
	choice, err := p.UserChoice(ctx)
	if err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "Error during installation", slog.Any("error", err))
		return false
	}
	a.logger.LogAttrs(ctx, slog.LevelInfo, "Install prompt answered", slog.String("outcome", string(choice.Outcome)), slog.String("platform", choice.Platform))
	return choice.Outcome == Accepted
}

func (a *App) SetOnline(online bool) {
	a.Online.Set(online)
}

func (a *App) CanShare() bool {
	return a.cfg.Sharer != nil
}

// Share passes data to the platform share facility, filling in the app's
// defaults for empty fields. It reports false when sharing is unavailable or
// the share was rejected or cancelled.
func (a *App) Share(ctx context.Context, data *ShareData) bool {
	if !a.CanShare() {
		return false
	}
	d := ShareData{
		Title: a.cfg.Messages.ShareTitle,
		Text:  a.cfg.Messages.ShareText,
		URL:   a.cfg.AppURL,
	}
	if data != nil {
		if data.Title != "" {
			d.Title = data.Title
		}
		if data.Text != "" {
			d.Text = data.Text
		}
		if data.URL != "" {
			d.URL = data.URL
		}
	}
	if err := a.cfg.Sharer.Share(ctx, d); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelError, "Error sharing", slog.Any("error", err))
		return false
	}
	return true
}

type Status struct {
	Installable  bool `json:"installable"`
	Installed    bool `json:"installed"`
	Online       bool `json:"online"`
	NeedRefresh  bool `json:"need_refresh"`
	OfflineReady bool `json:"offline_ready"`
	CanShare     bool `json:"can_share"`
}

func (a *App) Status() Status {
	return Status{
		Installable:  a.Installable.Get(),
		Installed:    a.Installed.Get(),
		Online:       a.Online.Get(),
		NeedRefresh:  a.NeedRefresh.Get(),
		OfflineReady: a.OfflineReady.Get(),
		CanShare:     a.CanShare(),
	}
}
