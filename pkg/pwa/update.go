package pwa

import (
	"context"
	"log/slog"
	"time"
)

// Registered starts checking reg for updates on every update interval. A
// previous check loop is replaced. Close stops it.
func (a *App) Registered(ctx context.Context, reg Registration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopUpdatesLocked()
	if reg == nil {
		return
	}
	a.logger.Info("Service worker registered")

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancelUpdates = cancel
	a.updatesDone = done
	go func() {
		defer close(done)
		t := time.NewTicker(a.cfg.UpdateInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := reg.Update(ctx); err != nil && ctx.Err() == nil {
					a.logger.LogAttrs(ctx, slog.LevelWarn, "Update check failed", slog.Any("error", err))
				}
			}
		}
	}()
}

func (a *App) RegisterError(err error) {
	a.logger.LogAttrs(nil, slog.LevelError, "Service worker registration error", slog.Any("error", err))
}

// SignalNeedRefresh records that new content is waiting to be activated
func (a *App) SignalNeedRefresh() {
	a.logger.Info("New content available")
	a.NeedRefresh.Set(true)
}

func (a *App) SignalOfflineReady() {
	a.logger.Info("App ready to work offline")
	a.OfflineReady.Set(true)
}

// ApplyUpdate activates the waiting update through the configured updater
func (a *App) ApplyUpdate(ctx context.Context, reload bool) error {
	if a.cfg.Updater == nil {
		return ErrNoUpdater
	}
	if err := a.cfg.Updater(ctx, reload); err != nil {
		return err
	}
	a.NeedRefresh.Set(false)
	return nil
}

// Close stops the update check loop
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopUpdatesLocked()
	return nil
}

func (a *App) stopUpdatesLocked() {
	if a.cancelUpdates == nil {
		return
	}
	a.cancelUpdates()
	<-a.updatesDone
	a.cancelUpdates = nil
	a.updatesDone = nil
}
