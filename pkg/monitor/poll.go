package monitor

import (
	"context"
	"log/slog"
	"time"
)

// StartPolling fetches immediately and then on every poll interval until
// StopPolling is called or ctx is done. Calling it again replaces the
// running poller.
func (m *Monitor) StartPolling(ctx context.Context) {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	m.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancelPoll = cancel
	m.pollDone = done
	m.logger.LogAttrs(ctx, slog.LevelInfo, "Starting poller", slog.Duration("interval", m.cfg.PollInterval))
	go func() {
		defer close(done)
		t := time.NewTicker(m.cfg.PollInterval)
		defer t.Stop()

		m.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.poll(ctx)
			}
		}
	}()
}

// StopPolling stops the poller and waits for it to exit. It is safe to call
// when no poller is running.
func (m *Monitor) StopPolling() {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if m.cancelPoll == nil {
		return
	}
	m.cancelPoll()
	<-m.pollDone
	m.cancelPoll = nil
	m.pollDone = nil
	m.logger.Info("Stopped poller")
}

// Polling reports whether a poller is running
func (m *Monitor) Polling() bool {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()
	return m.cancelPoll != nil
}

// Run polls until ctx is done
func (m *Monitor) Run(ctx context.Context) error {
	m.StartPolling(ctx)
	<-ctx.Done()
	m.StopPolling()
	return nil
}

func (m *Monitor) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.FetchTimeout)
	defer cancel()
	// failures are already logged and published; the next tick retries
	_ = m.Fetch(ctx)
}
