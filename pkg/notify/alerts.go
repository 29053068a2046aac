package notify

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/monitor"
)

const (
	titleFiring   = "🔴 Sensor alert"
	titleResolved = "🟢 Sensor alert resolved"
)

// AlertNotifier turns monitor snapshots into notifications. An alert is sent
// once when it first appears; once it disappears it is forgotten, so a
// recurrence is sent again.
type AlertNotifier struct {
	notifier Notifier
	resolved bool
	logger   *slog.Logger
	updates  chan []measurement.Alert
	active   map[string]measurement.Alert
}

// NewAlertNotifier creates a notifier. With notifyResolved set, alerts that
// disappear are reported as well.
func NewAlertNotifier(n Notifier, notifyResolved bool, logger *slog.Logger) *AlertNotifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AlertNotifier{
		notifier: n,
		resolved: notifyResolved,
		logger:   logger,
		updates:  make(chan []measurement.Alert, 1),
		active:   make(map[string]measurement.Alert),
	}
}

// Observe queues the alerts of a snapshot. It never blocks; when the queue
// is full the pending alert set is replaced by the newer one.
func (a *AlertNotifier) Observe(s monitor.Snapshot) {
	if s.Loading {
		return
	}
	for {
		select {
		case a.updates <- s.Alerts:
			return
		default:
		}
		select {
		case <-a.updates:
		default:
		}
	}
}

// Run delivers queued alert sets until ctx is done
func (a *AlertNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case alerts := <-a.updates:
			a.process(ctx, alerts)
		}
	}
}

func (a *AlertNotifier) process(ctx context.Context, alerts []measurement.Alert) {
	current := make(map[string]measurement.Alert, len(alerts))
	var fired []measurement.Alert
	for _, al := range alerts {
		k := al.Key()
		current[k] = al
		if _, ok := a.active[k]; !ok {
			fired = append(fired, al)
		}
	}
	var resolved []measurement.Alert
	for k, al := range a.active {
		if _, ok := current[k]; !ok {
			resolved = append(resolved, al)
		}
	}
	a.active = current

	if len(fired) > 0 {
		a.send(ctx, titleFiring, fired)
	}
	if a.resolved && len(resolved) > 0 {
		a.send(ctx, titleResolved, resolved)
	}
}

func (a *AlertNotifier) send(ctx context.Context, title string, alerts []measurement.Alert) {
	lines := make([]string, len(alerts))
	for i, al := range alerts {
		lines[i] = "[" + string(al.Severity) + "] " + al.Message
	}
	if err := a.notifier.Send(ctx, title, strings.Join(lines, "\n")); err != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to send alert notification", slog.String("title", title), slog.Int("alerts", len(alerts)), slog.Any("error", err))
		return
	}
	a.logger.LogAttrs(ctx, slog.LevelInfo, "Sent alert notification", slog.String("title", title), slog.Int("alerts", len(alerts)))
}
