package measurement

import (
	"fmt"
	"time"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
)

const (
	// SubmitInterval is how often the ESP32 sensors publish a reading
	SubmitInterval = 15 * time.Minute
	// OfflineThreshold is the age after which a reading counts as offline
	OfflineThreshold = SubmitInterval + time.Minute
)

// IsStale reports whether a reading taken at ts is older than
// OfflineThreshold at now. A reading exactly at the threshold is stale.
func IsStale(ts, now time.Time) bool {
	return now.Sub(ts) >= OfflineThreshold
}

// FormatRelativeAge renders the age of ts in four tiers: just now, minutes,
// hours and days. Counts are floored and never singularized.
func FormatRelativeAge(ts, now time.Time, msgs *i18n.Messages) string {
	if msgs == nil {
		msgs = i18n.Default
	}
	age := now.Sub(ts)
	minutes := int(age / time.Minute)
	hours := int(age / time.Hour)
	switch {
	case minutes < 1:
		return msgs.JustNow
	case minutes < 60:
		return fmt.Sprintf(msgs.MinutesAgo, minutes)
	case hours < 24:
		return fmt.Sprintf(msgs.HoursAgo, hours)
	default:
		return fmt.Sprintf(msgs.DaysAgo, int(age/(24*time.Hour)))
	}
}
