package measurement

import (
	"fmt"
	"time"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
)

// DefaultDisplayNames maps the known sensor locations to their display names
var DefaultDisplayNames = map[string]string{
	"garage":  "Garage",
	"heating": "Heizung",
}

// Thresholds bound the temperatures that raise an alert
type Thresholds struct {
	Low             float64
	High            float64
	HeatingHigh     float64
	HeatingLocation string
}

var DefaultThresholds = Thresholds{
	Low:             10,
	High:            30,
	HeatingHigh:     80,
	HeatingLocation: "heating",
}

// HighFor returns the upper alert bound of a location
func (t Thresholds) HighFor(location string) float64 {
	if location == t.HeatingLocation {
		return t.HeatingHigh
	}
	return t.High
}

// DeriveLocations groups a deduplicated measurement set by location. Views
// are returned in the order their locations first appear in ms.
func DeriveLocations(ms []Measurement, names map[string]string, now time.Time) []LocationView {
	index := make(map[string]int)
	var views []LocationView
	for _, m := range ms {
		i, ok := index[m.Location]
		if !ok {
			displayName, found := names[m.Location]
			if !found {
				displayName = m.Location
			}
			views = append(views, LocationView{
				Location:    m.Location,
				DisplayName: displayName,
			})
			i = len(views) - 1
			index[m.Location] = i
		}
		status := Online
		if IsStale(m.CreatedAt, now) {
			status = Offline
		}
		r := &Reading{
			Current:     m.Value,
			LastUpdated: m.CreatedAt,
			Status:      status,
		}
		switch m.Type {
		case Temperature:
			views[i].Temperature = r
		case Humidity:
			views[i].Humidity = r
		}
	}
	return views
}

// DeriveAlerts computes the alerts of the given location views. Offline
// sensors raise a medium alert; an online temperature outside the location's
// thresholds raises a high one.
func DeriveAlerts(views []LocationView, th Thresholds, msgs *i18n.Messages) []Alert {
	if msgs == nil {
		msgs = i18n.Default
	}
	var alerts []Alert
	for _, v := range views {
		if t := v.Temperature; t != nil {
			if t.Status == Offline {
				alerts = append(alerts, Alert{
					Type:      AlertOffline,
					Location:  v.DisplayName,
					Message:   fmt.Sprintf(msgs.TemperatureOffline, v.DisplayName),
					Severity:  SeverityMedium,
					Sensor:    Temperature,
					Condition: ConditionOffline,
				})
			} else if t.Current < th.Low {
				alerts = append(alerts, Alert{
					Type:      AlertTemperature,
					Location:  v.DisplayName,
					Message:   fmt.Sprintf(msgs.TemperatureLow, v.DisplayName, t.Current),
					Severity:  SeverityHigh,
					Sensor:    Temperature,
					Condition: ConditionLow,
				})
			} else if t.Current > th.HighFor(v.Location) {
				alerts = append(alerts, Alert{
					Type:      AlertTemperature,
					Location:  v.DisplayName,
					Message:   fmt.Sprintf(msgs.TemperatureHigh, v.DisplayName, t.Current),
					Severity:  SeverityHigh,
					Sensor:    Temperature,
					Condition: ConditionHigh,
				})
			}
		}
		if h := v.Humidity; h != nil && h.Status == Offline {
			alerts = append(alerts, Alert{
				Type:      AlertOffline,
				Location:  v.DisplayName,
				Message:   fmt.Sprintf(msgs.HumidityOffline, v.DisplayName),
				Severity:  SeverityMedium,
				Sensor:    Humidity,
				Condition: ConditionOffline,
			})
		}
	}
	return alerts
}
