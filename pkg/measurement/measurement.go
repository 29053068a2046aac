package measurement

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidType = errors.New("invalid measurement type")

// Type is the kind of value an ESP32 sensor reports
type Type string

const (
	Temperature Type = "temperature"
	Humidity    Type = "humidity"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case Temperature, Humidity:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
}

// Measurement is one sensor reading as stored by the backend
type Measurement struct {
	ID        int64     `json:"id,omitempty"`
	Location  string    `json:"location"`
	Type      Type      `json:"type"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

type Status string

const (
	Online  Status = "online"
	Offline Status = "offline"
	Error   Status = "error"
)

// Reading is the current value of one sensor type at a location
type Reading struct {
	Current     float64   `json:"current"`
	LastUpdated time.Time `json:"last_updated"`
	Status      Status    `json:"status"`
}

// LocationView is the dashboard state of one location. It holds at most one
// temperature and one humidity reading.
type LocationView struct {
	Location    string   `json:"location"`
	DisplayName string   `json:"display_name"`
	Temperature *Reading `json:"temperature,omitempty"`
	Humidity    *Reading `json:"humidity,omitempty"`
}

type AlertType string

const (
	AlertTemperature AlertType = "temperature"
	AlertHumidity    AlertType = "humidity"
	AlertOffline     AlertType = "offline"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Condition is what triggered an alert
type Condition string

const (
	ConditionOffline Condition = "offline"
	ConditionLow     Condition = "low"
	ConditionHigh    Condition = "high"
)

type Alert struct {
	Type      AlertType `json:"type"`
	Location  string    `json:"location"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Sensor    Type      `json:"sensor"`
	Condition Condition `json:"condition"`
}

// Key identifies the alert's sensor and condition independent of the
// reading that triggered it
func (a Alert) Key() string {
	return a.Location + "/" + string(a.Sensor) + "/" + string(a.Condition)
}

// ChartPoint is one point of a history chart
type ChartPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// Latest reduces rows ordered newest-first to the first row of every
// (location, type) pair. The result keeps first-seen order.
func Latest(rows []Measurement) []Measurement {
	type key struct {
		location string
		typ      Type
	}
	seen := make(map[key]struct{}, len(rows))
	var latest []Measurement
	for _, m := range rows {
		k := key{m.Location, m.Type}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		latest = append(latest, m)
	}
	return latest
}

func ChartPoints(ms []Measurement) []ChartPoint {
	points := make([]ChartPoint, 0, len(ms))
	for _, m := range ms {
		points = append(points, ChartPoint{
			X: m.CreatedAt.UTC().Format(time.RFC3339),
			Y: m.Value,
		})
	}
	return points
}
