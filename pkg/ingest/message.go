package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
)

// SensorErrorValue is the status temperature the firmware reports when the
// sensor cannot be read
const SensorErrorValue = -999

var (
	ErrUnknownTopic = errors.New("unknown topic")
	ErrSensorError  = errors.New("sensor reported an error value")
	ErrNoValue      = errors.New("no temperature in message")
)

// Status is the periodic JSON status message published by a sensor
type Status struct {
	Temperature *float64 `json:"temperature"`
	DeviceID    string   `json:"device_id"`
	RSSI        *int     `json:"rssi"`
	Uptime      *int64   `json:"uptime"`
	FreeHeap    *int64   `json:"free_heap"`
}

// Reading is a parsed sensor message
type Reading struct {
	Location    string
	Temperature float64
	// Status is nil for plain temperature messages
	Status *Status
}

func (r Reading) DeviceID() string {
	if r.Status != nil && r.Status.DeviceID != "" {
		return r.Status.DeviceID
	}
	return "sensor_" + r.Location
}

func (r Reading) Measurement() measurement.Measurement {
	return measurement.Measurement{
		Location: r.Location,
		Type:     measurement.Temperature,
		Value:    r.Temperature,
	}
}

// Parse decodes a message published on <prefix>/<location>/temperature or
// <prefix>/<location>/status.
func Parse(prefix, topic string, payload []byte) (Reading, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != prefix || parts[1] == "" {
		return Reading{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	r := Reading{Location: parts[1]}
	switch parts[2] {
	case "temperature":
		v, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil {
			return Reading{}, fmt.Errorf("invalid temperature payload %q: %w", payload, err)
		}
		r.Temperature = v
	case "status":
		var st Status
		if err := json.Unmarshal(payload, &st); err != nil {
			return Reading{}, fmt.Errorf("invalid status payload: %w", err)
		}
		if st.Temperature == nil {
			return Reading{}, ErrNoValue
		}
		if *st.Temperature == SensorErrorValue {
			return Reading{}, ErrSensorError
		}
		r.Temperature = *st.Temperature
		r.Status = &st
	default:
		return Reading{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	return r, nil
}
