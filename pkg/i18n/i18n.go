// Package i18n holds the user-facing strings of the dashboard.
package i18n

import (
	"golang.org/x/text/language"
)

// Messages is one language's set of dashboard strings. Fields ending in a
// format verb are used with fmt.Sprintf.
type Messages struct {
	Tag language.Tag

	JustNow    string
	MinutesAgo string // %d
	HoursAgo   string // %d
	DaysAgo    string // %d

	FetchError string

	TemperatureOffline string // %s location
	HumidityOffline    string // %s location
	TemperatureLow     string // %s location, %.1f value
	TemperatureHigh    string // %s location, %.1f value

	BandLabels map[string]string

	ShareTitle string
	ShareText  string
}

var German = &Messages{
	Tag:                language.German,
	JustNow:            "Gerade eben",
	MinutesAgo:         "vor %d Minuten",
	HoursAgo:           "vor %d Stunden",
	DaysAgo:            "vor %d Tagen",
	FetchError:         "Fehler beim Laden der Sensordaten",
	TemperatureOffline: "Temperatursensor in %s ist offline",
	HumidityOffline:    "Feuchtigkeitssensor in %s ist offline",
	TemperatureLow:     "Sehr niedrige Temperatur in %s: %.1f°C",
	TemperatureHigh:    "Sehr hohe Temperatur in %s: %.1f°C",
	BandLabels: map[string]string{
		"cold":        "Kalt",
		"cool":        "Kühl",
		"comfortable": "Angenehm",
		"warm":        "Warm",
		"hot":         "Heiß",
	},
	ShareTitle: "Temperature Sensor Dashboard",
	ShareText:  "Überwache Temperatur und Luftfeuchtigkeit in Echtzeit",
}

var English = &Messages{
	Tag:                language.English,
	JustNow:            "just now",
	MinutesAgo:         "%d minutes ago",
	HoursAgo:           "%d hours ago",
	DaysAgo:            "%d days ago",
	FetchError:         "Error loading sensor data",
	TemperatureOffline: "Temperature sensor in %s is offline",
	HumidityOffline:    "Humidity sensor in %s is offline",
	TemperatureLow:     "Very low temperature in %s: %.1f°C",
	TemperatureHigh:    "Very high temperature in %s: %.1f°C",
	BandLabels: map[string]string{
		"cold":        "Cold",
		"cool":        "Cool",
		"comfortable": "Comfortable",
		"warm":        "Warm",
		"hot":         "Hot",
	},
	ShareTitle: "Temperature Sensor Dashboard",
	ShareText:  "Monitor temperature and humidity in real time",
}

// Default is the language used when nothing else matches.
var Default = German

var (
	catalog = []*Messages{German, English}
	matcher = language.NewMatcher([]language.Tag{German.Tag, English.Tag})
)

// Lookup returns the messages that best match the given language
// preferences. Each preference may be a single tag ("en") or a full
// Accept-Language header value. Empty or unparsable input yields Default.
func Lookup(prefs ...string) *Messages {
	var tags []language.Tag
	for _, p := range prefs {
		if p == "" {
			continue
		}
		parsed, _, err := language.ParseAcceptLanguage(p)
		if err != nil {
			continue
		}
		tags = append(tags, parsed...)
	}
	if len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return Default
	}
	return catalog[idx]
}

// BandLabel returns the localized label of a temperature band, or the band
// name itself if the catalog has none.
func (m *Messages) BandLabel(band string) string {
	if l, ok := m.BandLabels[band]; ok {
		return l
	}
	return band
}
