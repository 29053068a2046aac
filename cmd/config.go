package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/viper"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/i18n"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/measurement"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/monitor"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/influx"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/psql"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source/supabase"
)

func init() {
	viper.SetDefault("backend.kind", source.Supabase)
	viper.SetDefault("supabase.table", supabase.DefaultTable)
	viper.SetDefault("postgres.host", "localhost")
	viper.SetDefault("postgres.port", 5432)
	viper.SetDefault("postgres.sslmode", "disable")
	viper.SetDefault("postgres.table", psql.DefaultTable)
	viper.SetDefault("influx.measurement", influx.DefaultMeasurement)
	viper.SetDefault("thresholds.low", measurement.DefaultThresholds.Low)
	viper.SetDefault("thresholds.high", measurement.DefaultThresholds.High)
	viper.SetDefault("thresholds.heating_high", measurement.DefaultThresholds.HeatingHigh)
	viper.SetDefault("heating_location", measurement.DefaultThresholds.HeatingLocation)
	viper.SetDefault("poll.interval", monitor.DefaultPollInterval)
	viper.SetDefault("poll.timeout", monitor.DefaultFetchTimeout)
}

func sourceConfig() source.Config {
	connString := viper.GetString("postgres.url")
	if connString == "" && viper.GetString("postgres.database") != "" {
		connString = fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			viper.GetString("postgres.host"),
			viper.GetInt("postgres.port"),
			viper.GetString("postgres.username"),
			viper.GetString("postgres.password"),
			viper.GetString("postgres.database"),
			viper.GetString("postgres.sslmode"),
		)
	}
	return source.Config{
		Kind: viper.GetString("backend.kind"),
		Supabase: supabase.Config{
			URL:     viper.GetString("supabase.url"),
			AnonKey: viper.GetString("supabase.anon_key"),
			Table:   viper.GetString("supabase.table"),
			Timeout: viper.GetDuration("supabase.timeout"),
		},
		Postgres: psql.Config{
			ConnString: connString,
			Table:      viper.GetString("postgres.table"),
		},
		Influx: influx.Config{
			URL:         viper.GetString("influx.url"),
			Token:       viper.GetString("influx.token"),
			Org:         viper.GetString("influx.org"),
			Bucket:      viper.GetString("influx.bucket"),
			Measurement: viper.GetString("influx.measurement"),
			Lookback:    viper.GetDuration("influx.lookback"),
		},
		Logger: logger,
	}
}

func messages() *i18n.Messages {
	return i18n.Lookup(viper.GetString("lang"))
}

// displayNames merges the configured locations over the built-in names
func displayNames() map[string]string {
	names := maps.Clone(measurement.DefaultDisplayNames)
	maps.Copy(names, viper.GetStringMapString("locations"))
	return names
}

func monitorConfig() monitor.Config {
	var locations []string
	if configured := viper.GetStringMapString("locations"); len(configured) > 0 {
		locations = slices.Sorted(maps.Keys(configured))
	}
	return monitor.Config{
		Locations:    locations,
		DisplayNames: displayNames(),
		Thresholds: measurement.Thresholds{
			Low:             viper.GetFloat64("thresholds.low"),
			High:            viper.GetFloat64("thresholds.high"),
			HeatingHigh:     viper.GetFloat64("thresholds.heating_high"),
			HeatingLocation: viper.GetString("heating_location"),
		},
		PollInterval: viper.GetDuration("poll.interval"),
		FetchTimeout: viper.GetDuration("poll.timeout"),
		Messages:     messages(),
		Logger:       logger,
	}
}
