package cmd

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a-schulz/esp32-temperature-sensor/internal/logging"
)

var (
	cfgFile   string
	logger    *slog.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:          "esp32-dashboard",
	Short:        "Live dashboard for ESP32 temperature and humidity sensors",
	SilenceUsage: true,
}

func Execute() error {
	defer func() {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	}()
	return rootCmd.Execute()
}

func init() {
	logger = slog.Default()
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.esp32-dashboard/config.toml)")
	rootCmd.PersistentFlags().String("log.level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log.file", "", "additional JSON log file, rotated by size")
	rootCmd.PersistentFlags().String("lang", "de", "default language of messages")
	rootCmd.PersistentFlags().String("backend.kind", "", "measurement backend (supabase, postgres, influx)")
	rootCmd.PersistentFlags().String("supabase.url", "", "Supabase project URL")
	rootCmd.PersistentFlags().String("supabase.anon_key", "", "Supabase anon key")
	rootCmd.PersistentFlags().String("postgres.host", "", "host")
	rootCmd.PersistentFlags().Int("postgres.port", 0, "port")
	rootCmd.PersistentFlags().String("postgres.username", "", "username")
	rootCmd.PersistentFlags().String("postgres.password", "", "password")
	rootCmd.PersistentFlags().String("postgres.database", "", "database name")
	rootCmd.PersistentFlags().String("postgres.table", "", "table name")
	rootCmd.PersistentFlags().String("influx.url", "", "InfluxDB URL")
	rootCmd.PersistentFlags().String("influx.bucket", "", "InfluxDB bucket")
	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))

	// names used by the web frontend's build environment
	cobra.CheckErr(viper.BindEnv("supabase.url", "SUPABASE_URL", "VITE_SUPABASE_URL"))
	cobra.CheckErr(viper.BindEnv("supabase.anon_key", "SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY"))
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.LogAttrs(nil, slog.LevelWarn, "Failed to load .env file", slog.Any("error", err))
	}
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("/etc/esp32-dashboard")
		viper.AddConfigPath("$HOME/.esp32-dashboard")
		viper.SetConfigName("config")
		viper.SetConfigType("toml")
	}
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configErr := viper.ReadInConfig()

	l, closer, err := logging.New(os.Stderr, logging.Config{
		Level:      viper.GetString("log.level"),
		File:       viper.GetString("log.file"),
		MaxSizeMB:  viper.GetInt("log.max_size"),
		MaxBackups: viper.GetInt("log.max_backups"),
		MaxAgeDays: viper.GetInt("log.max_age"),
		NoColor:    viper.GetBool("log.no_color"),
	})
	if err != nil {
		logger.LogAttrs(nil, slog.LevelWarn, "Invalid logging configuration, using defaults", slog.Any("error", err))
	} else {
		logger, logCloser = l, closer
		slog.SetDefault(logger)
	}
	if configErr == nil {
		logger.LogAttrs(nil, slog.LevelInfo, "Using config file", slog.String("config", viper.ConfigFileUsed()))
	}
}
