package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/ingest"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source"
)

var ingestCmd = &cobra.Command{
	Use:          "ingest",
	Short:        "Store sensor readings published over MQTT",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg := sourceConfig()
		backend, err := source.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		bridge := ingest.New(backend, ingest.Config{
			Broker:      viper.GetString("mqtt.broker"),
			ClientID:    viper.GetString("mqtt.client_id"),
			Username:    viper.GetString("mqtt.username"),
			Password:    viper.GetString("mqtt.password"),
			TopicPrefix: viper.GetString("mqtt.topic_prefix"),
			KeepAlive:   viper.GetDuration("mqtt.keep_alive"),
			RetryDelay:  viper.GetDuration("mqtt.retry_delay"),
			Logger:      logger,
		})
		logger.LogAttrs(ctx, slog.LevelInfo, "Starting MQTT bridge", slog.String("backend", cfg.Kind), slog.Any("topics", bridge.Topics()))
		return bridge.Run(ctx)
	},
}

func init() {
	ingestCmd.Flags().String("mqtt.broker", ingest.DefaultBroker, "MQTT broker address")
	ingestCmd.Flags().String("mqtt.client_id", "", "MQTT client ID (random if empty)")
	ingestCmd.Flags().String("mqtt.username", "", "MQTT username")
	ingestCmd.Flags().String("mqtt.password", "", "MQTT password")
	ingestCmd.Flags().Duration("mqtt.retry_delay", ingest.DefaultRetryDelay, "delay between reconnect attempts")
	ingestCmd.Flags().String("mqtt.topic_prefix", ingest.DefaultTopicPrefix, "first topic level of sensor messages")

	cobra.CheckErr(viper.BindPFlags(ingestCmd.Flags()))

	rootCmd.AddCommand(ingestCmd)
}
