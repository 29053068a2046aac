package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/niktheblak/web-common/pkg/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/a-schulz/esp32-temperature-sensor/internal/server"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/monitor"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/notify"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/pwa"
	"github.com/a-schulz/esp32-temperature-sensor/pkg/source"
)

var serverCmd = &cobra.Command{
	Use:          "server",
	Short:        "Start dashboard API server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		cfg := sourceConfig()
		logger.LogAttrs(ctx, slog.LevelInfo, "Opening measurement backend", slog.String("kind", cfg.Kind))
		backend, err := source.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := backend.Close(); err != nil {
				logger.LogAttrs(nil, slog.LevelError, "Failed to close backend", slog.Any("error", err))
			}
		}()
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := backend.Ping(pingCtx); err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "Backend not reachable yet", slog.Any("error", err))
		}
		pingCancel()

		mcfg := monitorConfig()
		mon := monitor.New(backend, mcfg)
		var app *pwa.App
		appCfg := pwa.Config{
			AppURL:         viper.GetString("server.public_url"),
			Messages:       mcfg.Messages,
			UpdateInterval: viper.GetDuration("app.update_interval"),
			Logger:         logger,
		}
		if hook := notify.NewWebhook(viper.GetString("app.share_webhook")); hook != nil {
			appCfg.Sharer = webhookSharer{hook}
		}
		var versions *pwa.VersionCheck
		if u := viper.GetString("app.version_url"); u != "" {
			versions = pwa.NewVersionCheck(u, func() { app.SignalNeedRefresh() })
			appCfg.Updater = versions.Activate
		}
		app = pwa.New(appCfg)
		if versions != nil {
			app.Registered(ctx, versions)
		}
		defer app.Close()

		var authenticator auth.Authenticator
		if tokens := viper.GetStringSlice("server.token"); len(tokens) > 0 {
			logger.Info("Using authentication", "tokens", len(tokens))
			authenticator = auth.Static(tokens...)
		} else {
			logger.Info("Not using authentication")
			authenticator = auth.AlwaysAllow()
		}
		httpServer := &http.Server{
			Addr: fmt.Sprintf(":%d", viper.GetInt("server.port")),
			Handler: server.New(server.Config{
				Dashboard:     mon,
				App:           app,
				Authenticator: authenticator,
				Messages:      mcfg.Messages,
				Logger:        logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		if webhook := viper.GetString("notify.webhook"); webhook != "" {
			notifier := notify.NewAlertNotifier(notify.NewWebhook(webhook), viper.GetBool("notify.resolved"), logger)
			unsubscribe := mon.Subscribe(notifier.Observe)
			defer unsubscribe()
			g.Go(func() error { return notifier.Run(ctx) })
			logger.Info("Sending alert notifications")
		}
		g.Go(func() error { return mon.Run(ctx) })
		g.Go(func() error {
			logger.LogAttrs(nil, slog.LevelInfo, "Starting server", slog.Int("port", viper.GetInt("server.port")))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			logger.Info("Shutting down service")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	serverCmd.Flags().Duration("poll.interval", 0, "how often to fetch the latest measurements")
	serverCmd.Flags().Int("server.port", 0, "Server port")
	serverCmd.Flags().StringSlice("server.token", nil, "Allowed API access tokens")
	serverCmd.Flags().String("server.public_url", "", "public URL of the dashboard, shared by default")
	serverCmd.Flags().String("app.version_url", "", "version document of the deployed app, polled for updates")
	serverCmd.Flags().Duration("app.update_interval", pwa.DefaultUpdateInterval, "how often to poll the version document")
	serverCmd.Flags().String("app.share_webhook", "", "Slack-compatible webhook that receives shared links")
	serverCmd.Flags().String("notify.webhook", "", "Slack-compatible webhook for alert notifications")
	serverCmd.Flags().Bool("notify.resolved", false, "also notify when alerts clear")

	cobra.CheckErr(viper.BindPFlags(serverCmd.Flags()))

	viper.SetDefault("server.port", 8080)

	rootCmd.AddCommand(serverCmd)
}

type webhookSharer struct {
	hook *notify.Webhook
}

func (s webhookSharer) Share(ctx context.Context, data pwa.ShareData) error {
	return s.hook.Send(ctx, data.Title, strings.TrimSpace(data.Text+"\n"+data.URL))
}
