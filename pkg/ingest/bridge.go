// Package ingest bridges sensor messages from an MQTT broker into a
// measurement store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/a-schulz/esp32-temperature-sensor/pkg/source"
)

const (
	DefaultBroker      = "tcp://mosquitto:1883"
	DefaultTopicPrefix = "heating"
	DefaultKeepAlive   = 60 * time.Second
	DefaultRetryDelay  = 10 * time.Second
)

type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	KeepAlive   time.Duration
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

type Bridge struct {
	cfg    Config
	writer source.Writer
	logger *slog.Logger
}

func New(w source.Writer, cfg Config) *Bridge {
	if cfg.Broker == "" {
		cfg.Broker = DefaultBroker
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = DefaultKeepAlive
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "esp32-dashboard-" + uuid.NewString()[:8]
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Bridge{cfg: cfg, writer: w, logger: logger}
}

// Topics returns the subscription filters
func (b *Bridge) Topics() []string {
	return []string{
		b.cfg.TopicPrefix + "/+/temperature",
		b.cfg.TopicPrefix + "/+/status",
	}
}

// Handle parses one message and stores it. Messages that carry no usable
// reading are dropped with a log entry and a nil error.
func (b *Bridge) Handle(ctx context.Context, topic string, payload []byte) error {
	r, err := Parse(b.cfg.TopicPrefix, topic, payload)
	switch {
	case errors.Is(err, ErrSensorError), errors.Is(err, ErrNoValue):
		b.logger.LogAttrs(ctx, slog.LevelDebug, "Skipping message without reading", slog.String("topic", topic), slog.Any("reason", err))
		return nil
	case err != nil:
		b.logger.LogAttrs(ctx, slog.LevelWarn, "Dropping malformed message", slog.String("topic", topic), slog.Any("error", err))
		return nil
	}
	if err := b.writer.Insert(ctx, r.Measurement()); err != nil {
		return fmt.Errorf("store %s reading: %w", r.Location, err)
	}
	attrs := []slog.Attr{
		slog.String("location", r.Location),
		slog.Float64("temperature", r.Temperature),
		slog.String("device_id", r.DeviceID()),
	}
	if st := r.Status; st != nil {
		if st.RSSI != nil {
			attrs = append(attrs, slog.Int("rssi", *st.RSSI))
		}
		if st.Uptime != nil {
			attrs = append(attrs, slog.Int64("uptime", *st.Uptime))
		}
		if st.FreeHeap != nil {
			attrs = append(attrs, slog.Int64("free_heap", *st.FreeHeap))
		}
	}
	b.logger.LogAttrs(ctx, slog.LevelInfo, "Stored temperature", attrs...)
	return nil
}

func (b *Bridge) onPublish(ctx context.Context) func(paho.PublishReceived) (bool, error) {
	return func(pr paho.PublishReceived) (bool, error) {
		if err := b.Handle(ctx, pr.Packet.Topic, pr.Packet.Payload); err != nil {
			b.logger.LogAttrs(ctx, slog.LevelError, "Failed to store reading", slog.Any("error", err))
		}
		return true, nil
	}
}

// Run connects to the broker and stores incoming readings until ctx is done.
// Lost connections are re-established and the subscriptions renewed.
func (b *Bridge) Run(ctx context.Context) error {
	u, err := brokerURL(b.cfg.Broker)
	if err != nil {
		return err
	}
	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{u},
		KeepAlive:                     uint16(b.cfg.KeepAlive.Seconds()),
		CleanStartOnInitialConnection: true,
		ConnectRetryDelay:             b.cfg.RetryDelay,
		ConnectUsername:               b.cfg.Username,
		ConnectPassword:               []byte(b.cfg.Password),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			b.logger.LogAttrs(ctx, slog.LevelInfo, "Connected to MQTT broker", slog.String("broker", u.Host), slog.String("client_id", b.cfg.ClientID))
			if _, err := cm.Subscribe(ctx, b.subscription()); err != nil {
				b.logger.LogAttrs(ctx, slog.LevelError, "Failed to subscribe", slog.Any("error", err))
				return
			}
			b.logger.LogAttrs(ctx, slog.LevelInfo, "Subscribed", slog.Any("topics", b.Topics()))
		},
		OnConnectError: func(err error) {
			b.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to connect to MQTT broker", slog.String("broker", u.Host), slog.Any("error", err))
		},
		ClientConfig: paho.ClientConfig{
			ClientID:          b.cfg.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){b.onPublish(ctx)},
			OnClientError: func(err error) {
				b.logger.LogAttrs(ctx, slog.LevelWarn, "Lost connection to MQTT broker", slog.Any("error", err))
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				b.logger.LogAttrs(ctx, slog.LevelWarn, "Broker closed the connection", slog.Int("reason_code", int(d.ReasonCode)))
			},
		},
	}
	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", u.Host, err)
	}
	if err := cm.AwaitConnection(ctx); err == nil {
		b.logger.LogAttrs(ctx, slog.LevelDebug, "Bridge running", slog.Duration("retry_delay", b.cfg.RetryDelay))
	}
	<-cm.Done()
	return nil
}

func (b *Bridge) subscription() *paho.Subscribe {
	sub := &paho.Subscribe{}
	for _, t := range b.Topics() {
		sub.Subscriptions = append(sub.Subscriptions, paho.SubscribeOptions{Topic: t, QoS: 1})
	}
	return sub
}

// brokerURL accepts tcp://host:port, mqtt://host:port, tls://host:port or
// host:port. The port defaults to 1883, or 8883 for TLS.
func brokerURL(broker string) (*url.URL, error) {
	u, err := url.Parse(broker)
	if err != nil || u.Host == "" {
		u = &url.URL{Scheme: "tcp", Host: broker}
	}
	port := "1883"
	switch u.Scheme {
	case "tcp", "mqtt":
	case "tls", "ssl", "mqtts":
		port = "8883"
	default:
		return nil, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("missing broker host in %q", broker)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u, nil
}
