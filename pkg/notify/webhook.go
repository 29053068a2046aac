package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrDisabled = errors.New("webhook disabled")

// Webhook posts Slack-compatible {"text": ...} messages
type Webhook struct {
	URL    string
	client *resty.Client
}

// NewWebhook returns nil for an empty URL so that it can be dropped into a
// Multi unconditionally.
func NewWebhook(url string) *Webhook {
	if url == "" {
		return nil
	}
	return &Webhook{
		URL:    url,
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

type webhookPayload struct {
	Text string `json:"text"`
}

func (w *Webhook) Send(ctx context.Context, title, text string) error {
	if w == nil || w.URL == "" {
		return ErrDisabled
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(webhookPayload{Text: "*" + title + "*\n" + text}).
		Post(w.URL)
	if err != nil {
		return err
	}
	if resp.StatusCode()/100 != 2 {
		return fmt.Errorf("webhook: %s", resp.Status())
	}
	return nil
}
