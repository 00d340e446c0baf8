package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// Slack posts to a Slack incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack creates a Slack channel.
func NewSlack(webhookURL string, client *http.Client) *Slack {
	if client == nil {
		client = http.DefaultClient
	}
	return &Slack{webhookURL: webhookURL, client: client}
}

// Name implements Notifier.
func (s *Slack) Name() string { return "slack" }

// Send implements Notifier.
func (s *Slack) Send(ctx context.Context, title, body string) error {
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("*%s*\n%s", title, body),
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.client, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
