package alert

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Slack posts faults to a Slack incoming webhook.
type Slack struct {
	url string
}

// NewSlack returns a Slack notifier for the webhook URL.
func NewSlack(url string) *Slack {
	return &Slack{url: url}
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, f Fault) error {
	msg := &slack.WebhookMessage{Text: Format(f)}
	if err := slack.PostWebhookContext(ctx, s.url, msg); err != nil {
		return fmt.Errorf("alert: slack: %w", err)
	}
	return nil
}
