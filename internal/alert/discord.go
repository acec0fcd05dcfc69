package alert

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// webhookSession abstracts the discordgo.Session method we use, enabling
// test mocks.
type webhookSession interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts faults to a Discord channel webhook.
type Discord struct {
	id    string
	token string
	sess  webhookSession
}

// NewDiscord returns a Discord notifier for the webhook id and token.
// Webhook calls need no bot token.
func NewDiscord(id, token string) *Discord {
	dg, _ := discordgo.New("")
	return &Discord{id: id, token: token, sess: dg}
}

// Notify implements Notifier.
func (d *Discord) Notify(ctx context.Context, f Fault) error {
	_, err := d.sess.WebhookExecute(d.id, d.token, false, &discordgo.WebhookParams{
		Content: Format(f),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("alert: discord: %w", err)
	}
	return nil
}
