// Package alert announces cell faults to chat webhooks.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/cellwatch/internal/config"
)

// Fault kinds.
const (
	KindQueueSync = "queue-sync"
	KindTick      = "tick"
)

// Fault is one raised fault.
type Fault struct {
	Cell    string
	Kind    string
	Message string
	Time    time.Time
}

// Notifier delivers a fault somewhere a human will see it.
type Notifier interface {
	Notify(ctx context.Context, f Fault) error
}

// Multi notifies every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, f Fault) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FromConfig builds the notifiers enabled in cfg. With nothing configured
// it returns an empty Multi, which drops every fault.
func FromConfig(cfg config.AlertConfig) Multi {
	var m Multi
	if cfg.SlackWebhookURL != "" {
		m = append(m, NewSlack(cfg.SlackWebhookURL))
	}
	if cfg.DiscordWebhookID != "" && cfg.DiscordWebhookToken != "" {
		m = append(m, NewDiscord(cfg.DiscordWebhookID, cfg.DiscordWebhookToken))
	}
	return m
}

// Format renders a fault as a single chat line.
func Format(f Fault) string {
	return fmt.Sprintf("[%s] %s fault at %s: %s", f.Cell, f.Kind, f.Time.UTC().Format(time.RFC3339), f.Message)
}
