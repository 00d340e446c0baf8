// Package notify delivers alerts and reports to the host through one or
// more channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/metrics"
)

// ErrNotification wraps delivery failures.
var ErrNotification = errors.New("notification failed")

// Notifier delivers a titled message through a single channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, title, body string) error
}

// Multi sends through every channel in turn. A failing channel does not
// stop the others.
type Multi struct {
	notifiers []Notifier
	log       *slog.Logger
}

// NewMulti creates a fan-out over notifiers.
func NewMulti(log *slog.Logger, notifiers ...Notifier) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{notifiers: notifiers, log: log.With("component", "notify")}
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of channels.
func (m *Multi) Len() int {
	if m == nil {
		return 0
	}
	return len(m.notifiers)
}

// Enabled reports whether n can deliver anything: it is not nil and, for a
// fan-out, has at least one channel.
func Enabled(n Notifier) bool {
	if n == nil {
		return false
	}
	if c, ok := n.(interface{ Len() int }); ok {
		return c.Len() > 0
	}
	return true
}

// Send implements Notifier. The returned error joins every channel failure.
func (m *Multi) Send(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.Send(ctx, title, body)
		metrics.AlertsSent.WithLabelValues(n.Name(), metrics.Result(err)).Inc()
		if err != nil {
			m.log.WarnContext(ctx, "Notification channel failed", "channel", n.Name(), "title", title, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		m.log.DebugContext(ctx, "Notification sent", "channel", n.Name(), "title", title)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrNotification, errors.Join(errs...))
	}
	return nil
}

// FromConfig builds a Multi over every channel whose credentials are set.
// An empty Multi is valid and sends nothing.
func FromConfig(cfg config.NotifyConfig, log *slog.Logger) (*Multi, error) {
	if log == nil {
		log = slog.Default()
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var notifiers []Notifier
	if cfg.Pushover.Token != "" && cfg.Pushover.User != "" {
		notifiers = append(notifiers, NewPushover(cfg.Pushover.Token, cfg.Pushover.User, httpClient))
	}
	if cfg.Slack.WebhookURL != "" {
		notifiers = append(notifiers, NewSlack(cfg.Slack.WebhookURL, httpClient))
	}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, httpClient, log)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, tg)
	}
	if cfg.Email.SMTPHost != "" && cfg.Email.From != "" && cfg.Email.To != "" {
		notifiers = append(notifiers, NewEmail(cfg.Email))
	}

	names := make([]string, len(notifiers))
	for i, n := range notifiers {
		names[i] = n.Name()
	}
	if len(notifiers) == 0 {
		log.Warn("No notification channels configured; alerts will only be logged")
	} else {
		log.Info("Notification channels configured", "channels", names)
	}
	return NewMulti(log, notifiers...), nil
}
