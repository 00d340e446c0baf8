package notify

import (
	"context"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/inboxintel/internal/config"
)

// Email sends plain-text mail through an SMTP relay.
type Email struct {
	cfg  config.EmailConfig
	to   []string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now  func() time.Time
}

// NewEmail creates an email channel.
func NewEmail(cfg config.EmailConfig) *Email {
	var to []string
	for _, addr := range strings.Split(cfg.To, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return &Email{cfg: cfg, to: to, send: smtp.SendMail, now: time.Now}
}

// Name implements Notifier.
func (e *Email) Name() string { return "email" }

// Send implements Notifier. net/smtp has no context support, so ctx is only
// checked before dialing.
func (e *Email) Send(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(e.to) == 0 {
		return fmt.Errorf("email: no recipients")
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPHost)
	}
	addr := net.JoinHostPort(e.cfg.SMTPHost, strconv.Itoa(e.cfg.SMTPPort))

	if err := e.send(addr, auth, e.cfg.From, e.to, e.message(title, body)); err != nil {
		return fmt.Errorf("email via %s: %w", addr, err)
	}
	return nil
}

func (e *Email) message(title, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + e.cfg.From + "\r\n")
	b.WriteString("To: " + strings.Join(e.to, ", ") + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", title) + "\r\n")
	b.WriteString("Date: " + e.now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
