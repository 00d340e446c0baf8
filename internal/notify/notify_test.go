package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/goccy/go-json"

	"github.com/edgard/inboxintel/internal/config"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeNotifier struct {
	name string
	err  error
	sent []string
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(_ context.Context, title, body string) error {
	f.sent = append(f.sent, title+"|"+body)
	return f.err
}

func TestMultiSendsToEveryChannel(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	a := &fakeNotifier{name: "a", err: boom}
	b := &fakeNotifier{name: "b"}
	m := NewMulti(discard, a, b)

	err := m.Send(context.Background(), "T", "B")
	if !errors.Is(err, ErrNotification) || !errors.Is(err, boom) {
		t.Fatalf("Send() error = %v, want ErrNotification wrapping boom", err)
	}
	if len(a.sent) != 1 || len(b.sent) != 1 {
		t.Errorf("sent a=%d b=%d, want one each", len(a.sent), len(b.sent))
	}
	if b.sent[0] != "T|B" {
		t.Errorf("b received %q", b.sent[0])
	}

	if err := NewMulti(discard).Send(context.Background(), "T", "B"); err != nil {
		t.Errorf("empty Multi Send() error: %v", err)
	}
}

func TestEnabled(t *testing.T) {
	t.Parallel()

	var nilMulti *Multi
	tests := []struct {
		name string
		n    Notifier
		want bool
	}{
		{name: "nil", n: nil, want: false},
		{name: "nil multi", n: nilMulti, want: false},
		{name: "empty multi", n: NewMulti(discard), want: false},
		{name: "multi with a channel", n: NewMulti(discard, &fakeNotifier{name: "a"}), want: true},
		{name: "single channel", n: &fakeNotifier{name: "a"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Enabled(tt.n); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPushover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{name: "accepted", status: http.StatusOK, body: `{"status":1,"request":"abc"}`},
		{name: "rejected", status: http.StatusBadRequest, body: `{"status":0,"errors":["user identifier is invalid"]}`, wantErr: true},
		{name: "status zero", status: http.StatusOK, body: `{"status":0}`, wantErr: true},
		{name: "garbage", status: http.StatusBadGateway, body: `<html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var form url.Values
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Errorf("ParseForm: %v", err)
				}
				form = r.PostForm
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			p := NewPushover("app-token", "user-key", srv.Client())
			p.endpoint = srv.URL

			err := p.Send(context.Background(), "🔔 Late Checkout", "Guest wants 2pm")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Send() error = %v, wantErr %v", err, tt.wantErr)
			}
			if form.Get("token") != "app-token" || form.Get("user") != "user-key" || form.Get("priority") != "0" {
				t.Errorf("form = %v", form)
			}
			if form.Get("title") != "🔔 Late Checkout" || form.Get("message") != "Guest wants 2pm" {
				t.Errorf("form title/message = %q/%q", form.Get("title"), form.Get("message"))
			}
		})
	}
}

func TestSlack(t *testing.T) {
	t.Parallel()

	var got struct {
		Text string `json:"text"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	s := NewSlack(srv.URL, srv.Client())
	if err := s.Send(context.Background(), "Daily Summary", "No arrivals"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if got.Text != "*Daily Summary*\nNo arrivals" {
		t.Errorf("text = %q", got.Text)
	}
}

func TestTelegram(t *testing.T) {
	t.Parallel()

	var got struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := parseTelegramBody(r, &got.ChatID, &got.Text); err != nil {
			t.Errorf("parse body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	tg, err := NewTelegram("123:TEST", 42, srv.Client(), discard, bot.WithServerURL(srv.URL))
	if err != nil {
		t.Fatalf("NewTelegram() error: %v", err)
	}
	if err := tg.Send(context.Background(), "🔔 Maintenance Issue", "No hot water"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if !strings.HasSuffix(path, "/sendMessage") {
		t.Errorf("path = %q, want .../sendMessage", path)
	}
	if got.ChatID != 42 || got.Text != "🔔 Maintenance Issue\n\nNo hot water" {
		t.Errorf("sent chat=%d text=%q", got.ChatID, got.Text)
	}

	if _, err := NewTelegram("", 42, nil, discard); err == nil {
		t.Error("NewTelegram() accepted an empty token")
	}
}

// parseTelegramBody reads chat_id and text from the multipart form the bot
// library posts.
func parseTelegramBody(r *http.Request, chatID *int64, text *string) error {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		return err
	}
	if v := r.FormValue("chat_id"); v != "" {
		var id int64
		if err := json.Unmarshal([]byte(v), &id); err != nil {
			return err
		}
		*chatID = id
	}
	*text = r.FormValue("text")
	return nil
}

func TestEmail(t *testing.T) {
	t.Parallel()

	e := NewEmail(config.EmailConfig{
		From:     "alerts@example.com",
		To:       "host@example.com, cohost@example.com",
		SMTPHost: "smtp.example.com",
		SMTPPort: 587,
		Username: "alerts",
		Password: "secret",
	})
	e.now = func() time.Time { return time.Date(2025, 5, 10, 7, 0, 0, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg string
	e.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		if a == nil {
			t.Error("expected PLAIN auth")
		}
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	if err := e.Send(context.Background(), "Daily Summary", "line1\nline2"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if gotAddr != "smtp.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if len(gotTo) != 2 || gotTo[1] != "cohost@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	for _, want := range []string{"Subject: Daily Summary\r\n", "To: host@example.com, cohost@example.com\r\n", "line1\r\nline2"} {
		if !strings.Contains(gotMsg, want) {
			t.Errorf("message missing %q:\n%s", want, gotMsg)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Send(ctx, "x", "y"); !errors.Is(err, context.Canceled) {
		t.Errorf("Send(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	m, err := FromConfig(config.NotifyConfig{Timeout: time.Second}, discard)
	if err != nil {
		t.Fatalf("FromConfig(empty) error: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0", m.Len())
	}

	m, err = FromConfig(config.NotifyConfig{
		Timeout:  time.Second,
		Pushover: config.PushoverConfig{Token: "t", User: "u"},
		Slack:    config.SlackConfig{WebhookURL: "https://hooks.slack.com/services/x"},
		Email:    config.EmailConfig{From: "a@example.com", To: "b@example.com", SMTPHost: "localhost", SMTPPort: 25},
	}, discard)
	if err != nil {
		t.Fatalf("FromConfig() error: %v", err)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
}
