package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
)

// PushoverURL is the Pushover messages endpoint.
const PushoverURL = "https://api.pushover.net/1/messages.json"

// Pushover sends alerts through the Pushover API.
type Pushover struct {
	token    string
	user     string
	endpoint string
	priority int
	client   *http.Client
}

// NewPushover creates a Pushover channel. Messages are sent at normal
// priority.
func NewPushover(token, user string, client *http.Client) *Pushover {
	if client == nil {
		client = http.DefaultClient
	}
	return &Pushover{token: token, user: user, endpoint: PushoverURL, client: client}
}

// Name implements Notifier.
func (p *Pushover) Name() string { return "pushover" }

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

// Send implements Notifier.
func (p *Pushover) Send(ctx context.Context, title, body string) error {
	form := url.Values{
		"token":    {p.token},
		"user":     {p.user},
		"title":    {title},
		"message":  {body},
		"priority": {fmt.Sprint(p.priority)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build pushover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushover request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read pushover response: %w", err)
	}

	var pr pushoverResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return fmt.Errorf("pushover returned HTTP %d with unreadable body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || pr.Status != 1 {
		return fmt.Errorf("pushover rejected message (HTTP %d): %s", resp.StatusCode, strings.Join(pr.Errors, "; "))
	}
	return nil
}
