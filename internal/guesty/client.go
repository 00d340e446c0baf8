// Package guesty implements a client for the Guesty Open API: OAuth2
// client-credentials authentication, message listing, arrivals lookup and
// a connectivity check.
package guesty

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/resilience"
)

// ErrUpstream wraps every failure talking to the Open API.
var ErrUpstream = errors.New("guesty upstream error")

// tokenEarlyExpiry refreshes the access token this long before it expires.
const tokenEarlyExpiry = 5 * time.Minute

const (
	messagesEndpoint     = "communication/conversations/messages"
	reservationsEndpoint = "reservations"
	listingsEndpoint     = "listings"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client talks to the Guesty Open API.
type Client struct {
	http     *http.Client
	baseURL  string
	pageSize int
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig
	log      *slog.Logger
}

// NewClient creates an authenticated client. Access tokens are fetched with
// the client-credentials grant, cached, and refreshed five minutes before
// they expire.
func NewClient(ctx context.Context, cfg config.GuestyConfig, log *slog.Logger) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("guesty client id and secret are required")
	}
	if log == nil {
		log = slog.Default()
	}
	logger := log.With("component", "guesty_client")

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       []string{"open-api"},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
	ts := oauth2.ReuseTokenSourceWithExpiry(nil, cc.TokenSource(tokenCtx), tokenEarlyExpiry)

	httpClient := oauth2.NewClient(tokenCtx, ts)
	httpClient.Timeout = cfg.Timeout

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = config.DefaultGuestyPageSize
	}

	retry := resilience.DefaultRetryConfig()
	retry.Name = "guesty"
	retry.Logger = logger
	retry.Retryable = isTemporary

	logger.Info("Guesty client initialized", "base_url", cfg.BaseURL)
	return &Client{
		http:     httpClient,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: pageSize,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "guesty",
			MaxFailures: 5,
			OpenTimeout: time.Minute,
			Logger:      logger,
			IsFailure:   isTemporary,
		}),
		retry: retry,
		log:   logger,
	}, nil
}

// PageSize returns the configured page size for listing calls.
func (c *Client) PageSize() int {
	return c.pageSize
}

// ListMessages fetches one page of conversation messages.
func (c *Client) ListMessages(ctx context.Context, q MessageQuery) (MessagePage, error) {
	params := url.Values{}
	if !q.CreatedFrom.IsZero() {
		params.Set("createdFrom", q.CreatedFrom.UTC().Format(time.RFC3339))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = c.pageSize
	}
	params.Set("limit", strconv.Itoa(limit))
	if q.Skip > 0 {
		params.Set("skip", strconv.Itoa(q.Skip))
	}
	sort := q.Sort
	if sort == "" {
		sort = "createdAt"
	}
	params.Set("sort", sort)

	var page MessagePage
	if err := c.get(ctx, messagesEndpoint, params, &page); err != nil {
		return MessagePage{}, err
	}
	c.log.DebugContext(ctx, "Fetched messages page", "skip", q.Skip, "returned", len(page.Results), "count", page.Count)
	return page, nil
}

// ListArrivals returns reservations whose check-in falls in [from, to).
func (c *Client) ListArrivals(ctx context.Context, from, to time.Time, limit int) ([]Reservation, error) {
	filters, err := json.Marshal([]map[string]string{{
		"field":    "checkIn",
		"operator": "$between",
		"from":     from.UTC().Format(time.RFC3339),
		"to":       to.UTC().Format(time.RFC3339),
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode reservation filters: %w", err)
	}

	if limit <= 0 {
		limit = c.pageSize
	}
	params := url.Values{}
	params.Set("filters", string(filters))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "checkIn")
	params.Set("fields", "_id checkIn checkOut nightsCount guestsCount guest listing")

	var page reservationPage
	if err := c.get(ctx, reservationsEndpoint, params, &page); err != nil {
		return nil, err
	}
	c.log.InfoContext(ctx, "Fetched arrivals", "from", from, "to", to, "count", len(page.Results))
	return page.Results, nil
}

// ListListings fetches one page of listings.
func (c *Client) ListListings(ctx context.Context, limit, skip int) (ListingPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if skip > 0 {
		params.Set("skip", strconv.Itoa(skip))
	}

	var page ListingPage
	if err := c.get(ctx, listingsEndpoint, params, &page); err != nil {
		return ListingPage{}, err
	}
	return page, nil
}

// TestConnection verifies credentials and connectivity by fetching up to ten
// listings. It returns the number of listings the account holds.
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	c.log.InfoContext(ctx, "Testing Guesty API connection by fetching listings")
	page, err := c.ListListings(ctx, 10, 0)
	if err != nil {
		return 0, err
	}
	if page.Count == 0 {
		return len(page.Results), nil
	}
	return page.Count, nil
}

// get performs an authenticated GET with retry and circuit breaking and
// decodes the JSON response into out.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	op := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &StatusError{
				Method:     http.MethodGet,
				Endpoint:   endpoint,
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", endpoint, err)
		}
		return nil
	}

	err := resilience.WithRetry(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, op)
	}, c.retry)
	if err != nil {
		c.log.ErrorContext(ctx, "API request failed", "endpoint", endpoint, "error", err)
		return fmt.Errorf("%w: GET %s: %w", ErrUpstream, endpoint, err)
	}
	return nil
}

// isTemporary reports whether err is worth retrying and should count against
// the circuit breaker: transport failures, 429 and 5xx responses, and token
// endpoint 5xx.
func isTemporary(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}

	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		return tokenErr.Response != nil && tokenErr.Response.StatusCode >= http.StatusInternalServerError
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
