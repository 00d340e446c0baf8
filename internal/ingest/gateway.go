// Package ingest turns guest messages from the webhook, the poller and the
// backfill into stored messages. Every path goes through Gateway.Ingest, and
// deduplication rests on the store's atomic insert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/metrics"
)

var (
	// ErrInvalidMessage is returned for inputs without an external id.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrTimestampParse is returned by ParseTimestamp for unrecognized input.
	ErrTimestampParse = errors.New("unparseable timestamp")
)

// Sources of ingested messages.
const (
	SourceWebhook  = "webhook"
	SourcePoll     = "poll"
	SourceBackfill = "backfill"
)

// Input is a message as received from any source, before normalization.
type Input struct {
	Source         string
	ExternalID     string
	Text           string
	RawTimestamp   string
	ConversationID string
	ReservationID  string
	GuestName      string
}

// Result reports whether Ingest stored a new row. Message is the stored row
// either way.
type Result struct {
	Created bool
	Message database.Message
}

// Gateway is the single idempotent entry point into the message store.
type Gateway struct {
	store database.Store
	log   *slog.Logger
	now   func() time.Time
}

// NewGateway creates a gateway over store.
func NewGateway(store database.Store, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		store: store,
		log:   log.With("component", "ingest_gateway"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores in unless a message with the same external id exists.
// An unparseable timestamp is logged and replaced with the ingestion time;
// it never prevents storage.
func (g *Gateway) Ingest(ctx context.Context, in Input) (Result, error) {
	source := in.Source
	if source == "" {
		source = SourceWebhook
	}

	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		metrics.MessagesIngested.WithLabelValues(source, metrics.OutcomeInvalid).Inc()
		return Result{}, fmt.Errorf("%w: missing external id", ErrInvalidMessage)
	}

	ts := g.now()
	if raw := strings.TrimSpace(in.RawTimestamp); raw != "" {
		parsed, err := ParseTimestamp(raw)
		if err != nil {
			g.log.ErrorContext(ctx, "Failed to parse timestamp, using ingestion time",
				"external_id", externalID, "raw_timestamp", raw, "error", err)
		} else {
			ts = parsed
		}
	}

	if in.Text == "" {
		g.log.WarnContext(ctx, "Message has empty body", "external_id", externalID)
	}

	res, err := g.store.InsertIfAbsent(ctx, database.NewMessage{
		ExternalID:     externalID,
		ConversationID: in.ConversationID,
		ReservationID:  in.ReservationID,
		GuestName:      in.GuestName,
		Text:           in.Text,
		Timestamp:      ts,
	})
	if err != nil {
		metrics.MessagesIngested.WithLabelValues(source, metrics.OutcomeError).Inc()
		return Result{}, fmt.Errorf("failed to store message %s: %w", externalID, err)
	}

	if res.Inserted {
		metrics.MessagesIngested.WithLabelValues(source, metrics.OutcomeCreated).Inc()
		g.log.InfoContext(ctx, "Saved new message", "external_id", externalID, "source", source, "id", res.Message.ID)
	} else {
		metrics.MessagesIngested.WithLabelValues(source, metrics.OutcomeDuplicate).Inc()
		g.log.DebugContext(ctx, "Duplicate message skipped", "external_id", externalID, "source", source)
	}

	return Result{Created: res.Inserted, Message: res.Message}, nil
}

// timestampLayouts are tried in order. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses the ISO-8601 variants emitted by the Open API and
// returns the instant in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampParse, raw)
}
