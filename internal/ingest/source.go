package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/inboxintel/internal/guesty"
)

// ErrUpstreamSource marks failures of the external message source. Runs that
// hit it abort; messages ingested before the failure stay stored.
var ErrUpstreamSource = guesty.ErrUpstream

// MessageSource lists messages created at or after a lower bound, one page
// at a time. guesty.Client implements it.
type MessageSource interface {
	ListMessages(ctx context.Context, q guesty.MessageQuery) (guesty.MessagePage, error)
}

// Stats counts the outcome of a poll or backfill run. Items without an id
// are counted only in InvalidSkipped, so NewSaved + DuplicatesSkipped ==
// TotalFetched.
type Stats struct {
	Pages             int
	TotalFetched      int
	NewSaved          int
	DuplicatesSkipped int
	InvalidSkipped    int
}

const defaultPageSize = 100

// pager walks every page of a source query and ingests each message.
type pager struct {
	gateway *Gateway
	source  MessageSource
	limit   int
	log     *slog.Logger
}

func (p *pager) run(ctx context.Context, sourceName string, from time.Time) (Stats, error) {
	var stats Stats
	skip := 0
	limit := p.limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		p.log.DebugContext(ctx, "Fetching batch", "skip", skip, "limit", limit)
		page, err := p.source.ListMessages(ctx, guesty.MessageQuery{
			CreatedFrom: from,
			Limit:       limit,
			Skip:        skip,
			Sort:        "createdAt",
		})
		if err != nil {
			if !errors.Is(err, ErrUpstreamSource) {
				err = fmt.Errorf("%w: %w", ErrUpstreamSource, err)
			}
			return stats, err
		}
		stats.Pages++

		p.log.DebugContext(ctx, "Fetched batch", "returned", len(page.Results), "total_available", page.Count)
		if len(page.Results) == 0 {
			return stats, nil
		}

		for _, msg := range page.Results {
			res, err := p.gateway.Ingest(ctx, Input{
				Source:         sourceName,
				ExternalID:     msg.ExternalID(),
				Text:           msg.Body,
				RawTimestamp:   msg.CreatedAt,
				ConversationID: msg.ConversationID,
				ReservationID:  msg.ReservationID,
				GuestName:      msg.From.Name,
			})
			switch {
			case errors.Is(err, ErrInvalidMessage):
				p.log.WarnContext(ctx, "Message missing id, skipping")
				stats.InvalidSkipped++
				continue
			case err != nil:
				return stats, err
			}

			stats.TotalFetched++
			if res.Created {
				stats.NewSaved++
			} else {
				stats.DuplicatesSkipped++
			}
		}

		// the API may cap a page below limit, so advance by what was returned
		skip += len(page.Results)
		if skip >= page.Count {
			return stats, nil
		}
	}
}

// Poller ingests messages created within a trailing lookback window. The
// window is longer than the polling interval, so consecutive runs overlap
// and a message missed by one run is picked up by the next.
type Poller struct {
	pager    pager
	lookback time.Duration
	now      func() time.Time
}

// NewPoller creates a poller querying source for the last lookback.
func NewPoller(gateway *Gateway, source MessageSource, lookback time.Duration, pageSize int, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		pager:    pager{gateway: gateway, source: source, limit: pageSize, log: log.With("component", "poller")},
		lookback: lookback,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Poll runs one polling pass over [now - lookback, now).
func (p *Poller) Poll(ctx context.Context) (Stats, error) {
	from := p.now().Add(-p.lookback)
	p.pager.log.InfoContext(ctx, "Polling for messages", "since", from.Format(time.RFC3339))

	stats, err := p.pager.run(ctx, SourcePoll, from)
	if err != nil {
		p.pager.log.ErrorContext(ctx, "Error during message polling", "error", err, "saved_before_error", stats.NewSaved)
		return stats, err
	}

	p.pager.log.InfoContext(ctx, "Polling complete", "fetched", stats.TotalFetched, "new", stats.NewSaved)
	return stats, nil
}

// Backfiller ingests the full message history of a day-count window.
type Backfiller struct {
	pager pager
	now   func() time.Time
}

// NewBackfiller creates a backfiller reading from source.
func NewBackfiller(gateway *Gateway, source MessageSource, pageSize int, log *slog.Logger) *Backfiller {
	if log == nil {
		log = slog.Default()
	}
	return &Backfiller{
		pager: pager{gateway: gateway, source: source, limit: pageSize, log: log.With("component", "backfill")},
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Run ingests every message created in the last days days. days must be
// positive.
func (b *Backfiller) Run(ctx context.Context, days int) (Stats, error) {
	if days <= 0 {
		return Stats{}, fmt.Errorf("days must be a positive integer, got %d", days)
	}

	from := b.now().AddDate(0, 0, -days)
	b.pager.log.InfoContext(ctx, "Starting backfill", "days", days, "since", from.Format(time.RFC3339))

	stats, err := b.pager.run(ctx, SourceBackfill, from)
	if err != nil {
		b.pager.log.ErrorContext(ctx, "Backfill failed", "error", err, "fetched_before_error", stats.TotalFetched)
		return stats, err
	}

	b.pager.log.InfoContext(ctx, "Backfill complete",
		"total_fetched", stats.TotalFetched,
		"new_saved", stats.NewSaved,
		"duplicates_skipped", stats.DuplicatesSkipped,
		"invalid_skipped", stats.InvalidSkipped)
	return stats, nil
}
