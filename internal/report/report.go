// Package report builds the daily arrivals digest for the host.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/guesty"
)

// ErrUpstreamSource marks failures of the reservation source.
var ErrUpstreamSource = guesty.ErrUpstream

const (
	arrivalsLimit   = 100
	unknownGuest    = "Unknown Guest"
	unknownProperty = "Unknown Property"
	unknownCount    = "?"
	dateLayout      = "January 02, 2006"
)

// requestCategories are the categories listed under each arrival.
var requestCategories = map[database.Category]bool{
	database.CategoryEarlyCheckin:   true,
	database.CategoryLateCheckout:   true,
	database.CategorySpecialRequest: true,
}

// ReservationSource lists reservations checking in within [from, to).
type ReservationSource interface {
	ListArrivals(ctx context.Context, from, to time.Time, limit int) ([]guesty.Reservation, error)
}

// MessageFinder returns the classified messages of a reservation.
type MessageFinder interface {
	FindClassifiedByReservation(ctx context.Context, reservationID string) ([]database.Message, error)
}

// Generator renders daily summaries.
type Generator struct {
	source   ReservationSource
	messages MessageFinder
	log      *slog.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(source ReservationSource, messages MessageFinder, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{source: source, messages: messages, log: log.With("component", "report")}
}

// GenerateDailySummary renders the arrivals of date (a UTC calendar day)
// with the early check-in, late checkout and special requests guests made.
func (g *Generator) GenerateDailySummary(ctx context.Context, date time.Time) (string, error) {
	from := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	g.log.InfoContext(ctx, "Generating daily summary", "date", from.Format(time.DateOnly))

	arrivals, err := g.source.ListArrivals(ctx, from, to, arrivalsLimit)
	if err != nil {
		return "", fmt.Errorf("%w: list arrivals for %s: %w", ErrUpstreamSource, from.Format(time.DateOnly), err)
	}
	g.log.InfoContext(ctx, "Fetched arrivals", "date", from.Format(time.DateOnly), "count", len(arrivals))

	header := fmt.Sprintf("📅 **Daily Summary (%s)**", from.Format(dateLayout))
	if len(arrivals) == 0 {
		return header + "\n\nNo arrivals scheduled for today.", nil
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, r := range arrivals {
		entry, err := g.arrival(ctx, r)
		if err != nil {
			return "", err
		}
		b.WriteString("\n")
		b.WriteString(entry)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (g *Generator) arrival(ctx context.Context, r guesty.Reservation) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "- **%s** (Arrives today @ %s)\n",
		r.Guest.DisplayName(unknownGuest),
		r.Listing.DisplayName(unknownProperty),
	)

	var requests []database.Message
	if r.ID != "" {
		msgs, err := g.messages.FindClassifiedByReservation(ctx, r.ID)
		if err != nil {
			return "", fmt.Errorf("load messages for reservation %s: %w", r.ID, err)
		}
		for _, m := range msgs {
			if requestCategories[database.Category(m.Category.String)] {
				requests = append(requests, m)
			}
		}
	}

	if len(requests) == 0 {
		b.WriteString("  - No special requests noted\n")
	}
	for _, m := range requests {
		fmt.Fprintf(&b, "  - %s: %s\n", database.Category(m.Category.String).Label(), m.Summary.String)
	}

	fmt.Fprintf(&b, "  - %s guests, %s nights\n", count(r.GuestsCount), count(r.NightsCount))
	return b.String(), nil
}

func count(n *int) string {
	if n == nil {
		return unknownCount
	}
	return strconv.Itoa(*n)
}
