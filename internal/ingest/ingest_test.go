package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/guesty"
	"github.com/edgard/inboxintel/internal/logger"
)

var fixedNow = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestGateway(t *testing.T) (*Gateway, database.Store) {
	t.Helper()

	db, err := database.NewDB(database.Options{URL: ":memory:"})
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	store := database.NewStore(db, logger.Discard())
	g := NewGateway(store, logger.Discard())
	g.now = func() time.Time { return fixedNow }
	return g, store
}

// fakeSource serves messages in pages honoring skip and limit.
type fakeSource struct {
	mu       sync.Mutex
	messages []guesty.Message
	count    int // reported total; len(messages) when zero
	maxPage  int // server-side page cap when > 0
	failAt   int // fail the fetch with this skip when > 0
	queries  []guesty.MessageQuery
}

func (f *fakeSource) ListMessages(_ context.Context, q guesty.MessageQuery) (guesty.MessagePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)

	if f.failAt > 0 && q.Skip == f.failAt {
		return guesty.MessagePage{}, errors.New("connection reset")
	}

	count := f.count
	if count == 0 {
		count = len(f.messages)
	}
	limit := q.Limit
	if f.maxPage > 0 {
		limit = min(limit, f.maxPage)
	}
	start := min(q.Skip, len(f.messages))
	end := min(start+limit, len(f.messages))
	return guesty.MessagePage{Results: f.messages[start:end], Count: count}, nil
}

func makeMessages(n int) []guesty.Message {
	msgs := make([]guesty.Message, n)
	for i := range msgs {
		msgs[i] = guesty.Message{
			ID:            fmt.Sprintf("m%03d", i),
			Body:          fmt.Sprintf("message %d", i),
			CreatedAt:     fixedNow.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			ReservationID: "res_1",
		}
	}
	return msgs
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g, store := newTestGateway(t)

	in := Input{ExternalID: "msg_1", Text: "Can we check in early?", RawTimestamp: "2025-05-10T14:30:00Z"}

	first, err := g.Ingest(ctx, in)
	if err != nil {
		t.Fatalf("first Ingest() error = %v", err)
	}
	second, err := g.Ingest(ctx, in)
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}

	if !first.Created || second.Created {
		t.Errorf("Created = %v then %v, want true then false", first.Created, second.Created)
	}
	if first.Message.State != database.StateUnclassified {
		t.Errorf("State = %q, want UNCLASSIFIED", first.Message.State)
	}
	want := time.Date(2025, 5, 10, 14, 30, 0, 0, time.UTC)
	if !first.Message.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", first.Message.Timestamp, want)
	}

	counts, err := store.CountByState(ctx)
	if err != nil {
		t.Fatalf("CountByState() error = %v", err)
	}
	if counts[database.StateUnclassified] != 1 {
		t.Errorf("stored rows = %d, want 1", counts[database.StateUnclassified])
	}
}

func TestIngestRejectsMissingID(t *testing.T) {
	t.Parallel()
	g, _ := newTestGateway(t)

	for _, id := range []string{"", "   "} {
		_, err := g.Ingest(context.Background(), Input{ExternalID: id, Text: "hello"})
		if !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("Ingest(%q) error = %v, want ErrInvalidMessage", id, err)
		}
	}
}

func TestIngestTimestampFallback(t *testing.T) {
	t.Parallel()
	g, _ := newTestGateway(t)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "unparseable", raw: "invalid-timestamp"},
		{name: "empty", raw: ""},
	}

	for i, tt := range tests {
		res, err := g.Ingest(context.Background(), Input{ExternalID: fmt.Sprintf("ts_%d", i), Text: "x", RawTimestamp: tt.raw})
		if err != nil {
			t.Fatalf("%s: Ingest() error = %v", tt.name, err)
		}
		if !res.Created {
			t.Errorf("%s: message was not stored", tt.name)
		}
		if !res.Message.Timestamp.Equal(fixedNow) {
			t.Errorf("%s: Timestamp = %v, want ingestion time %v", tt.name, res.Message.Timestamp, fixedNow)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 5, 10, 14, 30, 0, 0, time.UTC)
	tests := []struct {
		raw     string
		want    time.Time
		wantErr bool
	}{
		{raw: "2025-05-10T14:30:00Z", want: want},
		{raw: "2025-05-10T14:30:00.000Z", want: want},
		{raw: "2025-05-10T16:30:00+02:00", want: want},
		{raw: "2025-05-10T16:30:00+0200", want: want},
		{raw: "2025-05-10T14:30:00", want: want},
		{raw: "2025-05-10 14:30:00", want: want},
		{raw: "invalid-timestamp", wantErr: true},
		{raw: "10/05/2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, err := ParseTimestamp(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrTimestampParse) {
					t.Errorf("ParseTimestamp(%q) error = %v, want ErrTimestampParse", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) error = %v", tt.raw, err)
			}
			if !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Errorf("ParseTimestamp(%q) = %v, want %v in UTC", tt.raw, got, tt.want)
			}
		})
	}
}

func TestBackfillPaginatesUntilCount(t *testing.T) {
	t.Parallel()
	g, _ := newTestGateway(t)
	src := &fakeSource{messages: makeMessages(150)}

	b := NewBackfiller(g, src, 100, logger.Discard())
	b.now = func() time.Time { return fixedNow }

	stats, err := b.Run(context.Background(), 30)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(src.queries) != 2 {
		t.Errorf("fetches = %d, want 2", len(src.queries))
	}
	if stats.TotalFetched != 150 || stats.NewSaved != 150 || stats.DuplicatesSkipped != 0 {
		t.Errorf("stats = %+v, want 150 fetched and saved", stats)
	}
	if src.queries[1].Skip != 100 || src.queries[1].Limit != 100 {
		t.Errorf("second query = %+v, want skip 100 limit 100", src.queries[1])
	}
	if wantFrom := fixedNow.AddDate(0, 0, -30); !src.queries[0].CreatedFrom.Equal(wantFrom) {
		t.Errorf("CreatedFrom = %v, want %v", src.queries[0].CreatedFrom, wantFrom)
	}

	// a second backfill over the same window only finds duplicates
	again, err := b.Run(context.Background(), 30)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if again.NewSaved != 0 || again.DuplicatesSkipped != 150 || again.TotalFetched != 150 {
		t.Errorf("second stats = %+v, want 150 duplicates", again)
	}
}

func TestBackfillStopsOnEmptyPage(t *testing.T) {
	t.Parallel()
	g, _ := newTestGateway(t)
	// the source over-reports its total
	src := &fakeSource{messages: makeMessages(100), count: 500}

	stats, err := NewBackfiller(g, src, 100, logger.Discard()).Run(context.Background(), 1)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(src.queries) != 2 {
		t.Errorf("fetches = %d, want 2", len(src.queries))
	}
	if stats.TotalFetched != 100 {
		t.Errorf("TotalFetched = %d, want 100", stats.TotalFetched)
	}
}

func TestBackfillContinuesPastShortPages(t *testing.T) {
	t.Parallel()
	g, _ := newTestGateway(t)
	src := &fakeSource{messages: makeMessages(250), maxPage: 60}

	stats, err := NewBackfiller(g, src, 100, logger.Discard()).Run(context.Background(), 30)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.TotalFetched != 250 || stats.NewSaved != 250 {
		t.Errorf("stats = %+v, want all 250 fetched and saved", stats)
	}

	wantSkips := []int{0, 60, 120, 180, 240}
	if len(src.queries) != len(wantSkips) {
		t.Fatalf("fetches = %d, want %d", len(src.queries), len(wantSkips))
	}
	for i, q := range src.queries {
		if q.Skip != wantSkips[i] {
			t.Errorf("query %d skip = %d, want %d", i, q.Skip, wantSkips[i])
		}
	}
}

func TestBackfillSkipsMessagesWithoutID(t *testing.T) {
	t.Parallel()
	g, _ := newTestGateway(t)
	msgs := makeMessages(3)
	msgs[1].ID = ""
	src := &fakeSource{messages: msgs}

	stats, err := NewBackfiller(g, src, 100, logger.Discard()).Run(context.Background(), 7)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.TotalFetched != 2 || stats.NewSaved != 2 || stats.InvalidSkipped != 1 {
		t.Errorf("stats = %+v, want 2 fetched, 2 saved, 1 invalid", stats)
	}
	if stats.NewSaved+stats.DuplicatesSkipped != stats.TotalFetched {
		t.Errorf("NewSaved + DuplicatesSkipped != TotalFetched: %+v", stats)
	}
}

func TestBackfillRejectsNonPositiveDays(t *testing.T) {
	t.Parallel()
	g, _ := newTestGateway(t)
	src := &fakeSource{}

	for _, days := range []int{0, -5} {
		if _, err := NewBackfiller(g, src, 100, logger.Discard()).Run(context.Background(), days); err == nil {
			t.Errorf("Run(%d) succeeded, want error", days)
		}
	}
	if len(src.queries) != 0 {
		t.Errorf("source queried %d times, want 0", len(src.queries))
	}
}

func TestUpstreamFailureKeepsIngestedMessages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g, store := newTestGateway(t)
	src := &fakeSource{messages: makeMessages(150), failAt: 100}

	stats, err := NewBackfiller(g, src, 100, logger.Discard()).Run(ctx, 30)
	if !errors.Is(err, ErrUpstreamSource) {
		t.Fatalf("Run() error = %v, want ErrUpstreamSource", err)
	}
	if stats.NewSaved != 100 {
		t.Errorf("NewSaved = %d, want 100 before failure", stats.NewSaved)
	}

	counts, err := store.CountByState(ctx)
	if err != nil {
		t.Fatalf("CountByState() error = %v", err)
	}
	if counts[database.StateUnclassified] != 100 {
		t.Errorf("stored rows = %d, want 100", counts[database.StateUnclassified])
	}
}

func TestWebhookAndOverlappingPollStoreOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g, store := newTestGateway(t)
	msgs := makeMessages(3)

	for _, m := range msgs {
		res, err := g.Ingest(ctx, Input{Source: SourceWebhook, ExternalID: m.ID, Text: m.Body, RawTimestamp: m.CreatedAt})
		if err != nil || !res.Created {
			t.Fatalf("webhook Ingest(%s) = %+v, %v", m.ID, res, err)
		}
	}

	src := &fakeSource{messages: msgs}
	p := NewPoller(g, src, 10*time.Minute, 100, logger.Discard())
	p.now = func() time.Time { return fixedNow.Add(5 * time.Minute) }

	stats, err := p.Poll(ctx)
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if stats.NewSaved != 0 || stats.DuplicatesSkipped != 3 {
		t.Errorf("poll stats = %+v, want 3 duplicates", stats)
	}
	if wantFrom := fixedNow.Add(-5 * time.Minute); !src.queries[0].CreatedFrom.Equal(wantFrom) {
		t.Errorf("poll window starts at %v, want %v", src.queries[0].CreatedFrom, wantFrom)
	}

	for _, m := range msgs {
		if _, err := store.GetByExternalID(ctx, m.ID); err != nil {
			t.Errorf("GetByExternalID(%s) error = %v", m.ID, err)
		}
	}
	counts, err := store.CountByState(ctx)
	if err != nil {
		t.Fatalf("CountByState() error = %v", err)
	}
	if counts[database.StateUnclassified] != 3 {
		t.Errorf("stored rows = %d, want 3", counts[database.StateUnclassified])
	}
}

func TestConcurrentWebhookAndPoll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	g, store := newTestGateway(t)
	msgs := makeMessages(20)
	src := &fakeSource{messages: msgs}
	p := NewPoller(g, src, 10*time.Minute, 7, logger.Discard())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, m := range msgs {
			_, _ = g.Ingest(ctx, Input{Source: SourceWebhook, ExternalID: m.ID, Text: m.Body})
		}
	}()
	go func() {
		defer wg.Done()
		_, _ = p.Poll(ctx)
	}()
	wg.Wait()

	counts, err := store.CountByState(ctx)
	if err != nil {
		t.Fatalf("CountByState() error = %v", err)
	}
	if counts[database.StateUnclassified] != len(msgs) {
		t.Errorf("stored rows = %d, want %d", counts[database.StateUnclassified], len(msgs))
	}
}
