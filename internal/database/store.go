package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the message persistence operations.
// Methods accept context.Context for cancellation and timeouts.
// There is deliberately no delete operation: messages are never removed.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// InsertIfAbsent atomically inserts msg unless a row with the same
	// external id already exists. Safe under arbitrary concurrent callers.
	InsertIfAbsent(ctx context.Context, msg NewMessage) (InsertResult, error)

	// GetByExternalID returns the message with the given external id or ErrNotFound.
	GetByExternalID(ctx context.Context, externalID string) (*Message, error)

	// ListUnclassified returns every unclassified message in insertion order.
	ListUnclassified(ctx context.Context) ([]Message, error)

	// MarkClassified records the classification of an unclassified message.
	// It returns ErrNotFound when no unclassified row with that id exists.
	MarkClassified(ctx context.Context, id int64, c Classification) error

	// FindClassifiedByReservation returns the classified messages of a
	// reservation ordered by timestamp ascending.
	FindClassifiedByReservation(ctx context.Context, reservationID string) ([]Message, error)

	// CountByState returns the number of messages per processing state.
	CountByState(ctx context.Context) (map[ProcessingState]int, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

const messageColumns = `id, external_id, conversation_id, reservation_id, guest_name, message_text,
        timestamp, processing_state, category, confidence, summary, created_at, classified_at`

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db      *sqlx.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:      db,
		dialect: DialectOf(db),
		logger:  logger.With("component", "store"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertIfAbsent relies on the unique constraint on external_id: the insert
// and the conflict check are one statement, so concurrent webhook, polling
// and backfill deliveries of the same message can never both insert.
func (s *sqlxStore) InsertIfAbsent(ctx context.Context, msg NewMessage) (InsertResult, error) {
	if strings.TrimSpace(msg.ExternalID) == "" {
		return InsertResult{}, fmt.Errorf("message must have a non-empty external_id")
	}
	if msg.Timestamp.IsZero() {
		return InsertResult{}, fmt.Errorf("message must have a non-zero timestamp")
	}

	query := s.db.Rebind(`
        INSERT INTO messages (external_id, conversation_id, reservation_id, guest_name, message_text,
                              timestamp, processing_state, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (external_id) DO NOTHING`)

	result, err := s.db.ExecContext(ctx, query,
		msg.ExternalID,
		nullString(msg.ConversationID),
		nullString(msg.ReservationID),
		nullString(msg.GuestName),
		msg.Text,
		msg.Timestamp.UTC(),
		string(StateUnclassified),
		s.now(),
	)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting message", "external_id", msg.ExternalID, "error", err)
		return InsertResult{}, fmt.Errorf("failed to insert message %s: %w", msg.ExternalID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return InsertResult{}, fmt.Errorf("failed to read affected rows for message %s: %w", msg.ExternalID, err)
	}

	stored, err := s.GetByExternalID(ctx, msg.ExternalID)
	if err != nil {
		return InsertResult{}, fmt.Errorf("failed to load stored message %s: %w", msg.ExternalID, err)
	}

	if affected == 0 {
		s.logger.DebugContext(ctx, "Message already stored", "external_id", msg.ExternalID, "id", stored.ID)
		return InsertResult{Inserted: false, Message: *stored}, nil
	}
	s.logger.DebugContext(ctx, "Message inserted", "external_id", msg.ExternalID, "id", stored.ID)
	return InsertResult{Inserted: true, Message: *stored}, nil
}

// GetByExternalID returns the message with the given external id.
func (s *sqlxStore) GetByExternalID(ctx context.Context, externalID string) (*Message, error) {
	var m Message
	query := s.db.Rebind(`SELECT ` + messageColumns + ` FROM messages WHERE external_id = ?`)
	err := s.db.GetContext(ctx, &m, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: external_id %s", ErrNotFound, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", externalID, err)
	}
	normalize(&m)
	return &m, nil
}

// ListUnclassified returns unclassified messages ordered by id so that runs
// process messages in insertion order.
func (s *sqlxStore) ListUnclassified(ctx context.Context) ([]Message, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var messages []Message
	query := s.db.Rebind(`SELECT ` + messageColumns + `
              FROM messages
              WHERE processing_state = ?
              ORDER BY id ASC`)

	s.logger.DebugContext(ctx, "Fetching unclassified messages")
	err := s.db.SelectContext(ctx, &messages, query, string(StateUnclassified))

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching unclassified messages", "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting unclassified messages", "error", err)
		return nil, fmt.Errorf("failed to get unclassified messages: %w", err)
	}

	for i := range messages {
		normalize(&messages[i])
	}
	s.logger.DebugContext(ctx, "Fetched unclassified messages", "count", len(messages))
	return messages, nil
}

// MarkClassified writes category, confidence and summary together with the
// state transition in a single UPDATE. The state guard in the WHERE clause
// makes the transition happen at most once.
func (s *sqlxStore) MarkClassified(ctx context.Context, id int64, c Classification) error {
	if err := c.Validate(); err != nil {
		return err
	}

	query := s.db.Rebind(`
        UPDATE messages
        SET processing_state = ?, category = ?, confidence = ?, summary = ?, classified_at = ?
        WHERE id = ? AND processing_state = ?`)

	result, err := s.db.ExecContext(ctx, query,
		string(StateClassified), string(c.Category), c.Confidence, c.Summary, s.now(),
		id, string(StateUnclassified))
	if err != nil {
		s.logger.ErrorContext(ctx, "Error marking message as classified", "id", id, "error", err)
		return fmt.Errorf("failed to mark message %d as classified: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for message %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d (missing or already classified)", ErrNotFound, id)
	}

	s.logger.DebugContext(ctx, "Message classified", "id", id, "category", c.Category, "confidence", c.Confidence)
	return nil
}

// FindClassifiedByReservation returns classified messages for a reservation.
func (s *sqlxStore) FindClassifiedByReservation(ctx context.Context, reservationID string) ([]Message, error) {
	if reservationID == "" {
		return nil, nil
	}

	var messages []Message
	query := s.db.Rebind(`SELECT ` + messageColumns + `
              FROM messages
              WHERE reservation_id = ? AND processing_state = ?
              ORDER BY timestamp ASC, id ASC`)

	if err := s.db.SelectContext(ctx, &messages, query, reservationID, string(StateClassified)); err != nil {
		s.logger.ErrorContext(ctx, "Error getting classified messages", "reservation_id", reservationID, "error", err)
		return nil, fmt.Errorf("failed to get classified messages for reservation %s: %w", reservationID, err)
	}

	for i := range messages {
		normalize(&messages[i])
	}
	return messages, nil
}

// CountByState returns message counts grouped by processing state.
func (s *sqlxStore) CountByState(ctx context.Context) (map[ProcessingState]int, error) {
	var rows []struct {
		State ProcessingState `db:"processing_state"`
		Count int             `db:"count"`
	}
	query := `SELECT processing_state, COUNT(*) AS count FROM messages GROUP BY processing_state`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	counts := map[ProcessingState]int{StateUnclassified: 0, StateClassified: 0}
	for _, r := range rows {
		counts[r.State] = r.Count
	}
	return counts, nil
}

// RunSQLMaintenance executes VACUUM and PRAGMA optimize on SQLite. PostgreSQL
// relies on autovacuum, so the call is a no-op there.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}
	if s.dialect != DialectSQLite {
		s.logger.DebugContext(ctx, "Skipping maintenance, not an SQLite database", "dialect", s.dialect)
		return nil
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return err
	case err != nil:
		s.logger.ErrorContext(ctx, "Error running VACUUM", "error", err)
		return fmt.Errorf("failed to run VACUUM: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance completed")
	return nil
}

// normalize converts driver-returned times to UTC so callers compare
// timestamps consistently across SQLite and PostgreSQL.
func normalize(m *Message) {
	m.Timestamp = m.Timestamp.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	if m.ClassifiedAt.Valid {
		m.ClassifiedAt.Time = m.ClassifiedAt.Time.UTC()
	}
}
