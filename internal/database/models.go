package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ProcessingState tracks whether a message has been through the classifier.
// A message moves from StateUnclassified to StateClassified exactly once.
type ProcessingState string

const (
	StateUnclassified ProcessingState = "UNCLASSIFIED"
	StateClassified   ProcessingState = "CLASSIFIED"
)

// Category is the intent assigned to a guest message.
type Category string

// The closed set of categories a message can be classified into.
const (
	CategoryEarlyCheckin     Category = "EARLY_CHECKIN"
	CategoryLateCheckout     Category = "LATE_CHECKOUT"
	CategorySpecialRequest   Category = "SPECIAL_REQUEST"
	CategoryMaintenanceIssue Category = "MAINTENANCE_ISSUE"
	CategoryGeneralQuestion  Category = "GENERAL_QUESTION"
)

// Categories lists every valid category in a stable order.
var Categories = []Category{
	CategoryEarlyCheckin,
	CategoryLateCheckout,
	CategorySpecialRequest,
	CategoryMaintenanceIssue,
	CategoryGeneralQuestion,
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the human-readable form of the category, e.g. "Early Checkin".
func (c Category) Label() string {
	words := strings.Split(strings.ToLower(string(c)), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParseCategory normalizes s and checks it against the closed category set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidClassification, s)
	}
	return c, nil
}

// Message is a guest message ingested from the property-management platform.
// Identity fields and text are immutable once stored; the classification
// fields are written together, once, when the message is classified.
type Message struct {
	ID             int64          `db:"id"`
	ExternalID     string         `db:"external_id"`
	ConversationID sql.NullString `db:"conversation_id"`
	ReservationID  sql.NullString `db:"reservation_id"`
	GuestName      sql.NullString `db:"guest_name"`
	Text           string         `db:"message_text"`
	Timestamp      time.Time      `db:"timestamp"`

	State      ProcessingState `db:"processing_state"`
	Category   sql.NullString  `db:"category"`
	Confidence sql.NullFloat64 `db:"confidence"`
	Summary    sql.NullString  `db:"summary"`

	CreatedAt    time.Time    `db:"created_at"`
	ClassifiedAt sql.NullTime `db:"classified_at"`
}

// Classification returns the stored classification and true when the
// message has been classified.
func (m *Message) Classification() (Classification, bool) {
	if m.State != StateClassified {
		return Classification{}, false
	}
	return Classification{
		Category:   Category(m.Category.String),
		Confidence: m.Confidence.Float64,
		Summary:    m.Summary.String,
	}, true
}

// NewMessage carries the fields of a message about to be inserted.
// Empty optional strings are stored as NULL.
type NewMessage struct {
	ExternalID     string
	ConversationID string
	ReservationID  string
	GuestName      string
	Text           string
	Timestamp      time.Time
}

// InsertResult reports the outcome of InsertIfAbsent. Message is the stored
// row: the new one when Inserted is true, the pre-existing one otherwise.
type InsertResult struct {
	Inserted bool
	Message  Message
}

// Classification is the outcome of classifying a message.
type Classification struct {
	Category   Category
	Confidence float64
	Summary    string
}

// Validate checks the classification against the closed category set and the
// [0,1] confidence range.
func (c Classification) Validate() error {
	if !c.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidClassification, c.Category)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidClassification, c.Confidence)
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
