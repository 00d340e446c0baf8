package guesty

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Message is a conversation post as returned by the Open API.
type Message struct {
	ID             string `json:"_id"`
	AltID          string `json:"id,omitempty"`
	Body           string `json:"body"`
	CreatedAt      string `json:"createdAt,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	ReservationID  string `json:"reservationId,omitempty"`
	From           Sender `json:"from"`
}

// ExternalID returns the message id, preferring "_id" over "id".
func (m Message) ExternalID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.AltID
}

// Sender identifies who wrote a message. The API sends either a plain
// string or an object, so both forms are accepted.
type Sender struct {
	Name string
	Type string
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Sender) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &s.Name)
	}

	var obj struct {
		FullName  string `json:"fullName"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Name      string `json:"name"`
		Type      string `json:"type"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Type = obj.Type
	s.Name = firstNonEmpty(obj.FullName, strings.TrimSpace(obj.FirstName+" "+obj.LastName), obj.Name)
	return nil
}

// MarshalJSON implements json.Marshaler, emitting the plain string form.
func (s Sender) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Name)
}

// MessageQuery selects a page of messages created at or after CreatedFrom.
type MessageQuery struct {
	CreatedFrom time.Time
	Limit       int
	Skip        int
	Sort        string
}

// MessagePage is one page of a message listing. Count is the total number
// of matching messages across all pages.
type MessagePage struct {
	Results []Message `json:"results"`
	Count   int       `json:"count"`
	Limit   int       `json:"limit"`
	Skip    int       `json:"skip"`
}

// Reservation is the subset of reservation fields used by the daily report.
type Reservation struct {
	ID          string  `json:"_id"`
	CheckIn     string  `json:"checkIn,omitempty"`
	CheckOut    string  `json:"checkOut,omitempty"`
	NightsCount *int    `json:"nightsCount,omitempty"`
	GuestsCount *int    `json:"guestsCount,omitempty"`
	Guest       Guest   `json:"guest"`
	Listing     Listing `json:"listing"`
}

// Guest is the guest attached to a reservation.
type Guest struct {
	FullName  string `json:"fullName,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// DisplayName returns fullName, then "first last", then fallback.
func (g Guest) DisplayName(fallback string) string {
	return firstNonEmpty(g.FullName, strings.TrimSpace(g.FirstName+" "+g.LastName), fallback)
}

// Listing is a property.
type Listing struct {
	ID       string  `json:"_id,omitempty"`
	Title    string  `json:"title,omitempty"`
	Nickname string  `json:"nickname,omitempty"`
	Address  Address `json:"address"`
}

// DisplayName returns title, then nickname, then the full address, then fallback.
func (l Listing) DisplayName(fallback string) string {
	return firstNonEmpty(l.Title, l.Nickname, l.Address.Full, fallback)
}

// Address is a listing address.
type Address struct {
	Full string `json:"full,omitempty"`
}

type reservationPage struct {
	Results []Reservation `json:"results"`
	Count   int           `json:"count"`
}

// ListingPage is one page of a listing query.
type ListingPage struct {
	Results []Listing `json:"results"`
	Count   int       `json:"count"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
