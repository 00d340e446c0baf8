package alert

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/edgard/inboxintel/internal/database"
	"github.com/edgard/inboxintel/internal/text"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// ErrTemplateNotFound is returned when no template exists for a category.
var ErrTemplateNotFound = errors.New("alert template not found")

const (
	excerptRunes       = 200
	unknownGuest       = "Unknown"
	unknownReservation = "N/A"
	titlePrefix        = "🔔 "
)

// Fields are the values available to an alert template.
type Fields struct {
	GuestName     string
	ReservationID string
	Confidence    string
	Summary       string
	Excerpt       string
}

// Alert is a rendered notification.
type Alert struct {
	Title string
	Body  string
}

// Renderer renders alerts from per-category templates.
type Renderer struct {
	templates map[database.Category]*template.Template
}

// NewRenderer loads the embedded templates. Files named
// <category>.tmpl in dir, lower-cased, replace the embedded ones.
func NewRenderer(dir string) (*Renderer, error) {
	r := &Renderer{templates: make(map[database.Category]*template.Template, len(database.Categories))}

	sub, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("embedded templates: %w", err)
	}
	if err := r.load(sub); err != nil {
		return nil, err
	}

	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("templates dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("templates dir %s is not a directory", dir)
		}
		if err := r.load(os.DirFS(dir)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Renderer) load(fsys fs.FS) error {
	for _, c := range database.Categories {
		name := templateName(c)
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read template %s: %w", name, err)
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(data))
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[c] = tmpl
	}
	return nil
}

func templateName(c database.Category) string {
	return strings.ToLower(string(c)) + ".tmpl"
}

// Render executes the template for category with fields.
func (r *Renderer) Render(category database.Category, fields Fields) (string, error) {
	tmpl, ok := r.templates[category]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, category)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, fields); err != nil {
		return "", fmt.Errorf("render %s alert: %w", category, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Build renders the alert for a classified message.
func (r *Renderer) Build(msg database.Message, c database.Classification) (Alert, error) {
	body, err := r.Render(c.Category, FieldsFor(msg, c))
	if err != nil {
		return Alert{}, err
	}
	return Alert{Title: Title(c.Category), Body: body}, nil
}

// Title returns the notification title for category, e.g. "🔔 Early Checkin".
func Title(category database.Category) string {
	return titlePrefix + category.Label()
}

// FieldsFor fills template fields from a message and its classification.
func FieldsFor(msg database.Message, c database.Classification) Fields {
	f := Fields{
		GuestName:     unknownGuest,
		ReservationID: unknownReservation,
		Confidence:    FormatConfidence(c.Confidence),
		Summary:       c.Summary,
		Excerpt:       Excerpt(msg.Text, excerptRunes),
	}
	if msg.GuestName.Valid && msg.GuestName.String != "" {
		f.GuestName = msg.GuestName.String
	}
	if msg.ReservationID.Valid && msg.ReservationID.String != "" {
		f.ReservationID = msg.ReservationID.String
	}
	return f
}

// FormatConfidence renders a [0,1] confidence as a whole percentage.
func FormatConfidence(confidence float64) string {
	return fmt.Sprintf("%.0f%%", confidence*100)
}

// Excerpt returns at most n runes of the cleaned message text.
func Excerpt(s string, n int) string {
	return text.Truncate(text.Clean(s), n)
}
