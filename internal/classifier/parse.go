package classifier

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/edgard/inboxintel/internal/database"
)

type rawResult struct {
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
	Summary    string   `json:"summary"`
}

// ParseResult decodes and validates a model response. Markdown code fences
// around the JSON object are tolerated.
func ParseResult(raw string) (Result, error) {
	body := stripFences(raw)
	if body == "" {
		return Result{}, fmt.Errorf("%w: empty response", ErrClassification)
	}

	var r rawResult
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return Result{}, fmt.Errorf("%w: invalid JSON response: %v", ErrClassification, err)
	}

	category, err := database.ParseCategory(r.Category)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	if r.Confidence == nil {
		return Result{}, fmt.Errorf("%w: missing confidence", ErrClassification)
	}
	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		return Result{}, fmt.Errorf("%w: missing summary", ErrClassification)
	}

	res := Result{
		Category:   category,
		Confidence: *r.Confidence,
		Summary:    summary,
	}
	if err := res.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	return res, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
