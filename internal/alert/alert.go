// Package alert decides which classified messages deserve a notification
// and renders the notification text.
package alert

import (
	"fmt"

	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/database"
)

// CategorySet is the set of categories that raise an alert.
type CategorySet map[database.Category]bool

// NewCategorySet builds a set from category names. Unknown names are rejected.
func NewCategorySet(names []string) (CategorySet, error) {
	set := make(CategorySet, len(names))
	for _, n := range names {
		c, err := database.ParseCategory(n)
		if err != nil {
			return nil, fmt.Errorf("alert category: %w", err)
		}
		set[c] = true
	}
	return set, nil
}

// ShouldAlert reports whether a classification is in the alert set and
// meets the confidence threshold. The threshold is inclusive.
func ShouldAlert(category database.Category, confidence float64, alertSet CategorySet, minConfidence float64) bool {
	return alertSet[category] && confidence >= minConfidence
}

// Policy binds an alert set to a confidence threshold.
type Policy struct {
	Categories    CategorySet
	MinConfidence float64
}

// NewPolicy builds a Policy from configuration.
func NewPolicy(cfg config.AlertConfig) (Policy, error) {
	set, err := NewCategorySet(cfg.Categories)
	if err != nil {
		return Policy{}, err
	}
	return Policy{Categories: set, MinConfidence: cfg.MinConfidence}, nil
}

// ShouldAlert applies the policy to c.
func (p Policy) ShouldAlert(c database.Classification) bool {
	return ShouldAlert(c.Category, c.Confidence, p.Categories, p.MinConfidence)
}
