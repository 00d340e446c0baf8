// Package classifier assigns a category, a confidence and a one-line
// summary to guest messages using a language model. OpenAI and Ollama are
// reached through the OpenAI-compatible chat API; Gemini uses the genai SDK.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/database"
)

// ErrClassification wraps every classification failure: provider errors,
// empty or unparseable output, unknown categories and out-of-range
// confidence.
var ErrClassification = errors.New("classification failed")

// Result is a validated classification.
type Result = database.Classification

// Classifier classifies the text of one guest message.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

// New creates the classifier for the configured provider.
func New(ctx context.Context, cfg config.ClassifierConfig, log *slog.Logger) (Classifier, error) {
	if log == nil {
		log = slog.Default()
	}
	log.Info("Initializing classifier", "provider", cfg.Provider, "model", cfg.Model)

	prompt, err := LoadPrompt(cfg.PromptFile)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderOllama:
		c, err := newOpenAIClassifier(cfg, prompt, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s classifier: %w", cfg.Provider, err)
		}
		return c, nil
	case config.ProviderGemini:
		c, err := newGeminiClassifier(ctx, cfg, prompt, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini classifier: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown classifier provider: %s", cfg.Provider)
	}
}
