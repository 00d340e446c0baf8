package config

import (
	"fmt"
	"strings"
)

// Provider names the language model backend used for classification.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
)

// ParseProvider resolves a provider setting. The legacy "provider:model"
// form is accepted and split once; model is empty when not embedded.
func ParseProvider(raw string) (Provider, string, error) {
	name, model, _ := strings.Cut(strings.TrimSpace(raw), ":")
	p := Provider(strings.ToLower(strings.TrimSpace(name)))

	switch p {
	case ProviderOpenAI, ProviderOllama, ProviderGemini:
		return p, strings.TrimSpace(model), nil
	default:
		return "", "", fmt.Errorf("%w: unsupported classifier provider %q", ErrConfiguration, raw)
	}
}

// DefaultModel returns the model used for p when none is configured.
func (p Provider) DefaultModel() string {
	return defaultModels[p]
}
