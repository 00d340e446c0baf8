package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/resilience"
)

// DefaultOllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama.
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

type openAIClassifier struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	prompt      *Prompt
	retry       resilience.RetryConfig
	log         *slog.Logger
}

func newOpenAIClassifier(cfg config.ClassifierConfig, prompt *Prompt, log *slog.Logger) (*openAIClassifier, error) {
	token := cfg.APIKey
	baseURL := cfg.BaseURL

	if cfg.Provider == config.ProviderOllama {
		if baseURL == "" {
			baseURL = DefaultOllamaBaseURL
		}
		if token == "" {
			// Ollama ignores the key but the client sends the header anyway.
			token = "ollama"
		}
	} else if token == "" {
		return nil, errors.New("openai API key is required")
	}

	aiConfig := openai.DefaultConfig(token)
	if baseURL != "" {
		aiConfig.BaseURL = baseURL
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.RetryDelay > 0 {
		retry.InitialInterval = cfg.RetryDelay
	}
	retry.Retryable = isRetryableOpenAI
	retry.Name = string(cfg.Provider)
	retry.Logger = log

	return &openAIClassifier{
		client:      openai.NewClientWithConfig(aiConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
		prompt:      prompt,
		retry:       retry,
		log:         log.With("component", "classifier", "provider", string(cfg.Provider)),
	}, nil
}

func (c *openAIClassifier) Classify(ctx context.Context, text string) (Result, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: c.prompt.Render(text)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var content string
	err := resilience.WithRetry(ctx, func(ctx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateChatCompletion(timeoutCtx, req)
		if err != nil {
			c.log.WarnContext(ctx, "Chat completion failed", "model", c.model, "error", err)
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("no choices in response")
		}
		content = resp.Choices[0].Message.Content
		return nil
	}, c.retry)
	if err != nil {
		return Result{}, fmt.Errorf("%w: chat completion: %w", ErrClassification, err)
	}

	res, err := ParseResult(content)
	if err != nil {
		c.log.WarnContext(ctx, "Unusable model response", "model", c.model, "response", content, "error", err)
		return Result{}, err
	}
	return res, nil
}

func isRetryableOpenAI(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// transport failures and per-attempt timeouts
	return true
}
