package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/inboxintel/internal/config"
	"github.com/edgard/inboxintel/internal/database"
)

type geminiClassifier struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	prompt        *Prompt
	timeout       time.Duration
	maxRetries    int
	retryDelay    time.Duration
}

var minConfidence, maxConfidence = 0.0, 1.0

var classificationSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"category": {
			Type:        genai.TypeString,
			Enum:        categoryNames(),
			Description: "The single category that best describes the guest message.",
		},
		"confidence": {
			Type:        genai.TypeNumber,
			Minimum:     &minConfidence,
			Maximum:     &maxConfidence,
			Description: "Confidence in the chosen category, between 0 and 1.",
		},
		"summary": {Type: genai.TypeString, Description: "One-sentence summary for the host."},
	},
	Required: []string{"category", "confidence", "summary"},
}

func categoryNames() []string {
	names := make([]string, len(database.Categories))
	for i, c := range database.Categories {
		names[i] = string(c)
	}
	return names
}

func newGeminiClassifier(ctx context.Context, cfg config.ClassifierConfig, prompt *Prompt, log *slog.Logger) (*geminiClassifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	gi, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	contentConfig := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  int32(cfg.MaxTokens),
		ResponseMIMEType: "application/json",
		ResponseSchema:   classificationSchema,
	}

	logger := log.With("component", "classifier", "provider", string(config.ProviderGemini))
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &geminiClassifier{
		genaiClient:   gi,
		log:           logger,
		contentConfig: contentConfig,
		modelName:     cfg.Model,
		prompt:        prompt,
		timeout:       cfg.Timeout,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
	}, nil
}

func (c *geminiClassifier) Classify(ctx context.Context, text string) (Result, error) {
	contents := []*genai.Content{genai.NewContentFromText(c.prompt.Render(text), genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	raw, err := c.extractText(ctx, resp)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrClassification, err)
	}

	res, err := ParseResult(raw)
	if err != nil {
		c.log.WarnContext(ctx, "Unusable model response", "model", c.modelName, "response", raw, "error", err)
		return Result{}, err
	}
	return res, nil
}

func (c *geminiClassifier) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		var resp *genai.GenerateContentResponse
		resp, err = c.generate(ctx, contents)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry", "attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if !errors.As(err, &apiErr) || (apiErr.Code != 429 && apiErr.Code != 500 && apiErr.Code != 503) {
			return nil, fmt.Errorf("gemini API call failed: %w", err)
		}
		if i == c.maxRetries {
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", apiErr.Code)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return nil, err
}

func (c *geminiClassifier) generate(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
}

func (c *geminiClassifier) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reason)
		return "", fmt.Errorf("blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("empty content, finish reason: %s", finishReason)
	}

	return resp.Text(), nil
}
