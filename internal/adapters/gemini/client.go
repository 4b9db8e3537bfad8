// internal/adapters/gemini/client.go
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ammerola/data-forge/internal/core/domain"
	"github.com/ammerola/data-forge/internal/core/ports"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 20 * time.Second

	invalidStructureMessage   = "Invalid data structure"
	invalidStructureReasoning = "The provided data does not match the basic item structure."
)

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("gemini: empty response")

// ContentGenerator is the part of the genai client this adapter uses.
// *genai.Models satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config holds the Gemini client configuration
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client validates records and summarizes datasets with a Gemini model
type Client struct {
	models  ContentGenerator
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

var (
	_ ports.SchemaValidator = (*Client)(nil)
	_ ports.Summarizer      = (*Client)(nil)
)

// NewClient creates a Gemini client using the Developer API backend
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return NewClientWithGenerator(client.Models, cfg, logger), nil
}

// NewClientWithGenerator creates a client around an existing generator
func NewClientWithGenerator(models ContentGenerator, cfg Config, logger *slog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		models:  models,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger: logger.With(
			slog.String("service", "gemini"),
			slog.String("model", cfg.Model)),
	}
}

// ValidateSchema asks the model whether data satisfies schemaDescription.
// Data failing the structural pre-check is rejected without a remote call.
func (c *Client) ValidateSchema(ctx context.Context, data map[string]any, schemaDescription string) (*domain.AIValidationResult, error) {
	if !wellFormed(data) {
		return &domain.AIValidationResult{
			IsValid:          false,
			ValidationErrors: []string{invalidStructureMessage},
			Reasoning:        invalidStructureReasoning,
		}, nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}

	text, err := c.generate(ctx, validationPrompt(schemaDescription, string(payload)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   validationSchema,
	})
	if err != nil {
		return nil, err
	}

	var result domain.AIValidationResult
	if err := json.Unmarshal([]byte(stripFences(text)), &result); err != nil {
		return nil, fmt.Errorf("decode validation result: %w", err)
	}
	if result.ValidationErrors == nil {
		result.ValidationErrors = []string{}
	}

	c.logger.DebugContext(ctx, "validation verdict",
		slog.Bool("valid", result.IsValid),
		slog.Int("errors", len(result.ValidationErrors)))

	return &result, nil
}

// Summarize returns a prose summary of the key trends in dataset
func (c *Client) Summarize(ctx context.Context, dataset string) (string, error) {
	text, err := c.generate(ctx, summaryPrompt(dataset), nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}

	c.logger.DebugContext(ctx, "gemini call completed", slog.Duration("duration", time.Since(start)))
	return text, nil
}

// wellFormed rejects empty records and known fields holding the wrong kind of value
func wellFormed(data map[string]any) bool {
	if len(data) == 0 {
		return false
	}

	for field, value := range data {
		if value == nil {
			continue
		}
		switch field {
		case domain.FieldID, domain.FieldName, domain.FieldCategory, domain.FieldDescription:
			if _, ok := value.(string); !ok {
				return false
			}
		case domain.FieldPrice, domain.FieldStock:
			if !isNumber(value) {
				return false
			}
		}
	}
	return true
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64, json.Number:
		return true
	}
	return false
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
