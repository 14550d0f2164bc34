// Package ollama provides a local Ollama-backed generative planner for
// development environments without an OpenAI key.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/infrastructure/ai"
	"github.com/mealforge/v1/internal/infrastructure/config"
	"github.com/mealforge/v1/internal/ports/outbound"
)

// Client implements the generative planner against a local Ollama server
type Client struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

// NewClient creates a new Ollama client
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		endpoint: cfg.AI.OllamaEndpoint,
		model:    cfg.AI.OllamaModel,
		client: &http.Client{
			Timeout: cfg.AI.Timeout,
		},
		logger: logger.Named("ollama"),
	}
}

var _ outbound.GenerativePlanner = (*Client)(nil)

// Model names the underlying model for the run ledger
func (c *Client) Model() string {
	return c.model
}

// Generate proposes meals for the requested cells
func (c *Client) Generate(ctx context.Context, request mealplan.PlanRequest, locale profile.Locale, opts outbound.GenerateOptions) (outbound.GeneratedMeals, error) {
	cells := ai.TargetCells(request, opts)
	userPrompt := ai.BuildUserPrompt(request, cells, opts)

	content, err := c.Complete(ctx, ai.SystemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}

	meals, err := ai.ParseProposals(content, cells)
	if err != nil {
		c.logger.Error("Failed to parse model response", zap.Error(err))
		return nil, err
	}

	c.logger.Debug("Generated meal proposals",
		zap.Int("requested_cells", len(cells)),
		zap.Int("proposed_meals", len(meals)),
	)
	return meals, nil
}

// Ollama chat API structures
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Format   string        `json:"format,omitempty"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// Complete sends one chat call and returns the raw content
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Format: "json",
		Stream: false,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return chat.Message.Content, nil
}
