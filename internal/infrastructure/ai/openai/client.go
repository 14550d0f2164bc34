// Package openai provides the OpenAI-backed generative planner
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mealforge/v1/internal/domain/mealplan"
	"github.com/mealforge/v1/internal/domain/profile"
	"github.com/mealforge/v1/internal/infrastructure/ai"
	"github.com/mealforge/v1/internal/infrastructure/config"
	"github.com/mealforge/v1/internal/ports/outbound"
	apperrors "github.com/mealforge/v1/pkg/errors"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the generative planner using the OpenAI API
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new OpenAI client. The per-minute request budget is
// enforced locally so a retry storm cannot run up the bill.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	perMin := cfg.AI.RequestsPerMin
	if perMin < 1 {
		perMin = 1
	}
	return &Client{
		apiKey:      cfg.AI.OpenAIKey,
		baseURL:     defaultBaseURL,
		model:       cfg.AI.OpenAIModel,
		maxTokens:   cfg.AI.MaxTokens,
		temperature: cfg.AI.Temperature,
		client: &http.Client{
			Timeout: cfg.AI.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), perMin),
		logger:  logger.Named("openai"),
	}
}

var _ outbound.GenerativePlanner = (*Client)(nil)

// Model names the underlying model for the run ledger
func (c *Client) Model() string {
	return c.model
}

// Generate proposes meals for the requested cells
func (c *Client) Generate(ctx context.Context, request mealplan.PlanRequest, locale profile.Locale, opts outbound.GenerateOptions) (outbound.GeneratedMeals, error) {
	if !c.limiter.Allow() {
		c.logger.Warn("Request budget exhausted", zap.String("user_id", request.UserID))
		return nil, apperrors.NewAIBudgetExceededError()
	}

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

// OpenAI API structures
type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Complete sends one chat completion call and returns the raw content
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(body))
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
