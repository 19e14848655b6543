package openai

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/dhruv1108git/pulse/internal/domain"
	"github.com/dhruv1108git/pulse/internal/metrics"
)

// Generator produces chat completions through the OpenAI-compatible API.
// Temperature is pinned to 0: the output feeds a strict JSON parser, not a
// conversation.
type Generator struct {
	client *openai.Client
	model  string
	user   string
	logger *zap.Logger
}

// GeneratorConfig holds the text generator settings.
type GeneratorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	User    string
	Logger  *zap.Logger
}

// NewGenerator creates an OpenAI-compatible text generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		user:   cfg.User,
		logger: cfg.Logger,
	}
}

// Generate implements the TextGenerator contract. Rate limiting surfaces as
// ErrRateLimited; any other API failure as ErrGenerationUnavailable.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
		User:        g.user,
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues("generate", g.model, "error").Inc()
		return "", parseAPIError("generation", err, domain.ErrGenerationUnavailable)
	}

	if len(resp.Choices) == 0 {
		metrics.AIRequestsTotal.WithLabelValues("generate", g.model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrGenerationUnavailable)
	}

	metrics.AIRequestsTotal.WithLabelValues("generate", g.model, "success").Inc()
	metrics.AIRequestDuration.WithLabelValues("generate", g.model).Observe(duration.Seconds())

	if resp.Usage.TotalTokens > 0 {
		metrics.AITokensTotal.WithLabelValues("generate", g.model, "prompt").
			Add(float64(resp.Usage.PromptTokens))
		metrics.AITokensTotal.WithLabelValues("generate", g.model, "total").
			Add(float64(resp.Usage.TotalTokens))
	}

	return resp.Choices[0].Message.Content, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}
