// Package llm wraps the managed model provider behind a minimal
// completion interface: ordered message list in, reply text out.
package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"github.com/liurenke/renkebot/internal/config"
	"github.com/liurenke/renkebot/internal/history"
)

// Client completes an ordered message sequence into a single reply.
type Client interface {
	Complete(ctx context.Context, msgs []history.Message) (string, error)
}

// LangChainClient is the production Client backed by a langchaingo
// model provider. The provider handle is built once and shared; it is
// read-only after construction.
type LangChainClient struct {
	model       llms.Model
	maxTokens   int
	temperature float64
}

// New builds the provider selected by cfg. API keys support "env:VAR"
// indirection.
func New(cfg config.ModelConfig) (*LangChainClient, error) {
	apiKey := config.ResolveAPIKey(cfg.APIKey)

	var model llms.Model
	var err error
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(apiKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(apiKey),
			anthropic.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		model, err = anthropic.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", cfg.Provider, err)
	}

	return &LangChainClient{
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (c *LangChainClient) Complete(ctx context.Context, msgs []history.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(msgs))
	for _, m := range msgs {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	opts := []llms.CallOption{}
	if c.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.maxTokens))
	}
	if c.temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.temperature))
	}

	resp, err := c.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return resp.Choices[0].Content, nil
}

func chatMessageType(role string) schema.ChatMessageType {
	switch role {
	case history.RoleSystem:
		return schema.ChatMessageTypeSystem
	case history.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
