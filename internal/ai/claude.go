package ai

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/v0xg/snapup/internal/crawler"
	"github.com/v0xg/snapup/internal/executor"
)

// ClaudeProvider implements the Provider interface using Anthropic's Claude
type ClaudeProvider struct {
	client *anthropic.Client
	model  string
}

// NewClaudeProvider creates a new Claude provider. An empty baseURL uses
// the public API.
func NewClaudeProvider(apiKey, model, baseURL string) *ClaudeProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)

	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_20250514)
	}
	return &ClaudeProvider{client: &client, model: model}
}

// Draft asks Claude for an action batch.
func (p *ClaudeProvider) Draft(ctx context.Context, pageMap *crawler.PageMap, prompt string) ([]executor.Action, error) {
	userPrompt, err := buildUserPrompt(pageMap, prompt)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty response from Claude")
	}

	actions, err := parseActions(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Claude response: %w\nResponse: %s", err, text)
	}
	return actions, nil
}
