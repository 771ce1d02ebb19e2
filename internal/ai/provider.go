package ai

import (
	"context"
	"fmt"
	"os"

	"github.com/v0xg/snapup/internal/crawler"
	"github.com/v0xg/snapup/internal/executor"
)

// Provider drafts an action batch for a mapped page
type Provider interface {
	Draft(ctx context.Context, pageMap *crawler.PageMap, prompt string) ([]executor.Action, error)
}

// Options selects and configures a provider.
type Options struct {
	Name    string // claude | anthropic | openai | gpt
	Model   string
	APIKey  string // falls back to the provider's environment variables
	BaseURL string
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(opts Options) (Provider, error) {
	switch opts.Name {
	case "claude", "anthropic", "":
		key := firstNonEmpty(opts.APIKey, os.Getenv("SNAPUP_ANTHROPIC_KEY"), os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("SNAPUP_ANTHROPIC_KEY or ANTHROPIC_API_KEY environment variable required")
		}
		return NewClaudeProvider(key, opts.Model, opts.BaseURL), nil
	case "openai", "gpt":
		key := firstNonEmpty(opts.APIKey, os.Getenv("SNAPUP_OPENAI_KEY"), os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, fmt.Errorf("SNAPUP_OPENAI_KEY or OPENAI_API_KEY environment variable required")
		}
		return NewOpenAIProvider(key, opts.Model, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", opts.Name)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
