package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/yaontheroad/email-agents/internal/model"
)

// Completion is a single-turn request to the language service.
type Completion struct {
	System string
	Prompt string

	// JSON asks the backend to constrain output to a JSON object where
	// it supports that.
	JSON bool

	MaxTokens int
}

// Completer is the language service used for classification and drafting.
type Completer interface {
	Complete(ctx context.Context, req Completion) (string, error)
}

// NewCompleter builds the backend named by cfg.Provider.
func NewCompleter(cfg model.AIConfig) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("no API key configured for %s", cfg.Provider)
	}
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	case "anthropic":
		return NewAnthropic(cfg.APIKey, cfg.Model, cfg.MaxTokens), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
