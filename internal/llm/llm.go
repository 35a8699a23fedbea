// Package llm calls chat-completion providers to decompose prompts and
// parses their JSON replies into task descriptors.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/stepwise-ai/stepwise/internal/model"
)

// Provider is a single-turn chat completion call.
type Provider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// New builds a Provider for the given model config.
func New(cfg *model.ModelConfig) (Provider, error) {
	key, err := resolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.Provider {
	case "openai":
		return newOpenAIProvider(cfg, key), nil
	case "anthropic":
		return newAnthropicProvider(cfg, key), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// resolveAPIKey prefers the stored key, then the config's named env var,
// then the provider's conventional env var.
func resolveAPIKey(cfg *model.ModelConfig) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if cfg.APIKeyEnv != "" {
		if v := os.Getenv(cfg.APIKeyEnv); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("api key env %s is not set", cfg.APIKeyEnv)
	}
	var fallback string
	switch cfg.Provider {
	case "openai":
		fallback = "OPENAI_API_KEY"
	case "anthropic":
		fallback = "ANTHROPIC_API_KEY"
	}
	if fallback != "" {
		if v := os.Getenv(fallback); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("no api key configured for %s", cfg.Name)
}

const systemPrompt = `You break a user prompt into a short ordered list of concrete tasks.
Respond with JSON only, no prose and no code fences, in this shape:
{"tasks": [{"task": "...", "subtasks": ["...", "..."]}]}
Return at most 5 tasks. "subtasks" may be omitted. Every "task" must be a non-empty string.`

// Decompose asks the provider to split prompt into tasks and parses the
// reply. Any provider or parse failure is returned so the caller can fall
// back to the heuristic splitter.
func Decompose(ctx context.Context, p Provider, prompt string) ([]model.TaskDescriptor, error) {
	raw, err := p.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("provider call: %w", err)
	}
	tasks, err := ParseTasks(raw)
	if err != nil {
		return nil, fmt.Errorf("parse reply: %w", err)
	}
	return tasks, nil
}
