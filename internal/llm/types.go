package llm

import (
	"context"
	"time"

	"github.com/loqalabs/loqa-voice/internal/config"
)

// Request describes a language model prompt.
type Request struct {
	RequestID   string
	Prompt      string
	System      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Chunk represents streamed model output.
type Chunk struct {
	RequestID        string
	Content          string
	Partial          bool
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Generator defines a pluggable LLM backend.
type Generator interface {
	Generate(ctx context.Context, req Request, consumer func(Chunk) error) error
}

// RequestFromConfig builds a request for prompt using configured defaults.
func RequestFromConfig(cfg config.LLMConfig, prompt string) Request {
	return Request{
		Prompt:      prompt,
		System:      cfg.System,
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}
