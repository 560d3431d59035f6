package llm

import (
	"context"
	"strings"
	"time"
)

type mockGenerator struct {
	delay time.Duration
}

// NewMockGenerator returns a generator that streams a canned completion one
// word at a time.
func NewMockGenerator() Generator { return &mockGenerator{delay: 5 * time.Millisecond} }

func (m *mockGenerator) Generate(ctx context.Context, req Request, consumer func(Chunk) error) error {
	content := "Mock completion for " + strings.TrimSpace(req.Prompt) + ". That is all."
	words := strings.Fields(content)
	start := time.Now()
	for i, word := range words {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
		if i < len(words)-1 {
			word += " "
		}
		if err := consumer(Chunk{
			RequestID: req.RequestID,
			Content:   word,
			Partial:   i < len(words)-1,
			Latency:   time.Since(start),
		}); err != nil {
			return err
		}
	}
	return nil
}
