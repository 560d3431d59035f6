package llm

import (
	"context"
	"strings"

	"github.com/loqalabs/loqa-voice/internal/voice"
)

const sentenceBreaks = ".!?;。！？；\n"

// Fragments runs a generation in the background and exposes the completion as
// an incremental text producer, one sentence per fragment.
type Fragments struct {
	producer voice.FragmentProducer
	cancel   context.CancelFunc
	done     chan struct{}
}

// StreamFragments starts gen for req. The generation stops when parent is
// cancelled or Close is called.
func StreamFragments(parent context.Context, gen Generator, req Request) *Fragments {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan string)
	errs := make(chan error, 1)
	f := &Fragments{
		producer: voice.FragmentChannel(ch, errs),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(f.done)
		defer close(ch)

		var buf strings.Builder
		send := func(text string) error {
			select {
			case ch <- text:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		err := gen.Generate(ctx, req, func(chunk Chunk) error {
			buf.WriteString(chunk.Content)
			if !endsSentence(buf.String()) {
				return nil
			}
			text := buf.String()
			buf.Reset()
			if strings.TrimSpace(text) == "" {
				return nil
			}
			return send(text)
		})
		if err == nil && strings.TrimSpace(buf.String()) != "" {
			err = send(buf.String())
		}
		if err != nil {
			errs <- err
		}
	}()
	return f
}

func (f *Fragments) Next(ctx context.Context) (string, error) {
	return f.producer.Next(ctx)
}

// Close stops the generation and waits for it to return.
func (f *Fragments) Close() {
	f.cancel()
	<-f.done
}

func endsSentence(s string) bool {
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return false
	}
	for _, r := range sentenceBreaks {
		if strings.HasSuffix(s, string(r)) {
			return true
		}
	}
	return false
}
