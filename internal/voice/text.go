package voice

import (
	"bufio"
	"context"
	"io"
	"sync/atomic"
)

// TextSource supplies the text to synthesize. Next returns the next chunk or
// io.EOF once the source is exhausted.
type TextSource interface {
	Next(ctx context.Context) (string, error)
	// Static reports the whole text when the source is a fixed string, so an
	// engine can take it without pulling.
	Static() (string, bool)
}

// FragmentProducer yields text fragments in order and io.EOF at the end.
// It may block while waiting on an upstream source.
type FragmentProducer interface {
	Next(ctx context.Context) (string, error)
}

type staticText struct {
	text string
	done bool
}

// StaticText returns a source producing text as a single chunk.
func StaticText(text string) TextSource {
	return &staticText{text: text}
}

func (s *staticText) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}
	s.done = true
	return s.text, nil
}

func (s *staticText) Static() (string, bool) { return s.text, true }

// Incremental is a lazily produced, non-restartable fragment sequence.
type Incremental struct {
	producer  FragmentProducer
	exhausted bool
	bound     atomic.Bool
}

// IncrementalText wraps producer. The returned source can back one request.
func IncrementalText(producer FragmentProducer) *Incremental {
	return &Incremental{producer: producer}
}

func (s *Incremental) Next(ctx context.Context) (string, error) {
	if s.exhausted {
		return "", io.EOF
	}
	fragment, err := s.producer.Next(ctx)
	if err == io.EOF {
		s.exhausted = true
	}
	return fragment, err
}

func (s *Incremental) Static() (string, bool) { return "", false }

func (s *Incremental) bind() bool {
	return s.bound.CompareAndSwap(false, true)
}

// FragmentFunc adapts a function to FragmentProducer.
type FragmentFunc func(ctx context.Context) (string, error)

func (f FragmentFunc) Next(ctx context.Context) (string, error) { return f(ctx) }

// FragmentSlice produces the given fragments in order.
func FragmentSlice(fragments ...string) FragmentProducer {
	i := 0
	return FragmentFunc(func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if i >= len(fragments) {
			return "", io.EOF
		}
		f := fragments[i]
		i++
		return f, nil
	})
}

// FragmentChannel produces fragments received on ch until it is closed. An
// error received on errs ends the sequence with that error.
func FragmentChannel(ch <-chan string, errs <-chan error) FragmentProducer {
	return FragmentFunc(func(ctx context.Context) (string, error) {
		for {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case fragment, ok := <-ch:
				if !ok {
					if errs != nil {
						select {
						case err, ok := <-errs:
							if ok && err != nil {
								return "", err
							}
						default:
						}
					}
					return "", io.EOF
				}
				return fragment, nil
			case err, ok := <-errs:
				if ok && err != nil {
					return "", err
				}
				errs = nil
			}
		}
	})
}

const maxLineBytes = 16 << 20

// FragmentLines produces one fragment per non-empty line of r. Reads are not
// interruptible; cancellation is observed between lines.
func FragmentLines(r io.Reader) FragmentProducer {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return FragmentFunc(func(ctx context.Context) (string, error) {
		for {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return "", err
				}
				return "", io.EOF
			}
			if line := scanner.Text(); line != "" {
				return line, nil
			}
		}
	})
}
