package voice

import (
	"context"
	"io"
	"sync"
)

type engineCall struct {
	method      string
	text        TextSource
	transcript  string
	instruction string
	opts        Options
}

type fakeEngine struct {
	mu       sync.Mutex
	calls    []engineCall
	outputs  []Output
	startErr error
	stream   *fakeStream
}

func (e *fakeEngine) SampleRate() int { return 24000 }

func (e *fakeEngine) record(c engineCall) (Stream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
	if e.startErr != nil {
		return nil, e.startErr
	}
	e.stream = &fakeStream{outputs: e.outputs, errAt: -1}
	return e.stream, nil
}

func (e *fakeEngine) ZeroShot(_ context.Context, text TextSource, transcript string, _ Waveform, opts Options) (Stream, error) {
	return e.record(engineCall{method: "zero_shot", text: text, transcript: transcript, opts: opts})
}

func (e *fakeEngine) CrossLingual(_ context.Context, text TextSource, _ Waveform, opts Options) (Stream, error) {
	return e.record(engineCall{method: "cross_lingual", text: text, opts: opts})
}

func (e *fakeEngine) Instruct(_ context.Context, text TextSource, instruction string, _ Waveform, opts Options) (Stream, error) {
	return e.record(engineCall{method: "instruct", text: text, instruction: instruction, opts: opts})
}

// fakeStream yields outputs in order. errAt, when >= 0, fails the pull of that
// index. beforeNext runs at the start of every pull.
type fakeStream struct {
	outputs    []Output
	pos        int
	errAt      int
	err        error
	beforeNext func(index int)
	afterNext  func(index int)
	pulls      int
	closed     bool
}

func newFakeStream(n int) *fakeStream {
	outputs := make([]Output, n)
	for i := range outputs {
		outputs[i] = Output{Samples: make([]float32, 10+i), SampleRate: 24000}
	}
	return &fakeStream{outputs: outputs, errAt: -1}
}

func (s *fakeStream) Next(ctx context.Context) (Output, error) {
	index := s.pos
	s.pulls++
	if s.beforeNext != nil {
		s.beforeNext(index)
	}
	if s.err != nil && index == s.errAt {
		return Output{}, s.err
	}
	if index >= len(s.outputs) {
		return Output{}, io.EOF
	}
	s.pos++
	if s.afterNext != nil {
		s.afterNext(index)
	}
	return s.outputs[index], nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}
