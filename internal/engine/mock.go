package engine

import (
	"context"
	"io"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/loqalabs/loqa-voice/internal/voice"
)

// 20 ms of mock audio per character.
const samplesPerRuneDivisor = 50

type mockEngine struct {
	sampleRate int
	latency    time.Duration
}

// NewMock returns a deterministic engine producing sine tones. With streaming
// enabled it yields one segment per text fragment; otherwise it drains the
// text source and yields a single segment. It keeps no shared state, so any
// number of streams may run at once.
func NewMock(sampleRate int, latency time.Duration) voice.Engine {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	return &mockEngine{sampleRate: sampleRate, latency: latency}
}

func (m *mockEngine) SampleRate() int { return m.sampleRate }

func (m *mockEngine) ZeroShot(_ context.Context, text voice.TextSource, _ string, _ voice.Waveform, opts voice.Options) (voice.Stream, error) {
	return m.stream(text, 220, opts), nil
}

func (m *mockEngine) CrossLingual(_ context.Context, text voice.TextSource, _ voice.Waveform, opts voice.Options) (voice.Stream, error) {
	return m.stream(text, 440, opts), nil
}

func (m *mockEngine) Instruct(_ context.Context, text voice.TextSource, _ string, _ voice.Waveform, opts voice.Options) (voice.Stream, error) {
	return m.stream(text, 330, opts), nil
}

func (m *mockEngine) stream(text voice.TextSource, freq float64, opts voice.Options) *mockStream {
	return &mockStream{engine: m, text: text, freq: freq, streaming: opts.Streaming}
}

type mockStream struct {
	engine    *mockEngine
	text      voice.TextSource
	freq      float64
	streaming bool
	done      bool
}

func (s *mockStream) Next(ctx context.Context) (voice.Output, error) {
	if s.done {
		return voice.Output{}, io.EOF
	}
	var runes int
	if s.streaming {
		fragment, err := s.text.Next(ctx)
		if err == io.EOF {
			s.done = true
			return voice.Output{}, io.EOF
		}
		if err != nil {
			return voice.Output{}, err
		}
		runes = utf8.RuneCountInString(strings.TrimSpace(fragment))
	} else {
		for {
			fragment, err := s.text.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return voice.Output{}, err
			}
			runes += utf8.RuneCountInString(strings.TrimSpace(fragment))
		}
		s.done = true
		if runes == 0 {
			return voice.Output{}, io.EOF
		}
	}

	if s.engine.latency > 0 {
		select {
		case <-ctx.Done():
			return voice.Output{}, ctx.Err()
		case <-time.After(s.engine.latency):
		}
	}
	return voice.Output{Samples: s.tone(runes), SampleRate: s.engine.sampleRate}, nil
}

func (s *mockStream) tone(runes int) []float32 {
	if runes < 1 {
		runes = 1
	}
	rate := s.engine.sampleRate
	samples := make([]float32, runes*rate/samplesPerRuneDivisor)
	for i := range samples {
		samples[i] = float32(0.2 * math.Sin(2*math.Pi*s.freq*float64(i)/float64(rate)))
	}
	return samples
}

func (s *mockStream) Close() error {
	s.done = true
	return nil
}
