package voice

import "context"

// PromptSampleRate is the rate prompt audio is loaded at.
const PromptSampleRate = 16000

// Waveform is decoded mono audio.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Output is one unit of audio yielded by an engine stream.
type Output struct {
	Samples    []float32
	SampleRate int
}

// Segment is an engine output tagged with its position in the request.
type Segment struct {
	Index      int
	Samples    []float32
	SampleRate int
}

// Options are passed through to the engine unchanged.
type Options struct {
	Streaming     bool
	NormalizeText bool
}

// Stream is a lazily computed sequence of engine outputs. Next returns io.EOF
// once the utterance is complete. A stream is owned by a single request and
// must not be pulled concurrently.
type Stream interface {
	Next(ctx context.Context) (Output, error)
	Close() error
}

// Engine is the synthesis backend. Implementations that cannot run several
// streams at once must serialize them themselves.
type Engine interface {
	SampleRate() int
	ZeroShot(ctx context.Context, text TextSource, promptTranscript string, prompt Waveform, opts Options) (Stream, error)
	CrossLingual(ctx context.Context, text TextSource, prompt Waveform, opts Options) (Stream, error)
	Instruct(ctx context.Context, text TextSource, instruction string, prompt Waveform, opts Options) (Stream, error)
}

// PromptLoader decodes reference audio, resampled to targetRate.
type PromptLoader interface {
	Load(path string, targetRate int) (Waveform, error)
}

// AudioWriter writes samples to durable storage.
type AudioWriter interface {
	Write(path string, samples []float32, sampleRate int) error
}
