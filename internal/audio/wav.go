package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/loqalabs/loqa-voice/internal/voice"
)

const bitDepth = 16

// WAVWriter writes mono 16-bit PCM WAV files.
type WAVWriter struct{}

func NewWAVWriter() *WAVWriter { return &WAVWriter{} }

// Write encodes samples in [-1, 1] to path. Values outside the range are
// clipped.
func (WAVWriter) Write(path string, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return &voice.IOError{Op: "write wav", Path: path, Err: fmt.Errorf("invalid sample rate %d", sampleRate)}
	}
	file, err := os.Create(path)
	if err != nil {
		return &voice.IOError{Op: "create", Path: path, Err: err}
	}

	if err := encodePCM16(file, samples, sampleRate); err != nil {
		file.Close()
		return &voice.IOError{Op: "write wav", Path: path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &voice.IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}

func encodePCM16(file *os.File, samples []float32, sampleRate int) error {
	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range samples {
		buffer.Data[i] = int(FloatToInt16(s))
	}

	enc := wav.NewEncoder(file, sampleRate, bitDepth, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WAVLoader decodes prompt audio from WAV files.
type WAVLoader struct{}

func NewWAVLoader() *WAVLoader { return &WAVLoader{} }

// Load decodes path, mixes it down to mono and resamples it to targetRate.
func (WAVLoader) Load(path string, targetRate int) (voice.Waveform, error) {
	file, err := os.Open(path)
	if err != nil {
		return voice.Waveform{}, &voice.IOError{Op: "open prompt audio", Path: path, Err: err}
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return voice.Waveform{}, &voice.IOError{Op: "decode prompt audio", Path: path, Err: errors.New("not a valid wav file")}
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return voice.Waveform{}, &voice.IOError{Op: "decode prompt audio", Path: path, Err: err}
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return voice.Waveform{}, &voice.IOError{Op: "decode prompt audio", Path: path, Err: errors.New("missing sample rate")}
	}

	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = int(dec.BitDepth)
	}
	mono := mixdown(buf.Data, buf.Format.NumChannels, depth)
	rate := buf.Format.SampleRate
	if targetRate > 0 && targetRate != rate {
		mono = Resample(mono, rate, targetRate)
		rate = targetRate
	}
	return voice.Waveform{Samples: mono, SampleRate: rate}, nil
}

func mixdown(data []int, channels, depth int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	if depth <= 0 {
		depth = bitDepth
	}
	scale := float32(math.Pow(2, float64(depth-1)))
	frames := len(data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += data[i*channels+c]
		}
		out[i] = float32(sum) / float32(channels) / scale
	}
	return out
}

// FloatToInt16 converts a sample in [-1, 1] to 16-bit PCM with clipping.
func FloatToInt16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(math.Round(float64(s) * math.MaxInt16))
}

// Int16ToFloat is the inverse of FloatToInt16.
func Int16ToFloat(s int16) float32 {
	return float32(s) / math.MaxInt16
}
