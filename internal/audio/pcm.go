package audio

import (
	"encoding/binary"
	"fmt"
)

// Resample converts samples between rates using linear interpolation.
func Resample(samples []float32, inputRate, outputRate int) []float32 {
	if inputRate == outputRate || inputRate <= 0 || outputRate <= 0 || len(samples) == 0 {
		return samples
	}
	ratio := float64(outputRate) / float64(inputRate)
	n := int(float64(len(samples)) * ratio)
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		pos := float64(i) / ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// EncodePCM16 packs samples as little-endian signed 16-bit PCM.
func EncodePCM16(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(FloatToInt16(s)))
	}
	return pcm
}

// DecodePCM16 unpacks little-endian signed 16-bit PCM.
func DecodePCM16(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned")
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		samples[i] = Int16ToFloat(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return samples, nil
}
