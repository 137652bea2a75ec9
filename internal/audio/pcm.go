package audio

import (
	"encoding/binary"
	"math"
)

func decodePCM(data []byte) []float32 {
	return DecodePCM16LE(data)
}

// DecodePCM16LE converts little-endian 16-bit PCM bytes to float32 samples
// in [-1, 1]. A trailing odd byte (half a sample) is silently dropped —
// callers streaming PCM across chunk boundaries must carry it themselves
// and prepend it to the next chunk before calling this again.
func DecodePCM16LE(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / math.MaxInt16
	}
	return samples
}

// EncodePCM16LE converts float32 samples in [-1, 1] to little-endian
// 16-bit PCM bytes, for uplink pacing to a remote recognizer.
func EncodePCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*math.MaxInt16)))
	}
	return out
}
