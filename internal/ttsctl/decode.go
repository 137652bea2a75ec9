package ttsctl

import "github.com/graphrt/runtime/internal/audio"

// pcmStreamDecoder decodes a byte stream of little-endian 16-bit PCM into
// float32 samples, carrying an odd trailing byte across Feed calls so a
// sample split across two network reads is never dropped.
type pcmStreamDecoder struct {
	carry byte
	have  bool
}

// Feed consumes chunk and returns every whole sample it now contains.
func (d *pcmStreamDecoder) Feed(chunk []byte) []float32 {
	data := chunk
	if d.have {
		data = make([]byte, 0, len(chunk)+1)
		data = append(data, d.carry)
		data = append(data, chunk...)
		d.have = false
	}
	if len(data)%2 == 1 {
		d.carry = data[len(data)-1]
		d.have = true
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return nil
	}
	return audio.DecodePCM16LE(data)
}

// silence returns ms milliseconds of zero-valued samples at rate.
func silence(ms, rate int) []float32 {
	if ms <= 0 {
		return nil
	}
	n := rate * ms / 1000
	return make([]float32, n)
}
