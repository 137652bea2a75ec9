package ttsctl

import (
	"encoding/binary"
	"math"
	"testing"
)

func encodeSample(s int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(s))
	return b
}

func TestPCMStreamDecoderDecodesWholeChunk(t *testing.T) {
	d := &pcmStreamDecoder{}
	chunk := append(encodeSample(16384), encodeSample(-16384)...)
	samples := d.Feed(chunk)
	if len(samples) != 2 {
		t.Fatalf("len(samples) = %d, want 2", len(samples))
	}
	if math.Abs(float64(samples[0])-0.5) > 0.01 {
		t.Fatalf("samples[0] = %f, want ~0.5", samples[0])
	}
	if d.have {
		t.Fatal("decoder should have no carry after an even-length chunk")
	}
}

func TestPCMStreamDecoderCarriesOddTrailingByte(t *testing.T) {
	d := &pcmStreamDecoder{}
	full := append(encodeSample(1000), encodeSample(2000)...)

	first := d.Feed(full[:3]) // one whole sample + one odd trailing byte
	if len(first) != 1 {
		t.Fatalf("len(first) = %d, want 1", len(first))
	}
	if !d.have {
		t.Fatal("decoder should be carrying the odd trailing byte")
	}

	second := d.Feed(full[3:])
	if len(second) != 1 {
		t.Fatalf("len(second) = %d, want 1", len(second))
	}
	if d.have {
		t.Fatal("decoder should have consumed the carried byte")
	}

	want := int16(2000)
	got := int16(second[0] * math.MaxInt16)
	if math.Abs(float64(got-want)) > 2 {
		t.Fatalf("second sample = %d, want ~%d", got, want)
	}
}

func TestPCMStreamDecoderHandlesEmptyChunk(t *testing.T) {
	d := &pcmStreamDecoder{}
	if samples := d.Feed(nil); samples != nil {
		t.Fatalf("Feed(nil) = %v, want nil", samples)
	}
}

func TestSilenceProducesZeroSamples(t *testing.T) {
	samples := silence(40, 22050)
	want := 22050 * 40 / 1000
	if len(samples) != want {
		t.Fatalf("len(samples) = %d, want %d", len(samples), want)
	}
	for i, s := range samples {
		if s != 0 {
			t.Fatalf("samples[%d] = %f, want 0", i, s)
		}
	}
}

func TestSilenceZeroMsReturnsNil(t *testing.T) {
	if s := silence(0, 22050); s != nil {
		t.Fatalf("silence(0, ...) = %v, want nil", s)
	}
}
