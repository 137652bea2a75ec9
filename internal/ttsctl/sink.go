package ttsctl

import (
	"context"
	"sync"
)

// Sink is the per-node audio output a TTS controller enqueues decoded
// float32 PCM samples into. One sink is owned per node; it is released
// when the node is destroyed.
type Sink interface {
	// Resume prepares the sink for a new utterance (e.g. unpausing an
	// underlying device or stream).
	Resume() error
	// Enqueue appends samples, already at the sink's own Rate, to the
	// playback queue.
	Enqueue(samples []float32) error
	// Rate is the sink's native sample rate; the controller resamples
	// incoming audio to this rate before calling Enqueue.
	Rate() int
}

// UnderrunCounter is implemented by sinks that track playback underruns.
// The controller never retries on an underrun and does not read this
// count itself, so this is optional.
type UnderrunCounter interface {
	Underruns() int
}

// BlobPlayer is implemented by sinks that can play back an encoded audio
// blob directly (file mode) rather than a raw PCM sample stream. PlayBlob
// blocks until playback ends, matching the per-node serialization chain's
// FIFO ordering guarantee.
type BlobPlayer interface {
	PlayBlob(ctx context.Context, data []byte, contentType string) error
}

// BufferSink is a reference Sink that appends everything it receives to an
// in-memory buffer instead of driving a real output device. Used for nodes
// with no externally wired sink (e.g. a pure text-to-audio-bytes pipeline
// consumed over a port) and in tests.
type BufferSink struct {
	rate int

	mu        sync.Mutex
	samples   []float32
	underruns int
	blobs     [][]byte
}

// NewBufferSink creates a BufferSink at the given playback rate.
func NewBufferSink(rate int) *BufferSink {
	return &BufferSink{rate: rate}
}

func (b *BufferSink) Resume() error { return nil }

func (b *BufferSink) Enqueue(samples []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples = append(b.samples, samples...)
	return nil
}

func (b *BufferSink) Rate() int { return b.rate }

// Underruns reports how many times MarkUnderrun was called.
func (b *BufferSink) Underruns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.underruns
}

// MarkUnderrun records one underrun event.
func (b *BufferSink) MarkUnderrun() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.underruns++
}

// Samples returns a copy of everything enqueued so far.
func (b *BufferSink) Samples() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

// PlayBlob records data without decoding it, implementing BlobPlayer.
func (b *BufferSink) PlayBlob(_ context.Context, data []byte, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs = append(b.blobs, data)
	return nil
}

// Blobs returns every blob handed to PlayBlob so far.
func (b *BufferSink) Blobs() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]byte, len(b.blobs))
	copy(out, b.blobs)
	return out
}
