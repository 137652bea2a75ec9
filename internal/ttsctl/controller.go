// Package ttsctl implements the TTS Controller (C8): a per-node FIFO
// speech queue that sanitizes incoming text, calls the remote synthesis
// endpoint in stream or file mode, and enqueues decoded audio into a Sink.
//
// Grounded on the teacher's internal/pipeline/tts.go (TTSClient/voice map/
// Synthesize) for the remote-call shape and internal/pipeline/pipeline.go's
// consumeSentences/per-node serialization-chain pattern for the FIFO task
// queue. silenceWAV (teacher, pipeline.go) is adapted into this package's
// preroll/spacer silence generator, expressed as raw float32 samples
// instead of a WAV-wrapped byte blob since the sink here consumes samples
// directly rather than a browser audio element.
package ttsctl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/graphrt/runtime/internal/audio"
	"github.com/graphrt/runtime/internal/graph"
	"github.com/graphrt/runtime/internal/relay"
	"github.com/graphrt/runtime/internal/transport"
)

// Controller drives a single TTS node's speech queue.
type Controller struct {
	nodeID string
	base   string
	auth   transport.Auth

	mux  *transport.Mux
	sink Sink

	mu    sync.Mutex
	cfg   Config
	queue *taskQueue
}

// New creates a Controller for nodeID. sink may be nil, in which case a
// BufferSink at cfg.SampleRate is used.
func New(nodeID string, cfg Config, base string, auth transport.Auth, mux *transport.Mux, sink Sink) *Controller {
	if sink == nil {
		sink = NewBufferSink(cfg.SampleRate)
	}
	return &Controller{
		nodeID: nodeID,
		base:   base,
		auth:   auth,
		mux:    mux,
		sink:   sink,
		cfg:    cfg,
		queue:  newTaskQueue(nodeID),
	}
}

// Stop halts the node's speech queue.
func (c *Controller) Stop() {
	c.queue.Stop()
}

// OnText appends a speech task to the node's queue, per the "text" input
// contract.
func (c *Controller) OnText(payload any) {
	text := graph.Text(payload)
	if strings.TrimSpace(text) == "" {
		return
	}
	clean := Sanitize(text)
	if clean == "" {
		return
	}

	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	c.queue.Enqueue(func() {
		ctx := context.Background()
		var err error
		if cfg.Mode == "file" {
			err = c.speakFile(ctx, cfg, clean)
		} else {
			err = c.speakStream(ctx, cfg, clean)
		}
		if err != nil {
			slog.Error("ttsctl: speech task failed", "node", c.nodeID, "error", err)
		}
	})
}

func (c *Controller) speechRequest(cfg Config, text, mode, format string) map[string]any {
	body := map[string]any{"text": text, "mode": mode, "format": format}
	if cfg.Model != "" {
		body["model"] = cfg.Model
	}
	if cfg.Voice != "" {
		body["voice"] = cfg.Voice
	}
	return body
}

// speakStream resumes the sink, enqueues a preroll silence, streams raw
// PCM16LE at sourceSampleRate from /speak, decoding and resampling as it
// arrives, then enqueues a spacer silence once the request completes.
func (c *Controller) speakStream(ctx context.Context, cfg Config, text string) error {
	if err := c.sink.Resume(); err != nil {
		return err
	}
	if pre := silence(cfg.PrerollMs, c.sink.Rate()); pre != nil {
		c.sink.Enqueue(pre)
	}

	decoder := &pcmStreamDecoder{}
	onChunk := func(data []byte) {
		samples := decoder.Feed(data)
		if len(samples) == 0 {
			return
		}
		if rate := c.sink.Rate(); rate != sourceSampleRate {
			samples = audio.Resample(samples, sourceSampleRate, rate)
		}
		c.sink.Enqueue(samples)
	}

	body := c.speechRequest(cfg, text, "stream", "raw")
	var err error
	if cfg.UseRelay {
		err = c.streamViaRelay(ctx, body, onChunk)
	} else {
		err = c.streamDirect(ctx, body, onChunk)
	}

	if sp := silence(cfg.SpacerMs, c.sink.Rate()); sp != nil {
		c.sink.Enqueue(sp)
	}
	return err
}

func (c *Controller) streamDirect(ctx context.Context, body map[string]any, onChunk func([]byte)) error {
	resp, err := c.mux.OpenDirectPostStream(ctx, c.base+"/speak", body, c.auth)
	if err != nil {
		return err
	}
	defer resp.Close()

	buf := make([]byte, 4096)
	for {
		n, rerr := resp.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onChunk(chunk)
		}
		if rerr != nil {
			return nil
		}
	}
}

// streamViaRelay issues the /speak POST over the relay's raw chunk
// streaming path, reassembling out-of-order chunks by seq before decoding.
func (c *Controller) streamViaRelay(ctx context.Context, body map[string]any, onChunk func([]byte)) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	reorder := relay.NewReorder[[]byte]()
	var mu sync.Mutex

	handlers := transport.StreamHandlers{
		OnChunk: func(seq int, data []byte) {
			mu.Lock()
			defer mu.Unlock()
			for _, ready := range reorder.Push(seq, data) {
				onChunk(ready)
			}
		},
	}

	req := relay.Request{
		URL: c.base + "/speak", Method: "POST",
		Headers: map[string]string{"Content-Type": "application/json"},
		JSON:    payload,
	}
	return c.mux.SendStream(ctx, req, handlers, 0)
}

// speakFile requests a file-mode synthesis, fetches the resulting blob
// (by URL, or by decoding an inline base64 payload), and hands it to the
// sink's BlobPlayer if it has one.
func (c *Controller) speakFile(ctx context.Context, cfg Config, text string) error {
	body := c.speechRequest(cfg, text, "file", "ogg")

	out, err := c.mux.PostJSON(ctx, c.base, "/speak", body, c.auth, cfg.UseRelay, 0)
	if err != nil {
		return err
	}
	obj, _ := out.(map[string]any)

	data, contentType, err := c.fetchFileAudio(ctx, cfg, obj)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	player, ok := c.sink.(BlobPlayer)
	if !ok {
		slog.Warn("ttsctl: sink does not support file-mode playback", "node", c.nodeID)
		return nil
	}
	return player.PlayBlob(ctx, data, contentType)
}

func (c *Controller) fetchFileAudio(ctx context.Context, cfg Config, obj map[string]any) ([]byte, string, error) {
	if files, ok := obj["files"].([]any); ok && len(files) > 0 {
		if first, ok := files[0].(map[string]any); ok {
			if url, ok := first["url"].(string); ok && url != "" {
				blob, err := c.mux.FetchBlob(ctx, url, cfg.UseRelay, c.auth)
				if err != nil {
					return nil, "", err
				}
				return blob.Bytes, blob.ContentType, nil
			}
		}
	}
	if b64, ok := obj["audio_b64"].(string); ok && b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, "", err
		}
		return data, "audio/ogg", nil
	}
	return nil, "", nil
}
