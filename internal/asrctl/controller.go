package asrctl

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/graphrt/runtime/internal/audio"
	"github.com/graphrt/runtime/internal/graph"
	"github.com/graphrt/runtime/internal/metrics"
	"github.com/graphrt/runtime/internal/transport"
)

const minTail = 300 * time.Millisecond
const lingerQuietMs = 700 * time.Millisecond
const forceQuietMaxMs = 2800 * time.Millisecond
const endTimeout = 20 * time.Second

// Controller drives a single ASR node: VAD, uplink session lifecycle, PCM
// pacing, SSE event ingest, phrase detection, dedup, and the
// hallucination guard.
//
// Grounded on the teacher's internal/pipeline/asr.go (remote HTTP client
// shape) and internal/pipeline/pipeline.go (noise/confidence filtering),
// generalized into the live streaming-session state machine this spec
// requires instead of the teacher's single-shot batch Transcribe call.
type Controller struct {
	nodeID string
	cfg    Config
	base   string
	auth   transport.Auth

	router *graph.Router
	mux    *transport.Mux

	vad     *VAD
	preroll *PreRoll
	phrase  *PhraseDetector
	dedup   *Dedup

	mu             sync.Mutex
	sid            string
	uplinkOpen     bool
	tailDeadline   time.Time
	anyVoice       bool
	finalizing     bool
	lastPostAt     time.Time
	lastPartialAt  time.Time
	inFlightPosts  int
	audioQueue     [][]float32

	batchBuf []float32

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Controller for nodeID, wired to router for port delivery
// and mux for all remote calls.
func New(nodeID string, cfg Config, base string, auth transport.Auth, router *graph.Router, mux *transport.Mux) *Controller {
	return &Controller{
		nodeID:  nodeID,
		cfg:     cfg,
		base:    base,
		auth:    auth,
		router:  router,
		mux:     mux,
		vad:     NewVAD(cfg.vadConfig()),
		preroll: NewPreRoll(cfg.PreMs, cfg.Rate),
		phrase:  NewPhraseDetector(cfg.phraseConfig()),
		dedup:   NewDedup(time.Duration(cfg.DedupWindowMs) * time.Millisecond),
	}
}

// Start claims the microphone for this node, stopping any prior owner.
func (c *Controller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	mic.claim(c.nodeID, func() { c.Stop() })

	if c.cfg.Live {
		c.wg.Add(1)
		go c.paceLoop(ctx)
	}
}

// Stop tears down any open session and releases the microphone.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	mic.release(c.nodeID)
}

// PushAudio is called with each device buffer (already downmixed to mono
// at the device rate); it resamples to cfg.Rate and feeds the VAD.
func (c *Controller) PushAudio(deviceSamples []float32, deviceRate int) {
	samples := deviceSamples
	if deviceRate != c.cfg.Rate {
		samples = audio.Resample(deviceSamples, deviceRate, c.cfg.Rate)
	}

	now := time.Now()
	state, transitioned := c.vad.Tick(samples, now)

	if !c.cfg.Live {
		c.pushBatch(samples, state)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if state == Silence {
		c.preroll.Push(samples)
	}

	if transitioned && state == Voice {
		c.anyVoice = true
		if !c.uplinkOpen {
			c.openUplinkLocked(now)
		}
		pre := c.preroll.Drain()
		if len(pre) > 0 {
			c.audioQueue = append(c.audioQueue, pre)
		}
		c.audioQueue = append(c.audioQueue, samples)
		c.extendTailLocked(now)
		return
	}

	if state == Voice {
		c.audioQueue = append(c.audioQueue, samples)
		c.extendTailLocked(now)
		return
	}

	// Silence: keep pacing any already-queued audio, and close the
	// uplink once past tailDeadline and quiescent.
	if c.uplinkOpen && now.After(c.tailDeadline) {
		go c.drainAndEnd()
	}
}

func (c *Controller) extendTailLocked(now time.Time) {
	tail := minTail
	c.tailDeadline = now.Add(tail)
}

// openUplinkLocked creates a remote streaming session. Must be called
// with c.mu held.
func (c *Controller) openUplinkLocked(now time.Time) {
	body := map[string]any{
		"mode":                     c.cfg.Mode,
		"temperature":              0.0,
		"condition_on_previous_text": false,
		"no_speech_threshold":      0.6,
		"logprob_threshold":        -1.0,
	}
	if c.cfg.Prompt != "" {
		body["prompt"] = c.cfg.Prompt
	}
	if c.cfg.Model != "" {
		body["model"] = c.cfg.Model
	}

	go func() {
		out, err := c.mux.PostJSON(context.Background(), c.base, "/recognize/stream/start", body, c.auth, false, 0)
		if err != nil {
			slog.Error("asrctl: failed to open uplink", "node", c.nodeID, "error", err)
			return
		}
		obj, _ := out.(map[string]any)
		sid, _ := obj["sid"].(string)
		if sid == "" {
			slog.Error("asrctl: uplink start returned no sid", "node", c.nodeID)
			return
		}

		c.mu.Lock()
		c.sid = sid
		c.uplinkOpen = true
		c.mu.Unlock()
		metrics.ASRSessionsActive.Inc()

		go c.ingestEvents(sid)
	}()
}

// paceLoop drains audioQueue as PCM16LE frames, honoring the in-flight
// request cap, until the controller is stopped.
func (c *Controller) paceLoop(ctx context.Context) {
	defer c.wg.Done()
	interval := time.Duration(max(10, c.cfg.ChunkMs/2)) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.paceTick()
		}
	}
}

func (c *Controller) paceTick() {
	c.mu.Lock()
	if !c.uplinkOpen || c.inFlightPosts >= c.cfg.InflightCap || len(c.audioQueue) == 0 {
		c.mu.Unlock()
		return
	}
	chunk := c.audioQueue[0]
	c.audioQueue = c.audioQueue[1:]
	c.inFlightPosts++
	sid := c.sid
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			c.inFlightPosts--
			c.lastPostAt = time.Now()
			c.mu.Unlock()
		}()

		pcm := audio.EncodePCM16LE(chunk)
		path := fmt.Sprintf("/recognize/stream/%s/audio?format=pcm16&sr=%d", sid, c.cfg.Rate)
		if _, err := c.mux.PostJSON(context.Background(), c.base, path, map[string]any{"data": base64.StdEncoding.EncodeToString(pcm)}, c.auth, false, 0); err != nil {
			slog.Warn("asrctl: audio post failed", "node", c.nodeID, "error", err)
		}
	}()
}

// ingestEvents opens the SSE event stream for sid and dispatches parsed
// events to handleEvent.
func (c *Controller) ingestEvents(sid string) {
	body, err := c.mux.OpenDirectStream(context.Background(), c.base+fmt.Sprintf("/recognize/stream/%s/events", sid), c.auth)
	if err != nil {
		slog.Error("asrctl: event stream open failed", "node", c.nodeID, "error", err)
		return
	}
	defer body.Close()

	parser := NewSSEParser()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			parser.Push(string(buf[:n]), func(payload string) { c.handleEvent(sid, payload) })
		}
		if err != nil {
			parser.Flush(func(payload string) { c.handleEvent(sid, payload) })
			return
		}
	}
}

type asrEvent struct {
	Type           string  `json:"type"`
	Text           string  `json:"text"`
	NoSpeechProb   float64 `json:"no_speech_prob"`
	AvgLogprob     float64 `json:"avg_logprob"`
	CompressionRatio float64 `json:"compression_ratio"`
}

func (c *Controller) handleEvent(sid, payload string) {
	var ev asrEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return
	}

	c.mu.Lock()
	currentSid := c.sid
	finalizing := c.finalizing
	vadState := c.vad.State()
	anyVoice := c.anyVoice
	c.mu.Unlock()

	if sid != currentSid {
		return
	}

	now := time.Now()
	switch ev.Type {
	case "asr.partial", "partial":
		if finalizing || vadState == Silence {
			return
		}
		c.mu.Lock()
		c.lastPartialAt = now
		c.mu.Unlock()
		c.router.SendFrom(c.nodeID, "partial", ev.Text)
		if phrase, ready := c.phrase.Update(ev.Text, now); ready {
			c.router.SendFrom(c.nodeID, "phrase", phrase)
		}

	case "asr.detected", "detected":
		meta := ServerMeta{NoSpeechProb: ev.NoSpeechProb, AvgLogprob: ev.AvgLogprob, CompressionRatio: ev.CompressionRatio}
		if !IsHallucination(ev.Text, vadState, anyVoice, meta) {
			c.router.SendFrom(c.nodeID, "phrase", ev.Text)
		}

	case "asr.final", "final":
		meta := ServerMeta{NoSpeechProb: ev.NoSpeechProb, AvgLogprob: ev.AvgLogprob, CompressionRatio: ev.CompressionRatio}
		if IsHallucination(ev.Text, vadState, anyVoice, meta) {
			return
		}
		if c.dedup.Check(ev.Text, now) {
			return
		}
		c.router.SendFrom(c.nodeID, "final", ev.Text)
		if phrase, ready := c.phrase.Tick(now); ready {
			c.router.SendFrom(c.nodeID, "phrase", phrase)
		}
	}
}

// drainAndEnd waits for quiescence and then closes the uplink session.
func (c *Controller) drainAndEnd() {
	c.mu.Lock()
	if c.finalizing || !c.uplinkOpen {
		c.mu.Unlock()
		return
	}
	c.finalizing = true
	sid := c.sid
	started := time.Now()
	c.mu.Unlock()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		quiet := c.inFlightPosts == 0 && len(c.audioQueue) == 0
		lingered := quiet && time.Since(c.lastPostAt) >= lingerQuietMs && time.Since(c.lastPartialAt) >= lingerQuietMs
		forced := time.Since(started) >= forceQuietMaxMs
		c.mu.Unlock()
		if lingered || forced {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), endTimeout)
	defer cancel()
	if _, err := c.mux.PostJSON(ctx, c.base, fmt.Sprintf("/recognize/stream/%s/end", sid), map[string]any{}, c.auth, false, endTimeout); err != nil {
		slog.Warn("asrctl: end post failed", "node", c.nodeID, "error", err)
	}

	c.mu.Lock()
	c.uplinkOpen = false
	c.finalizing = false
	c.sid = ""
	c.phrase.Reset()
	c.mu.Unlock()
	metrics.ASRSessionsActive.Dec()
}

// pushBatch handles non-live mode: buffer audio while in voice, and on
// silence encode + POST the whole utterance as WAV.
func (c *Controller) pushBatch(samples []float32, state VoiceState) {
	c.mu.Lock()
	c.batchBuf = append(c.batchBuf, samples...)
	buf := c.batchBuf
	silenceMs := c.cfg.SilenceMs
	c.mu.Unlock()

	if state != Silence || len(buf) == 0 {
		return
	}
	neededSamples := silenceMs * c.cfg.Rate / 1000
	if len(buf) < neededSamples {
		return
	}

	c.mu.Lock()
	c.batchBuf = nil
	c.mu.Unlock()

	go c.postBatch(buf)
}

func (c *Controller) postBatch(samples []float32) {
	wav := audio.SamplesToWAV(samples, c.cfg.Rate)
	body := map[string]any{"audio": base64.StdEncoding.EncodeToString(wav)}
	out, err := c.mux.PostJSON(context.Background(), c.base, "/recognize", body, c.auth, false, 0)
	if err != nil {
		slog.Error("asrctl: batch recognize failed", "node", c.nodeID, "error", err)
		return
	}
	obj, _ := out.(map[string]any)
	text, _ := obj["text"].(string)
	if text == "" {
		text, _ = obj["transcript"].(string)
	}
	if text != "" {
		c.router.SendFrom(c.nodeID, "final", text)
	}
}
