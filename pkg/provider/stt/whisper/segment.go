package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/sayright/sayright/pkg/provider/stt"
)

const (
	// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
	// audio that whisper.cpp expects.
	bitsPerSample = 16

	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which audio is considered silent. The maximum possible value
	// for 16-bit audio is 32 767; 300 corresponds to near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000

	// finalFlushTimeout bounds the inference run on Close.
	finalFlushTimeout = 30 * time.Second
)

var errClosed = errors.New("whisper: session is closed")

// segmentConfig holds the silence-detection parameters shared by both
// providers.
type segmentConfig struct {
	rmsThreshold        float64
	silenceThresholdMs  int
	maxBufferDurationMs int
}

func defaultSegmentConfig() segmentConfig {
	return segmentConfig{
		rmsThreshold:        defaultRMSThreshold,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
	}
}

// segmenter splits a PCM stream into utterances using an energy-based silence
// detector. Leading silence is discarded; an utterance ends after
// silenceThresholdMs of trailing silence or when the buffer reaches
// maxBufferDurationMs. It is not safe for concurrent use.
type segmenter struct {
	cfg        segmentConfig
	sampleRate int
	channels   int
	maxBytes   int

	buffer    []byte
	hadSpeech bool
	silenceMs int
}

func newSegmenter(cfg segmentConfig, sampleRate, channels int) *segmenter {
	bytesPerMs := sampleRate * channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32 // 16 kHz mono
	}
	return &segmenter{
		cfg:        cfg,
		sampleRate: sampleRate,
		channels:   channels,
		maxBytes:   cfg.maxBufferDurationMs * bytesPerMs,
	}
}

// push adds chunk and returns a completed utterance, if any.
func (g *segmenter) push(chunk []byte) ([]byte, bool) {
	if computeRMS(chunk) < g.cfg.rmsThreshold {
		if !g.hadSpeech {
			return nil, false
		}
		g.silenceMs += chunkDurationMs(chunk, g.sampleRate, g.channels)
		g.buffer = append(g.buffer, chunk...)
		if g.silenceMs >= g.cfg.silenceThresholdMs {
			return g.flush()
		}
		return nil, false
	}

	g.hadSpeech = true
	g.silenceMs = 0
	g.buffer = append(g.buffer, chunk...)
	if g.maxBytes > 0 && len(g.buffer) >= g.maxBytes {
		return g.flush()
	}
	return nil, false
}

// flush returns the buffered utterance, if it contains speech, and resets.
func (g *segmenter) flush() ([]byte, bool) {
	pcm, speech := g.buffer, g.hadSpeech
	g.buffer = nil
	g.hadSpeech = false
	g.silenceMs = 0
	if len(pcm) == 0 || !speech {
		return nil, false
	}
	return pcm, true
}

// request is one utterance to transcribe.
type request struct {
	pcm        []byte
	sampleRate int
	channels   int
	language   string
	prompt     string
}

// inferFunc transcribes one utterance.
type inferFunc func(ctx context.Context, req request) (string, error)

// streamSession is the stt.SessionHandle shared by the HTTP and native
// providers. A single goroutine owns the segmenter and runs inference
// synchronously, so utterances are transcribed in order.
type streamSession struct {
	infer      inferFunc
	sampleRate int
	channels   int
	language   string
	seg        *segmenter

	promptMu sync.RWMutex
	prompt   string

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ stt.SessionHandle = (*streamSession)(nil)

func startSession(ctx context.Context, cfg stt.StreamConfig, defaults streamDefaults, infer inferFunc) (*streamSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = defaults.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = defaults.sampleRate
	}
	ch := cfg.Channels
	if ch <= 0 {
		ch = 1
	}

	s := &streamSession{
		infer:      infer,
		sampleRate: sr,
		channels:   ch,
		language:   lang,
		seg:        newSegmenter(defaults.segment, sr, ch),
		prompt:     promptFor(cfg.Keywords),
		audioCh:    make(chan []byte, 256),
		partials:   make(chan stt.Transcript, 64),
		finals:     make(chan stt.Transcript, 64),
		done:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.processLoop(ctx)
	return s, nil
}

// streamDefaults are the provider-level values a StreamConfig may override.
type streamDefaults struct {
	language   string
	sampleRate int
	segment    segmentConfig
}

// promptFor builds the initial prompt whisper is biased with. Listing the
// practice words makes rare words such as "autism" come back spelled as
// themselves.
func promptFor(keywords []stt.KeywordBoost) string {
	if len(keywords) == 0 {
		return ""
	}
	words := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if w := strings.TrimSpace(kw.Keyword); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, ", ")
}

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio for
// silence analysis and buffering. Calling SendAudio after Close returns an
// error.
func (s *streamSession) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errClosed
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errClosed
	}
}

// Partials emits each transcript once, immediately before its final.
// whisper.cpp is a batch engine and has no true interim results.
func (s *streamSession) Partials() <-chan stt.Transcript { return s.partials }

// Finals emits one transcript per detected utterance.
func (s *streamSession) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords replaces the prompt used for subsequent utterances.
func (s *streamSession) SetKeywords(keywords []stt.KeywordBoost) error {
	s.promptMu.Lock()
	s.prompt = promptFor(keywords)
	s.promptMu.Unlock()
	return nil
}

func (s *streamSession) currentPrompt() string {
	s.promptMu.RLock()
	defer s.promptMu.RUnlock()
	return s.prompt
}

// Close flushes pending speech for a last transcription, then closes the
// Partials and Finals channels. Calling Close more than once is safe.
func (s *streamSession) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *streamSession) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	finalFlush := func() {
		fc, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
		defer cancel()
		if pcm, ok := s.seg.flush(); ok {
			s.transcribe(fc, pcm, false)
		}
	}

	for {
		select {
		case <-ctx.Done():
			finalFlush()
			return
		case <-s.done:
			finalFlush()
			return
		case chunk := <-s.audioCh:
			if pcm, ok := s.seg.push(chunk); ok {
				s.transcribe(ctx, pcm, true)
			}
		}
	}
}

// transcribe runs inference and emits the result. When block is false the
// sends are best effort so shutdown never waits on an absent reader.
func (s *streamSession) transcribe(ctx context.Context, pcm []byte, block bool) {
	started := time.Now()
	text, err := s.infer(ctx, request{
		pcm:        pcm,
		sampleRate: s.sampleRate,
		channels:   s.channels,
		language:   s.language,
		prompt:     s.currentPrompt(),
	})
	if err != nil {
		slog.Warn("whisper: inference failed", "err", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	t := stt.Transcript{
		Text:     text,
		Duration: time.Duration(len(pcm)) * time.Second / time.Duration(s.sampleRate*s.channels*bitsPerSample/8),
	}
	slog.Debug("whisper: utterance transcribed", "text", text, "latency", time.Since(started))

	partial := t
	select {
	case s.partials <- partial:
	default:
	}

	t.IsFinal = true
	if !block {
		select {
		case s.finals <- t:
		default:
		}
		return
	}
	select {
	case s.finals <- t:
	case <-s.done:
	case <-ctx.Done():
	}
}

// computeRMS returns the root-mean-square energy of a 16-bit signed
// little-endian PCM buffer. Returns 0 for buffers shorter than one sample.
// The result is expressed in the same units as PCM sample values (0–32 767).
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// chunkDurationMs returns the duration of a PCM audio chunk in milliseconds,
// based on the sample rate and channel count. Returns 0 for invalid inputs.
func chunkDurationMs(chunk []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * channels * (bitsPerSample / 8)
	return len(chunk) * 1000 / bytesPerSec
}
