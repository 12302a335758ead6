package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sayright/sayright/internal/observe"
	"github.com/sayright/sayright/pkg/audio"
	"github.com/sayright/sayright/pkg/provider/tts"
)

// ErrNoAudio is returned by [Speaker.Present] when synthesis produced no
// audio at all.
var ErrNoAudio = errors.New("feedback: synthesis produced no audio")

// Console prints messages to a writer, one per line, prefixed with a speaker
// emoji.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

var _ Sink = (*Console)(nil)

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Present implements [Sink].
func (c *Console) Present(_ context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.w, "🔊 %s\n", message)
	return err
}

// SpeakerOption configures a [Speaker].
type SpeakerOption func(*Speaker)

// WithVoice sets the voice profile passed to the TTS provider.
func WithVoice(v tts.VoiceProfile) SpeakerOption {
	return func(s *Speaker) { s.voice = v }
}

// WithSpeakerMetrics records synthesis latency and provider outcomes under
// the given provider name.
func WithSpeakerMetrics(m *observe.Metrics, provider string) SpeakerOption {
	return func(s *Speaker) {
		s.metrics = m
		s.providerName = provider
	}
}

// Speaker speaks messages through a TTS provider and an audio player.
type Speaker struct {
	provider     tts.Provider
	player       audio.Player
	format       audio.Format
	voice        tts.VoiceProfile
	metrics      *observe.Metrics
	providerName string
}

var _ Sink = (*Speaker)(nil)

// NewSpeaker returns a Speaker that synthesises with p and plays the result on
// player. format is the PCM format p produces.
func NewSpeaker(p tts.Provider, player audio.Player, format audio.Format, opts ...SpeakerOption) *Speaker {
	s := &Speaker{provider: p, player: player, format: format, providerName: "tts"}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Present implements [Sink]. It returns once playback has finished.
func (s *Speaker) Present(ctx context.Context, message string) error {
	start := time.Now()
	text := make(chan string, 1)
	text <- message
	close(text)

	pcm, err := s.provider.SynthesizeStream(ctx, text, s.voice)
	if err != nil {
		s.record(ctx, start, err)
		return fmt.Errorf("feedback: synthesize: %w", err)
	}

	var n atomic.Int64
	counted := make(chan []byte)
	go func() {
		defer close(counted)
		for chunk := range pcm {
			n.Add(int64(len(chunk)))
			counted <- chunk
		}
	}()

	err = s.player.Play(ctx, s.format, counted)
	audio.Drain(counted)
	switch {
	case err != nil:
		err = fmt.Errorf("feedback: play: %w", err)
	case n.Load() == 0 && ctx.Err() == nil:
		err = ErrNoAudio
	}
	s.record(ctx, start, err)
	return err
}

func (s *Speaker) record(ctx context.Context, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if err != nil {
		s.metrics.RecordProviderRequest(ctx, s.providerName, "tts", "error")
		s.metrics.RecordProviderError(ctx, s.providerName, "tts")
		return
	}
	s.metrics.RecordProviderRequest(ctx, s.providerName, "tts", "ok")
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
}

// Multi presents each message to several sinks in order and then waits for
// the settle delay. A failing sink never prevents the others from running;
// its failure is logged once per run of consecutive failures.
type Multi struct {
	sinks  []Sink
	settle time.Duration

	mu      sync.Mutex
	failing []bool
}

var _ Sink = (*Multi)(nil)

// NewMulti returns a Multi over sinks with the given settle delay.
func NewMulti(settle time.Duration, sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, settle: settle, failing: make([]bool, len(sinks))}
}

// Present implements [Sink]. It only returns an error when ctx is cancelled.
func (m *Multi) Present(ctx context.Context, message string) error {
	for i, s := range m.sinks {
		err := s.Present(ctx, message)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.track(i, s, err)
	}
	if m.settle <= 0 {
		return nil
	}
	t := time.NewTimer(m.settle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Multi) track(i int, s Sink, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sink := fmt.Sprintf("%T", s)
	switch {
	case err != nil && !m.failing[i]:
		m.failing[i] = true
		slog.Warn("feedback: sink failed, continuing without it until it recovers", "sink", sink, "err", err)
	case err != nil:
		slog.Debug("feedback: sink still failing", "sink", sink, "err", err)
	case m.failing[i]:
		m.failing[i] = false
		slog.Info("feedback: sink recovered", "sink", sink)
	}
}

// Gate reports whether feedback is currently being presented. The zero value
// is open.
type Gate struct {
	closed atomic.Int32
}

// Muted reports whether captured audio should currently be discarded.
func (g *Gate) Muted() bool {
	return g.closed.Load() > 0
}

// Gated wraps a sink and keeps a [Gate] muted while it presents.
type Gated struct {
	sink Sink
	gate *Gate
}

var _ Sink = (*Gated)(nil)

// NewGated returns a Gated sink.
func NewGated(sink Sink, gate *Gate) *Gated {
	return &Gated{sink: sink, gate: gate}
}

// Present implements [Sink].
func (g *Gated) Present(ctx context.Context, message string) error {
	g.gate.closed.Add(1)
	defer g.gate.closed.Add(-1)
	return g.sink.Present(ctx, message)
}
