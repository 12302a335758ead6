// Package app wires the sayright subsystems into a running practice session.
//
// The App struct owns the full lifecycle: New opens the phoneme dictionary,
// loads the vocabulary and assembles the feedback chain, Run streams captured
// audio to the recogniser and feeds its transcripts to the session, and
// Shutdown releases everything in order.
//
// For testing, inject test doubles via functional options (WithSource,
// WithPlayer, WithOutput, ...). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sayright/sayright/internal/config"
	"github.com/sayright/sayright/internal/evaluate"
	"github.com/sayright/sayright/internal/feedback"
	"github.com/sayright/sayright/internal/match"
	"github.com/sayright/sayright/internal/observe"
	"github.com/sayright/sayright/internal/phoneme"
	"github.com/sayright/sayright/internal/phoneme/sqlitedict"
	"github.com/sayright/sayright/internal/session"
	"github.com/sayright/sayright/internal/vocab"
	"github.com/sayright/sayright/pkg/audio"
	"github.com/sayright/sayright/pkg/provider/stt"
	"github.com/sayright/sayright/pkg/provider/tts"
)

// keywordBoost is the boost given to every vocabulary word sent to the
// recogniser as a keyword.
const keywordBoost = 2

// Providers holds the recogniser and synthesiser. A nil TTS means feedback is
// only printed. Populated by [BuildProviders] or directly in tests.
type Providers struct {
	STT stt.Provider
	TTS tts.Provider

	// STTName and TTSName label metrics and logs.
	STTName string
	TTSName string

	closers []io.Closer
}

func (p *Providers) track(v any) {
	if c, ok := v.(io.Closer); ok {
		p.closers = append(p.closers, c)
	}
}

// Close releases providers that hold resources, such as a loaded model.
func (p *Providers) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// App owns all subsystem lifetimes and runs one practice session.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems: initialised in New, torn down in Shutdown.
	dict      phoneme.Dictionary
	vocab     *vocab.Vocabulary
	matcher   *match.Matcher
	evaluator *evaluate.Evaluator
	session   *session.Session
	source    audio.Source
	player    audio.Player
	gate      feedback.Gate
	metrics   *observe.Metrics
	stdout    io.Writer

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithSource injects the audio capture source instead of running the
// configured capture command.
func WithSource(s audio.Source) Option {
	return func(a *App) { a.source = s }
}

// WithPlayer injects the audio player instead of running the configured
// playback command.
func WithPlayer(p audio.Player) Option {
	return func(a *App) { a.player = p }
}

// WithOutput sets where printed feedback and transcripts go. Default: stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

// WithMetrics sets the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithDictionary injects the phoneme dictionary instead of opening the
// configured one.
func WithDictionary(d phoneme.Dictionary) Option {
	return func(a *App) { a.dict = d }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// A vocabulary problem is fatal and wraps [vocab.ErrConfiguration]. A phoneme
// dictionary that cannot be opened or queried is logged as a warning and the
// session runs lexical-only.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		stdout:    os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Phoneme dictionary ────────────────────────────────────────────
	if a.dict == nil {
		a.initDictionary()
	}

	// ── 2. Vocabulary ────────────────────────────────────────────────────
	if err := a.initVocabulary(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init vocabulary: %w", err)
	}

	// ── 3. Feedback chain ────────────────────────────────────────────────
	sink := a.initFeedback()

	// ── 4. Session ───────────────────────────────────────────────────────
	a.matcher = match.New(match.WithMetric(cfg.Match.Metric))
	a.evaluator = evaluate.New(a.dict,
		evaluate.WithPolicy(cfg.Evaluate.Policy),
		evaluate.WithMinOverlap(cfg.Evaluate.MinOverlap),
		evaluate.WithIgnoreStress(cfg.Evaluate.IgnoreStress),
	)
	sessOpts := []session.Option{
		session.WithActivationKeyword(cfg.Vocabulary.ActivationKeyword),
		session.WithCutoff(cfg.Match.EffectiveCutoff()),
		session.WithMetrics(a.metrics),
	}
	if cfg.Feedback.PrintEnabled() {
		sessOpts = append(sessOpts, session.WithTranscript(a.stdout))
	}
	a.session = session.New(a.vocab, a.matcher, a.evaluator, sink, sessOpts...)

	// ── 5. Audio capture ─────────────────────────────────────────────────
	if a.source == nil && a.providers.STT != nil && !a.scripted() {
		a.source = audio.NewCommandSource(cfg.Audio.CaptureCommand, a.captureFormat())
	}
	if a.source != nil {
		a.closers = append(a.closers, a.source.Close)
	}
	a.closers = append(a.closers, a.providers.Close)

	slog.Info("practice session ready",
		"words", a.vocab.Words(),
		"keyword", a.session.ActivationKeyword(),
		"cutoff", cfg.Match.EffectiveCutoff(),
		"lexical_only", a.vocab.LexicalOnly(),
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initDictionary opens the configured phoneme source. Failures leave a.dict
// nil.
func (a *App) initDictionary() {
	src := a.cfg.Phonemes
	switch src.Source {
	case config.PhonemesNone:
		slog.Info("phoneme evaluation disabled")
	case config.PhonemesCMUDict:
		mem, stats, err := phoneme.LoadCMU(src.Path)
		if err != nil {
			slog.Warn("continuing lexical-only", "err", fmt.Errorf("%w: %w", vocab.ErrPhonemesUnavailable, err))
			return
		}
		slog.Info("loaded cmu dictionary", "path", src.Path, "words", stats.UniqueWords, "lines", stats.TotalLines)
		a.dict = mem
	case config.PhonemesSQLite:
		db, err := sqlitedict.Open(src.Path)
		if err != nil {
			slog.Warn("continuing lexical-only", "err", fmt.Errorf("%w: %w", vocab.ErrPhonemesUnavailable, err))
			return
		}
		a.dict = db
		a.closers = append(a.closers, db.Close)
	default:
		a.dict = phoneme.Builtin()
	}
}

// initVocabulary loads the configured words, or the built-in set when none
// are listed.
func (a *App) initVocabulary(ctx context.Context) error {
	words := make([]vocab.Word, 0, len(a.cfg.Vocabulary.Words))
	for _, w := range a.cfg.Vocabulary.Words {
		words = append(words, vocab.Word{Word: w.Word, Hint: w.Hint})
	}
	if len(words) == 0 {
		words = vocab.DefaultWords()
	}

	v, err := vocab.Load(ctx, words, a.dict)
	if errors.Is(err, vocab.ErrPhonemesUnavailable) && v != nil {
		slog.Warn("continuing lexical-only", "err", err)
		a.dict = nil
		err = nil
	}
	if err != nil {
		return err
	}
	a.vocab = v
	return nil
}

// initFeedback builds Console and Speaker sinks, fans out to them and mutes
// capture while they present.
func (a *App) initFeedback() feedback.Sink {
	fc := a.cfg.Feedback
	var sinks []feedback.Sink
	if fc.PrintEnabled() {
		sinks = append(sinks, feedback.NewConsole(a.stdout))
	}
	if fc.SpeakEnabled() && a.providers.TTS != nil {
		if a.player == nil {
			a.player = audio.NewCommandPlayer(a.cfg.Audio.PlaybackCommand)
		}
		sinks = append(sinks, feedback.NewSpeaker(a.providers.TTS, a.player, a.playbackFormat(),
			feedback.WithVoice(tts.VoiceProfile{
				ID:          fc.Voice.ID,
				Provider:    a.providers.TTSName,
				SpeedFactor: fc.Voice.SpeedFactor,
			}),
			feedback.WithSpeakerMetrics(a.metrics, a.providers.TTSName),
		))
	}
	if len(sinks) == 0 {
		slog.Warn("feedback is neither printed nor spoken")
	}
	return feedback.NewGated(feedback.NewMulti(fc.Settle(), sinks...), &a.gate)
}

func (a *App) scripted() bool { return a.providers.STTName == "text" }

func (a *App) captureFormat() audio.Format {
	return audio.Format{SampleRate: a.cfg.Audio.SampleRate, Channels: a.cfg.Audio.Channels}
}

func (a *App) playbackFormat() audio.Format {
	return audio.Format{SampleRate: a.cfg.Audio.PlaybackSampleRate, Channels: 1}
}

// Vocabulary returns the loaded vocabulary.
func (a *App) Vocabulary() *vocab.Vocabulary { return a.vocab }

// Session returns the practice session.
func (a *App) Session() *session.Session { return a.session }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run opens a recognition stream and runs the session until ctx is cancelled
// or recognition ends. A stream that cannot be opened, or that ends, yields
// an error wrapping [session.ErrRecognitionUnavailable]. With the "text"
// recogniser the end of input is a clean exit.
func (a *App) Run(ctx context.Context) error {
	if a.providers.STT == nil {
		return fmt.Errorf("%w: no stt provider configured", session.ErrRecognitionUnavailable)
	}

	keywords := make([]stt.KeywordBoost, 0, a.vocab.Len())
	for _, w := range a.vocab.Words() {
		keywords = append(keywords, stt.KeywordBoost{Keyword: w, Boost: keywordBoost})
	}
	sttSession, err := a.providers.STT.StartStream(ctx, stt.StreamConfig{
		SampleRate: a.cfg.Audio.SampleRate,
		Channels:   1,
		Keywords:   keywords,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", session.ErrRecognitionUnavailable, err)
	}
	defer sttSession.Close()

	g, gctx := errgroup.WithContext(ctx)

	if a.source != nil {
		frames, err := a.source.Start(gctx)
		if err != nil {
			return fmt.Errorf("%w: start capture: %w", session.ErrRecognitionUnavailable, err)
		}
		g.Go(func() error { return a.pumpAudio(gctx, frames, sttSession) })
	}

	utterances := make(chan session.Utterance)
	g.Go(func() error { return forwardFinals(gctx, sttSession, utterances) })
	g.Go(func() error { return a.session.Run(gctx, utterances) })

	err = g.Wait()
	if errors.Is(err, session.ErrRecognitionUnavailable) && a.scripted() && ctx.Err() == nil {
		slog.Info("end of scripted input")
		return nil
	}
	return err
}

// pumpAudio forwards captured frames to the recogniser. Frames captured while
// feedback is being presented are discarded so the program does not hear
// itself.
func (a *App) pumpAudio(ctx context.Context, frames <-chan audio.Frame, sess stt.SessionHandle) error {
	conv := &audio.Converter{Target: audio.Format{SampleRate: a.cfg.Audio.SampleRate, Channels: 1}}
	var sendFailed bool
	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-frames:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if err := a.source.Close(); err != nil {
					return fmt.Errorf("%w: audio capture: %w", session.ErrRecognitionUnavailable, err)
				}
				return fmt.Errorf("%w: audio capture ended", session.ErrRecognitionUnavailable)
			}
			if a.gate.Muted() {
				continue
			}
			frame = conv.Convert(frame)
			if len(frame.Data) == 0 {
				continue
			}
			if err := sess.SendAudio(frame.Data); err != nil {
				if !sendFailed {
					slog.Warn("stt send error", "err", err)
				}
				sendFailed = true
				continue
			}
			sendFailed = false
		}
	}
}

// forwardFinals turns final transcripts into utterances. out is closed when
// the recogniser closes its Finals channel.
func forwardFinals(ctx context.Context, sess stt.SessionHandle, out chan<- session.Utterance) error {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-sess.Finals():
			if !ok {
				return nil
			}
			slog.Debug("final transcript", "text", t.Text, "confidence", t.Confidence)
			select {
			case out <- session.Utterance{Text: t.Text}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far after a failed New.
func (a *App) closeAll() {
	for _, c := range a.closers {
		_ = c()
	}
	a.closers = nil
}
