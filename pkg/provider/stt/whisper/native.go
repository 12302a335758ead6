// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/sayright/sayright/pkg/provider/stt"
)

// ErrModelNotFound is returned by [NewNative] when the model file does not
// exist.
var ErrModelNotFound = errors.New("whisper: model file not found")

// Compile-time assertion that NativeProvider satisfies stt.Provider.
var _ stt.Provider = (*NativeProvider)(nil)

// NativeProvider implements stt.Provider using the whisper.cpp Go bindings.
// The model is loaded once and shared by all sessions; each inference gets
// its own whisper context.
type NativeProvider struct {
	model    whisperlib.Model
	defaults streamDefaults
	threads  uint

	closeOnce sync.Once
	closeErr  error
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.defaults.language = lang }
}

// WithNativeSampleRate sets the audio sample rate in Hz used when the
// StreamConfig leaves it zero. Defaults to 16000.
func WithNativeSampleRate(rate int) NativeOption {
	return func(p *NativeProvider) { p.defaults.sampleRate = rate }
}

// WithNativeSilenceThresholdMs sets the consecutive-silence duration (ms)
// that ends an utterance. Defaults to 500 ms.
func WithNativeSilenceThresholdMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.defaults.segment.silenceThresholdMs = ms }
}

// WithNativeMaxBufferDurationMs sets the maximum buffered audio duration (ms)
// before a forced flush. Defaults to 10 000 ms (10 s).
func WithNativeMaxBufferDurationMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.defaults.segment.maxBufferDurationMs = ms }
}

// WithNativeThreads sets the number of CPU threads used per inference. Zero
// keeps the library default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative loads the whisper.cpp model at modelPath. A missing file is
// reported as [ErrModelNotFound] before the library is touched. The caller
// must call Close when the provider is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("whisper: stat model %q: %w", modelPath, err)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &NativeProvider{
		model: model,
		defaults: streamDefaults{
			language:   defaultLanguage,
			sampleRate: defaultSampleRate,
			segment:    defaultSegmentConfig(),
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. It is safe to call more than once.
func (p *NativeProvider) Close() error {
	p.closeOnce.Do(func() {
		if p.model != nil {
			p.closeErr = p.model.Close()
		}
	})
	return p.closeErr
}

// StartStream opens a new transcription session. It respects cfg.SampleRate,
// cfg.Channels, cfg.Language and cfg.Keywords.
func (p *NativeProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return startSession(ctx, cfg, p.defaults, p.infer)
}

// infer runs whisper.cpp on one utterance and returns the joined segment text.
func (p *NativeProvider) infer(ctx context.Context, req request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	samples := pcmToFloat32Mono(req.pcm, req.channels, req.sampleRate)

	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(req.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", req.language, "err", err)
	}
	if req.prompt != "" {
		wctx.SetInitialPrompt(req.prompt)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
