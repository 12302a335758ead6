package app

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/sayright/sayright/internal/config"
	"github.com/sayright/sayright/internal/observe"
	"github.com/sayright/sayright/internal/resilience"
	"github.com/sayright/sayright/internal/vocab"
	"github.com/sayright/sayright/pkg/audio"
	"github.com/sayright/sayright/pkg/provider/stt"
	"github.com/sayright/sayright/pkg/provider/stt/deepgram"
	"github.com/sayright/sayright/pkg/provider/stt/text"
	"github.com/sayright/sayright/pkg/provider/stt/whisper"
	"github.com/sayright/sayright/pkg/provider/tts"
	"github.com/sayright/sayright/pkg/provider/tts/coqui"
	"github.com/sayright/sayright/pkg/provider/tts/elevenlabs"
)

// Local server addresses used when a provider entry has no base_url.
const (
	defaultWhisperURL = "http://localhost:8080"
	defaultCoquiURL   = "http://localhost:5002"
)

// ProviderDeps carries the process resources provider factories need.
type ProviderDeps struct {
	// Stdin feeds the "text" STT provider.
	Stdin io.Reader

	// CaptureRate is the sample rate audio is sent to STT at.
	CaptureRate int

	// Playback is the PCM format TTS providers are asked to produce.
	Playback audio.Format
}

// RegisterBuiltinProviders wires every provider shipped with sayright into reg.
func RegisterBuiltinProviders(reg *config.Registry, deps ProviderDeps) {
	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []deepgram.Option{deepgram.WithKeepAlive(5 * time.Second)}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if deps.CaptureRate > 0 {
			opts = append(opts, deepgram.WithSampleRate(deps.CaptureRate))
		}
		if ms := optInt(entry.Options, "endpointing_ms"); ms > 0 {
			opts = append(opts, deepgram.WithEndpointing(time.Duration(ms)*time.Millisecond))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if deps.CaptureRate > 0 {
			opts = append(opts, whisper.WithSampleRate(deps.CaptureRate))
		}
		if ms := optInt(entry.Options, "silence_threshold_ms"); ms > 0 {
			opts = append(opts, whisper.WithSilenceThresholdMs(ms))
		}
		return whisper.New(cmp.Or(entry.BaseURL, defaultWhisperURL), opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if deps.CaptureRate > 0 {
			opts = append(opts, whisper.WithNativeSampleRate(deps.CaptureRate))
		}
		p, err := whisper.NewNative(modelPath, opts...)
		if errors.Is(err, whisper.ErrModelNotFound) {
			return nil, fmt.Errorf("%w: %w", vocab.ErrConfiguration, err)
		}
		return p, err
	})

	reg.RegisterSTT("text", func(config.ProviderEntry) (stt.Provider, error) {
		if deps.Stdin == nil {
			return nil, errors.New("text: no input reader")
		}
		return text.New(deps.Stdin), nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if deps.Playback.SampleRate > 0 {
			opts = append(opts, coqui.WithOutputFormat(deps.Playback))
		}
		return coqui.New(cmp.Or(entry.BaseURL, defaultCoquiURL), opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		if deps.Playback.SampleRate > 0 {
			opts = append(opts, elevenlabs.WithSampleRate(deps.Playback.SampleRate))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	slog.Debug("registered providers", "stt", reg.STTNames(), "tts", reg.TTSNames())
}

// BuildProviders instantiates the providers named in cfg. Configured
// fallbacks wrap the primary in a [resilience] group. No TTS provider is
// created when spoken feedback is disabled.
func BuildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*Providers, error) {
	ps := &Providers{}

	if name := cfg.Providers.STT.Name; name != "" {
		primary, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("create stt provider %q: %w", name, err)
		}
		ps.track(primary)
		ps.STT, ps.STTName = primary, name
		slog.Info("provider created", "kind", "stt", "name", name)

		if len(cfg.Providers.STTFallbacks) > 0 {
			group := resilience.NewSTTFallback(primary, name, resilience.FallbackConfig{Kind: "stt", Metrics: metrics})
			for _, entry := range cfg.Providers.STTFallbacks {
				p, err := reg.CreateSTT(entry)
				if err != nil {
					slog.Warn("skipping stt fallback", "name", entry.Name, "err", err)
					continue
				}
				ps.track(p)
				group.AddFallback(entry.Name, p)
			}
			ps.STT = group
			slog.Info("stt failover order", "providers", group.Names())
		}
	}

	if name := cfg.Providers.TTS.Name; name != "" && cfg.Feedback.SpeakEnabled() {
		primary, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("create tts provider %q: %w", name, err)
		}
		ps.track(primary)
		ps.TTS, ps.TTSName = primary, name
		slog.Info("provider created", "kind", "tts", "name", name)

		if len(cfg.Providers.TTSFallbacks) > 0 {
			group := resilience.NewTTSFallback(primary, name, resilience.FallbackConfig{Kind: "tts", Metrics: metrics})
			for _, entry := range cfg.Providers.TTSFallbacks {
				p, err := reg.CreateTTS(entry)
				if err != nil {
					slog.Warn("skipping tts fallback", "name", entry.Name, "err", err)
					continue
				}
				ps.track(p)
				group.AddFallback(entry.Name, p)
			}
			ps.TTS = group
			slog.Info("tts failover order", "providers", group.Names())
		}
	}

	return ps, nil
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer from a provider Options map. YAML numbers decode
// as int; numeric strings are accepted too. Returns 0 when absent or invalid.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}
