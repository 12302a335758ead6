package config_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/sayright/sayright/internal/config"
	"github.com/sayright/sayright/internal/evaluate"
	"github.com/sayright/sayright/internal/match"
	"github.com/sayright/sayright/pkg/provider/stt"
	"github.com/sayright/sayright/pkg/provider/tts"
)

const sampleYAML = `
log_level: debug

providers:
  stt:
    name: deepgram
    api_key: dg-key
    model: nova-3
    options:
      endpointing_ms: 300
  stt_fallbacks:
    - name: whisper
      base_url: http://localhost:8081
  tts:
    name: coqui
    base_url: http://localhost:5002
    options:
      api_mode: xtts

audio:
  sample_rate: 16000
  channels: 1
  playback_sample_rate: 24000

vocabulary:
  activation_keyword: start
  words:
    - word: hello
      hint: heh-LOH
    - word: python
      hint: PIE-thon

phonemes:
  source: cmudict
  path: /usr/share/cmudict/cmudict.dict

match:
  cutoff_regime: strict
  metric: jaro-winkler

evaluate:
  policy: overlap
  min_overlap: 0.75

feedback:
  print: true
  speak: false
  settle_delay: 1500ms
  voice:
    id: Ana Florence
    speed_factor: 0.9

observe:
  metrics_file: /tmp/sayright.prom
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q, want debug", cfg.LogLevel)
	}
	if cfg.Providers.STT.Name != "deepgram" || cfg.Providers.STT.APIKey != "dg-key" || cfg.Providers.STT.Model != "nova-3" {
		t.Errorf("providers.stt: got %+v", cfg.Providers.STT)
	}
	if v, ok := cfg.Providers.STT.Options["endpointing_ms"].(int); !ok || v != 300 {
		t.Errorf("providers.stt.options.endpointing_ms: got %#v", cfg.Providers.STT.Options["endpointing_ms"])
	}
	if len(cfg.Providers.STTFallbacks) != 1 || cfg.Providers.STTFallbacks[0].Name != "whisper" {
		t.Errorf("providers.stt_fallbacks: got %+v", cfg.Providers.STTFallbacks)
	}
	if cfg.Audio.PlaybackSampleRate != 24000 {
		t.Errorf("audio.playback_sample_rate: got %d", cfg.Audio.PlaybackSampleRate)
	}
	if cfg.Vocabulary.ActivationKeyword != "start" {
		t.Errorf("vocabulary.activation_keyword: got %q", cfg.Vocabulary.ActivationKeyword)
	}
	if len(cfg.Vocabulary.Words) != 2 || cfg.Vocabulary.Words[1].Hint != "PIE-thon" {
		t.Errorf("vocabulary.words: got %+v", cfg.Vocabulary.Words)
	}
	if cfg.Phonemes.Source != config.PhonemesCMUDict {
		t.Errorf("phonemes.source: got %q", cfg.Phonemes.Source)
	}
	if cfg.Match.EffectiveCutoff() != match.StrictCutoff || cfg.Match.Metric != match.MetricJaroWinkler {
		t.Errorf("match: got %+v", cfg.Match)
	}
	if cfg.Evaluate.Policy != evaluate.PolicyOverlap || cfg.Evaluate.MinOverlap != 0.75 {
		t.Errorf("evaluate: got %+v", cfg.Evaluate)
	}
	if !cfg.Feedback.PrintEnabled() || cfg.Feedback.SpeakEnabled() {
		t.Errorf("feedback print/speak: got %v/%v", cfg.Feedback.PrintEnabled(), cfg.Feedback.SpeakEnabled())
	}
	if cfg.Feedback.Settle() != 1500*time.Millisecond {
		t.Errorf("feedback.settle_delay: got %v", cfg.Feedback.Settle())
	}
	if cfg.Feedback.Voice.ID != "Ana Florence" || cfg.Feedback.Voice.SpeedFactor != 0.9 {
		t.Errorf("feedback.voice: got %+v", cfg.Feedback.Voice)
	}
	if cfg.Observe.MetricsFile != "/tmp/sayright.prom" {
		t.Errorf("observe.metrics_file: got %q", cfg.Observe.MetricsFile)
	}
}

func TestLoadFromReader_EmptyGetsDefaults(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"", "{}", "# nothing here\n"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("LoadFromReader(%q): %v", doc, err)
		}
		def := config.Default()
		if cfg.LogLevel != config.LogInfo ||
			cfg.Providers.STT.Name != "whisper" ||
			cfg.Providers.TTS.Name != "coqui" ||
			cfg.Audio.SampleRate != config.DefaultSampleRate ||
			cfg.Audio.PlaybackSampleRate != config.DefaultPlaybackSampleRate ||
			cfg.Vocabulary.ActivationKeyword != "begin" ||
			cfg.Phonemes.Source != config.PhonemesBuiltin ||
			cfg.Match.EffectiveCutoff() != match.LooseCutoff ||
			cfg.Evaluate.Policy != evaluate.PolicyFirstPhoneme ||
			cfg.Feedback.Settle() != config.DefaultSettleDelay ||
			cfg.Feedback.Voice.SpeedFactor != 1.0 {
			t.Errorf("LoadFromReader(%q) defaults: got %+v", doc, cfg)
		}
		if !slices.Equal(cfg.Audio.CaptureCommand, def.Audio.CaptureCommand) {
			t.Errorf("capture_command: got %v", cfg.Audio.CaptureCommand)
		}
		if !cfg.Feedback.PrintEnabled() || !cfg.Feedback.SpeakEnabled() {
			t.Error("print and speak should default to on")
		}
	}
}

func TestApplyDefaults_DoesNotShareSlices(t *testing.T) {
	t.Parallel()

	a := config.Default()
	a.Audio.CaptureCommand[0] = "parecord"
	if config.DefaultCaptureCommand[0] != "arecord" {
		t.Fatal("ApplyDefaults aliased DefaultCaptureCommand")
	}
}

func TestMatchConfig_ExplicitCutoffWins(t *testing.T) {
	t.Parallel()

	m := config.MatchConfig{CutoffRegime: match.Strict, Cutoff: 0.6}
	if got := m.EffectiveCutoff(); got != 0.6 {
		t.Errorf("EffectiveCutoff = %v, want 0.6", got)
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

type stubSTT struct{}

func (stubSTT) StartStream(context.Context, stt.StreamConfig) (stt.SessionHandle, error) {
	return nil, nil
}

type stubTTS struct{}

func (stubTTS) SynthesizeStream(context.Context, <-chan string, tts.VoiceProfile) (<-chan []byte, error) {
	return nil, nil
}
func (stubTTS) ListVoices(context.Context) ([]tts.VoiceProfile, error) { return nil, nil }

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	if _, err := reg.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT: got %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateTTS: got %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	var got config.ProviderEntry
	reg.RegisterSTT("whisper", func(e config.ProviderEntry) (stt.Provider, error) {
		got = e
		return stubSTT{}, nil
	})
	reg.RegisterSTT("deepgram", func(config.ProviderEntry) (stt.Provider, error) { return stubSTT{}, nil })
	reg.RegisterTTS("coqui", func(config.ProviderEntry) (tts.Provider, error) { return stubTTS{}, nil })

	p, err := reg.CreateSTT(config.ProviderEntry{Name: "whisper", BaseURL: "http://x"})
	if err != nil || p == nil {
		t.Fatalf("CreateSTT: %v, %v", p, err)
	}
	if got.BaseURL != "http://x" {
		t.Errorf("factory got entry %+v", got)
	}
	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "coqui"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
	if names := reg.STTNames(); !slices.Equal(names, []string{"deepgram", "whisper"}) {
		t.Errorf("STTNames = %v", names)
	}
	if names := reg.TTSNames(); !slices.Equal(names, []string{"coqui"}) {
		t.Errorf("TTSNames = %v", names)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	boom := errors.New("boom")
	reg.RegisterTTS("bad", func(config.ProviderEntry) (tts.Provider, error) { return nil, boom })
	if _, err := reg.CreateTTS(config.ProviderEntry{Name: "bad"}); !errors.Is(err, boom) {
		t.Errorf("CreateTTS: got %v, want boom", err)
	}
}
