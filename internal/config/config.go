// Package config provides the configuration schema, loader, and provider registry
// for the sayright pronunciation trainer.
package config

import (
	"time"

	"github.com/sayright/sayright/internal/evaluate"
	"github.com/sayright/sayright/internal/match"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// PhonemeSource selects where phoneme sequences come from.
type PhonemeSource string

const (
	// PhonemesBuiltin uses the embedded table covering the default vocabulary.
	PhonemesBuiltin PhonemeSource = "builtin"

	// PhonemesCMUDict loads a CMU pronouncing dictionary text file.
	PhonemesCMUDict PhonemeSource = "cmudict"

	// PhonemesSQLite opens a database built by "sayright dict import".
	PhonemesSQLite PhonemeSource = "sqlite"

	// PhonemesNone disables phoneme-aware evaluation.
	PhonemesNone PhonemeSource = "none"
)

// IsValid reports whether s is a recognised phoneme source.
func (s PhonemeSource) IsValid() bool {
	switch s {
	case PhonemesBuiltin, PhonemesCMUDict, PhonemesSQLite, PhonemesNone:
		return true
	}
	return false
}

// NeedsPath reports whether s reads from a file.
func (s PhonemeSource) NeedsPath() bool {
	return s == PhonemesCMUDict || s == PhonemesSQLite
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	LogLevel   LogLevel         `yaml:"log_level"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Audio      AudioConfig      `yaml:"audio"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Phonemes   PhonemesConfig   `yaml:"phonemes"`
	Match      MatchConfig      `yaml:"match"`
	Evaluate   EvaluateConfig   `yaml:"evaluate"`
	Feedback   FeedbackConfig   `yaml:"feedback"`
	Observe    ObserveConfig    `yaml:"observe"`
}

// ProvidersConfig declares which provider implementation to use for speech
// recognition and synthesis. Each entry selects a named provider registered
// in the [Registry]. Fallback entries are tried in order when the primary
// provider fails.
type ProvidersConfig struct {
	STT          ProviderEntry   `yaml:"stt"`
	TTS          ProviderEntry   `yaml:"tts"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "whisper", "coqui").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "base.en", "nova-2").
	// For whisper-native it is the path to the ggml model file.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// AudioConfig describes microphone capture and speaker playback.
type AudioConfig struct {
	// SampleRate is the capture sample rate in Hz and the rate sent to STT.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the capture channel count.
	Channels int `yaml:"channels"`

	// CaptureCommand produces raw signed 16-bit little-endian PCM on stdout.
	CaptureCommand []string `yaml:"capture_command"`

	// PlaybackCommand consumes raw PCM on stdin. "{rate}" and "{channels}"
	// are substituted with the playback format.
	PlaybackCommand []string `yaml:"playback_command"`

	// PlaybackSampleRate is the PCM rate the TTS provider produces.
	PlaybackSampleRate int `yaml:"playback_sample_rate"`
}

// VocabularyConfig lists the target words.
type VocabularyConfig struct {
	ActivationKeyword string       `yaml:"activation_keyword"`
	Words             []WordConfig `yaml:"words"`
}

// WordConfig is one target word with its optional pronunciation hint.
type WordConfig struct {
	Word string `yaml:"word"`
	Hint string `yaml:"hint"`
}

// PhonemesConfig selects the phoneme dictionary.
type PhonemesConfig struct {
	Source PhonemeSource `yaml:"source"`
	Path   string        `yaml:"path"`
}

// MatchConfig configures the fuzzy matcher.
type MatchConfig struct {
	// CutoffRegime picks a preset cutoff. Ignored when Cutoff > 0.
	CutoffRegime match.Regime `yaml:"cutoff_regime"`

	// Cutoff is an explicit acceptance threshold in (0, 1].
	Cutoff float64 `yaml:"cutoff"`

	// Metric selects the similarity metric.
	Metric match.Metric `yaml:"metric"`
}

// EffectiveCutoff returns Cutoff when set, otherwise the regime's cutoff.
func (m MatchConfig) EffectiveCutoff() float64 {
	if m.Cutoff > 0 {
		return m.Cutoff
	}
	return m.CutoffRegime.Cutoff()
}

// EvaluateConfig configures partial-credit evaluation.
type EvaluateConfig struct {
	Policy     evaluate.Policy `yaml:"policy"`
	MinOverlap float64         `yaml:"min_overlap"`

	// IgnoreStress drops vowel stress digits in first-phoneme comparisons.
	IgnoreStress bool `yaml:"ignore_stress"`
}

// FeedbackConfig configures how feedback is presented.
type FeedbackConfig struct {
	// Print writes each message to stdout.
	Print *bool `yaml:"print"`

	// Speak synthesises each message through the TTS provider.
	Speak *bool `yaml:"speak"`

	// SettleDelay is waited after each message before listening again.
	// Nil means [DefaultSettleDelay]; an explicit 0 disables the pause.
	SettleDelay *time.Duration `yaml:"settle_delay"`

	// Voice is passed to the TTS provider.
	Voice VoiceConfig `yaml:"voice"`
}

// PrintEnabled reports whether console output is on. Default: true.
func (f FeedbackConfig) PrintEnabled() bool { return f.Print == nil || *f.Print }

// SpeakEnabled reports whether spoken output is on. Default: true.
func (f FeedbackConfig) SpeakEnabled() bool { return f.Speak == nil || *f.Speak }

// Settle returns the configured settle delay or [DefaultSettleDelay].
func (f FeedbackConfig) Settle() time.Duration {
	if f.SettleDelay == nil {
		return DefaultSettleDelay
	}
	return *f.SettleDelay
}

// VoiceConfig specifies the TTS voice parameters.
type VoiceConfig struct {
	// ID is the provider-specific voice identifier.
	ID string `yaml:"id"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 1.0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// ObserveConfig configures metrics export.
type ObserveConfig struct {
	// MetricsFile is written in Prometheus text format on shutdown. Empty
	// disables the snapshot.
	MetricsFile string `yaml:"metrics_file"`
}
