package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sayright/sayright/internal/evaluate"
	"github.com/sayright/sayright/internal/match"
	"github.com/sayright/sayright/internal/session"
	"github.com/sayright/sayright/internal/vocab"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native", "deepgram", "text"},
	"tts": {"coqui", "elevenlabs"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultSampleRate         = 16000
	DefaultPlaybackSampleRate = 22050
	DefaultSettleDelay        = time.Second
)

// DefaultCaptureCommand records mono 16 kHz PCM with ALSA.
var DefaultCaptureCommand = []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"}

// DefaultPlaybackCommand plays raw PCM with ALSA.
var DefaultPlaybackCommand = []string{"aplay", "-q", "-f", "S16_LE", "-r", "{rate}", "-c", "{channels}", "-t", "raw"}

// LoadDotEnv loads environment variables from the given .env files, or from
// ./.env when none are named. Missing files are not an error. Variables that
// are already set are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("config: load env: %w", err)
	}
	return nil
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references from
// the environment, applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default applied. It is what an empty
// YAML document decodes to.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields of cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Providers.STT.Name == "" {
		cfg.Providers.STT.Name = "whisper"
	}
	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = "coqui"
	}

	a := &cfg.Audio
	if a.SampleRate == 0 {
		a.SampleRate = DefaultSampleRate
	}
	if a.Channels == 0 {
		a.Channels = 1
	}
	if len(a.CaptureCommand) == 0 {
		a.CaptureCommand = slices.Clone(DefaultCaptureCommand)
	}
	if len(a.PlaybackCommand) == 0 {
		a.PlaybackCommand = slices.Clone(DefaultPlaybackCommand)
	}
	if a.PlaybackSampleRate == 0 {
		a.PlaybackSampleRate = DefaultPlaybackSampleRate
	}

	if cfg.Vocabulary.ActivationKeyword == "" {
		cfg.Vocabulary.ActivationKeyword = session.DefaultActivationKeyword
	}
	if cfg.Phonemes.Source == "" {
		cfg.Phonemes.Source = PhonemesBuiltin
	}
	if cfg.Match.CutoffRegime == "" {
		cfg.Match.CutoffRegime = match.Loose
	}
	if cfg.Match.Metric == "" {
		cfg.Match.Metric = match.MetricRatio
	}
	if cfg.Evaluate.Policy == "" {
		cfg.Evaluate.Policy = evaluate.PolicyFirstPhoneme
	}
	if cfg.Evaluate.MinOverlap == 0 {
		cfg.Evaluate.MinOverlap = 0.6
	}
	if cfg.Feedback.Voice.SpeedFactor == 0 {
		cfg.Feedback.Voice.SpeedFactor = 1.0
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Providers
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
		}
		validateProviderName("stt", fb.Name)
	}
	for i, fb := range cfg.Providers.TTSFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is required", i))
		}
		validateProviderName("tts", fb.Name)
	}
	if cfg.Feedback.SpeakEnabled() && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("feedback.speak requires providers.tts to be configured"))
	}
	if !cfg.Feedback.PrintEnabled() && !cfg.Feedback.SpeakEnabled() {
		slog.Warn("feedback.print and feedback.speak are both disabled; feedback will only be logged")
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels < 0 || cfg.Audio.Channels > 8 {
		errs = append(errs, fmt.Errorf("audio.channels %d is out of range [1, 8]", cfg.Audio.Channels))
	}
	if cfg.Audio.PlaybackSampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.playback_sample_rate %d must be positive", cfg.Audio.PlaybackSampleRate))
	}

	// Vocabulary
	if kw := strings.TrimSpace(cfg.Vocabulary.ActivationKeyword); strings.ContainsFunc(kw, isSpace) {
		errs = append(errs, fmt.Errorf("vocabulary.activation_keyword %q must be a single word", cfg.Vocabulary.ActivationKeyword))
	} else if vocab.TrimWord(kw) != kw {
		errs = append(errs, fmt.Errorf("vocabulary.activation_keyword %q must not start or end with punctuation", cfg.Vocabulary.ActivationKeyword))
	}
	seen := make(map[string]int, len(cfg.Vocabulary.Words))
	for i, w := range cfg.Vocabulary.Words {
		prefix := fmt.Sprintf("vocabulary.words[%d]", i)
		word := strings.ToLower(strings.TrimSpace(w.Word))
		if word == "" {
			errs = append(errs, fmt.Errorf("%s.word is required", prefix))
			continue
		}
		if vocab.TrimWord(word) != word {
			errs = append(errs, fmt.Errorf("%s.word %q must not start or end with punctuation", prefix, w.Word))
		}
		if prev, ok := seen[word]; ok {
			errs = append(errs, fmt.Errorf("%s.word %q is a duplicate of vocabulary.words[%d]", prefix, w.Word, prev))
		}
		seen[word] = i
	}

	// Phonemes
	if !cfg.Phonemes.Source.IsValid() {
		errs = append(errs, fmt.Errorf("phonemes.source %q is invalid; valid values: builtin, cmudict, sqlite, none", cfg.Phonemes.Source))
	} else if cfg.Phonemes.Source.NeedsPath() && cfg.Phonemes.Path == "" {
		errs = append(errs, fmt.Errorf("phonemes.path is required when source is %s", cfg.Phonemes.Source))
	}

	// Match
	if !cfg.Match.CutoffRegime.IsValid() {
		errs = append(errs, fmt.Errorf("match.cutoff_regime %q is invalid; valid values: loose, strict", cfg.Match.CutoffRegime))
	}
	if cfg.Match.Cutoff < 0 || cfg.Match.Cutoff > 1 {
		errs = append(errs, fmt.Errorf("match.cutoff %.2f is out of range (0, 1]", cfg.Match.Cutoff))
	}
	if !cfg.Match.Metric.IsValid() {
		errs = append(errs, fmt.Errorf("match.metric %q is invalid; valid values: ratio, jaro-winkler", cfg.Match.Metric))
	}

	// Evaluate
	if !cfg.Evaluate.Policy.IsValid() {
		errs = append(errs, fmt.Errorf("evaluate.policy %q is invalid; valid values: first-phoneme, overlap", cfg.Evaluate.Policy))
	}
	if cfg.Evaluate.MinOverlap < 0 || cfg.Evaluate.MinOverlap > 1 {
		errs = append(errs, fmt.Errorf("evaluate.min_overlap %.2f is out of range (0, 1]", cfg.Evaluate.MinOverlap))
	}

	// Feedback
	if d := cfg.Feedback.Settle(); d < 0 {
		errs = append(errs, fmt.Errorf("feedback.settle_delay %v must not be negative", d))
	}
	if sf := cfg.Feedback.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("feedback.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}

	return errors.Join(errs...)
}

func isSpace(r rune) bool { return r == ' ' || r == '\t' || r == '\n' }

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
