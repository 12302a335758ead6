package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sayright/sayright/internal/config"
)

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantSub []string
	}{
		{
			name:    "invalid log level",
			yaml:    "log_level: verbose\n",
			wantSub: []string{"log_level"},
		},
		{
			name: "fallback without name",
			yaml: `
providers:
  tts_fallbacks:
    - base_url: http://x
`,
			wantSub: []string{"tts_fallbacks[0].name"},
		},
		{
			name: "multi-word activation keyword",
			yaml: `
vocabulary:
  activation_keyword: let us begin
`,
			wantSub: []string{"single word"},
		},
		{
			name: "punctuated words",
			yaml: `
vocabulary:
  activation_keyword: begin!
  words:
    - word: "Hello!"
    - word: "'python'"
    - word: "don't"
`,
			wantSub: []string{"activation_keyword", "words[0].word", "words[1].word"},
		},
		{
			name: "duplicate and blank words",
			yaml: `
vocabulary:
  words:
    - word: Hello
    - word: hello
    - hint: no word
`,
			wantSub: []string{"duplicate", "words[2].word is required"},
		},
		{
			name: "phoneme path required",
			yaml: `
phonemes:
  source: sqlite
`,
			wantSub: []string{"phonemes.path"},
		},
		{
			name: "phoneme source invalid",
			yaml: `
phonemes:
  source: espeak
`,
			wantSub: []string{"phonemes.source"},
		},
		{
			name: "match out of range",
			yaml: `
match:
  cutoff_regime: medium
  cutoff: 1.5
  metric: levenshtein
`,
			wantSub: []string{"cutoff_regime", "match.cutoff", "match.metric"},
		},
		{
			name: "evaluate invalid",
			yaml: `
evaluate:
  policy: vibes
  min_overlap: 2
`,
			wantSub: []string{"evaluate.policy", "min_overlap"},
		},
		{
			name: "feedback invalid",
			yaml: `
feedback:
  settle_delay: -1s
  voice:
    speed_factor: 3
`,
			wantSub: []string{"settle_delay", "speed_factor"},
		},
		{
			name: "audio invalid",
			yaml: `
audio:
  channels: 12
`,
			wantSub: []string{"audio.channels"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, sub := range tc.wantSub {
				if !strings.Contains(err.Error(), sub) {
					t.Errorf("error should mention %q, got: %v", sub, err)
				}
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: loud
match:
  metric: hamming
evaluate:
  policy: none
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(err.Error(), "\n") + 1; n != 3 {
		t.Errorf("expected 3 joined errors, got %d: %v", n, err)
	}
}

func TestLoadFromReader_UnknownKeyRejected(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("vocabulary:\n  wrods: []\n"))
	if err == nil || !strings.Contains(err.Error(), "wrods") {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

func TestLoadFromReader_ExpandsEnv(t *testing.T) {
	t.Setenv("SAYRIGHT_TEST_DG_KEY", "from-env")
	cfg, err := config.LoadFromReader(strings.NewReader(`
providers:
  stt:
    name: deepgram
    api_key: ${SAYRIGHT_TEST_DG_KEY}
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.STT.APIKey != "from-env" {
		t.Errorf("api_key = %q, want from-env", cfg.Providers.STT.APIKey)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sayright.yaml")
	if err := os.WriteFile(path, []byte("vocabulary:\n  words:\n    - word: hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Vocabulary.Words) != 1 {
		t.Errorf("words = %+v", cfg.Vocabulary.Words)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SAYRIGHT_TEST_DOTENV=loaded\nSAYRIGHT_TEST_PRESET=file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SAYRIGHT_TEST_PRESET", "shell")
	t.Setenv("SAYRIGHT_TEST_DOTENV", "")
	os.Unsetenv("SAYRIGHT_TEST_DOTENV")

	if err := config.LoadDotEnv(path, filepath.Join(dir, "absent.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("SAYRIGHT_TEST_DOTENV"); got != "loaded" {
		t.Errorf("SAYRIGHT_TEST_DOTENV = %q, want loaded", got)
	}
	if got := os.Getenv("SAYRIGHT_TEST_PRESET"); got != "shell" {
		t.Errorf("existing variable overwritten: %q", got)
	}

	if err := config.LoadDotEnv(filepath.Join(dir, "none.env")); err != nil {
		t.Errorf("missing file should be ignored, got %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"stt", "tts"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}

func TestValidate_InnerApostropheAllowed(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(`
vocabulary:
  words:
    - word: "don't"
    - word: re-enter
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
}

func TestFeedback_SettleDelay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want time.Duration
	}{
		{"unset uses default", "feedback: {print: true}\n", config.DefaultSettleDelay},
		{"explicit zero", "feedback: {settle_delay: 0s}\n", 0},
		{"explicit value", "feedback: {settle_delay: 250ms}\n", 250 * time.Millisecond},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err != nil {
				t.Fatalf("LoadFromReader: %v", err)
			}
			if got := cfg.Feedback.Settle(); got != tc.want {
				t.Errorf("Settle() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluate_IgnoreStress(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("evaluate: {ignore_stress: true}\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if !cfg.Evaluate.IgnoreStress {
		t.Error("evaluate.ignore_stress not decoded")
	}
	if config.Default().Evaluate.IgnoreStress {
		t.Error("stress must be compared literally by default")
	}
}
