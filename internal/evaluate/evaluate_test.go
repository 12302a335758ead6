package evaluate_test

import (
	"context"
	"math"
	"testing"

	"github.com/sayright/sayright/internal/evaluate"
	"github.com/sayright/sayright/internal/match"
	"github.com/sayright/sayright/internal/phoneme"
	"github.com/sayright/sayright/internal/vocab"
)

type brokenDict struct{}

func (brokenDict) Lookup(context.Context, string) ([]phoneme.Sequence, error) {
	return nil, phoneme.ErrUnavailable
}

func loadDefault(t *testing.T) *vocab.Vocabulary {
	t.Helper()
	v, err := vocab.Load(context.Background(), vocab.DefaultWords(), phoneme.Builtin())
	if err != nil {
		t.Fatalf("vocab.Load: %v", err)
	}
	return v
}

func evaluateWord(t *testing.T, ev *evaluate.Evaluator, v *vocab.Vocabulary, word string) evaluate.Outcome {
	t.Helper()
	r := match.New().FindClosest(word, v.Entries(), match.LooseCutoff)
	return ev.Evaluate(context.Background(), word, r)
}

func TestEvaluate_ExactWordsAreCorrect(t *testing.T) {
	t.Parallel()

	v := loadDefault(t)
	ev := evaluate.New(phoneme.Builtin())
	for _, w := range v.Words() {
		got := evaluateWord(t, ev, v, w)
		if got.Kind != evaluate.Correct || got.Target != w {
			t.Errorf("Evaluate(%q) = %v, want correct", w, got)
		}
	}
}

func TestEvaluate_NoMatchIsUnrecognized(t *testing.T) {
	t.Parallel()

	got := evaluate.New(phoneme.Builtin()).Evaluate(context.Background(), "zzz", match.Result{})
	if got.Kind != evaluate.Unrecognized || got.Target != "" || got.Spoken != "zzz" {
		t.Errorf("got %+v", got)
	}
}

func TestEvaluate_FirstPhonemePolicy(t *testing.T) {
	t.Parallel()

	v := loadDefault(t)
	ev := evaluate.New(phoneme.Builtin())

	tests := []struct {
		spoken       string
		wantKind     evaluate.Kind
		wantTarget   string
		wantHint     string
		wantExpected string
	}{
		// HH occurs in HH AH0 L OW1.
		{"hollow", evaluate.Close, "hello", "heh-LOH", ""},
		// Y does not.
		{"yellow", evaluate.Mispronounced, "hello", "", "HH AH0 L OW1"},
		// S occurs in S P IY1 CH.
		{"speach", evaluate.Close, "speech", "SPEECH", ""},
		// T does not occur in TH EH1 R AH0 P IY0.
		{"terrapin", evaluate.Mispronounced, "therapy", "", "TH EH1 R AH0 P IY0"},
	}
	for _, tt := range tests {
		got := evaluateWord(t, ev, v, tt.spoken)
		if got.Kind != tt.wantKind || got.Target != tt.wantTarget {
			t.Errorf("Evaluate(%q) = %v, want %s→%s", tt.spoken, got, tt.wantKind, tt.wantTarget)
			continue
		}
		if got.Hint != tt.wantHint {
			t.Errorf("Evaluate(%q).Hint = %q, want %q", tt.spoken, got.Hint, tt.wantHint)
		}
		if got.Expected.String() != tt.wantExpected {
			t.Errorf("Evaluate(%q).Expected = %q, want %q", tt.spoken, got.Expected, tt.wantExpected)
		}
	}
}

func TestEvaluate_FirstPhonemeStress(t *testing.T) {
	t.Parallel()

	dict := phoneme.NewMemory(map[string][]phoneme.Sequence{
		"ubove": {{"AH2", "B", "OW1", "V"}},
	})
	entry := &vocab.Entry{Word: "above", Hint: "uh-BUV", Phonemes: []phoneme.Sequence{{"AH0", "B", "AH1", "V"}}}
	r := match.Result{Entry: entry, Score: 0.8}

	tests := []struct {
		name string
		opts []evaluate.Option
		want evaluate.Kind
	}{
		{"literal by default", nil, evaluate.Mispronounced},
		{"ignore stress", []evaluate.Option{evaluate.WithIgnoreStress(true)}, evaluate.Close},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := evaluate.New(dict, tt.opts...).Evaluate(context.Background(), "ubove", r)
			if got.Kind != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_OverlapPolicy(t *testing.T) {
	t.Parallel()

	v := loadDefault(t)

	strict := evaluate.New(phoneme.Builtin(), evaluate.WithPolicy(evaluate.PolicyOverlap))
	if got := evaluateWord(t, strict, v, "yellow"); got.Kind != evaluate.Mispronounced {
		t.Errorf("overlap 0.6: yellow = %v, want mispronounced", got)
	}

	lenient := evaluate.New(phoneme.Builtin(),
		evaluate.WithPolicy(evaluate.PolicyOverlap),
		evaluate.WithMinOverlap(0.5))
	if got := evaluateWord(t, lenient, v, "yellow"); got.Kind != evaluate.Close || got.Hint != "heh-LOH" {
		t.Errorf("overlap 0.5: yellow = %v, want close", got)
	}
}

func TestEvaluate_FallbackWithoutPhonemes(t *testing.T) {
	t.Parallel()

	withHint := &vocab.Entry{Word: "hello", Hint: "heh-LOH", Phonemes: []phoneme.Sequence{{"HH", "AH0", "L", "OW1"}}}
	noHint := &vocab.Entry{Word: "hello"}

	tests := []struct {
		name     string
		dict     phoneme.Dictionary
		entry    *vocab.Entry
		wantKind evaluate.Kind
		wantHint string
	}{
		{"spoken word unknown, hint", phoneme.Builtin(), withHint, evaluate.Close, "heh-LOH"},
		{"spoken word unknown, no hint", phoneme.Builtin(), noHint, evaluate.Mispronounced, ""},
		{"no dictionary", nil, withHint, evaluate.Close, "heh-LOH"},
		{"dictionary failing", brokenDict{}, withHint, evaluate.Close, "heh-LOH"},
		{"dictionary failing, no hint", brokenDict{}, noHint, evaluate.Mispronounced, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := match.Result{Entry: tt.entry, Score: 8.0 / 9.0}
			got := evaluate.New(tt.dict).Evaluate(context.Background(), "helo", r)
			if got.Kind != tt.wantKind || got.Hint != tt.wantHint {
				t.Errorf("got %+v, want %s hint %q", got, tt.wantKind, tt.wantHint)
			}
			if len(got.Expected) != 0 {
				t.Errorf("fallback must carry no phoneme detail, got %q", got.Expected)
			}
		})
	}
}

func TestSymbolOverlap(t *testing.T) {
	t.Parallel()

	a := phoneme.Sequence{"Y", "EH1", "L", "OW0"}
	b := phoneme.Sequence{"HH", "AH0", "L", "OW1"}
	if got := evaluate.SymbolOverlap(a, b); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("SymbolOverlap = %v, want 0.5", got)
	}
	if got := evaluate.SymbolOverlap(b, b); got != 1 {
		t.Errorf("self overlap = %v, want 1", got)
	}
}

func TestKindString(t *testing.T) {
	t.Parallel()

	want := map[evaluate.Kind]string{
		evaluate.Correct:       "correct",
		evaluate.Close:         "close",
		evaluate.Mispronounced: "mispronounced",
		evaluate.Unrecognized:  "unrecognized",
	}
	for k, s := range want {
		if k.String() != s {
			t.Errorf("%d.String() = %q, want %q", k, k.String(), s)
		}
	}
}
