// Package evaluate classifies a recognised word against its closest
// vocabulary match.
//
// The decision order is fixed:
//
//  1. No match: [Unrecognized].
//  2. Exact match: [Correct].
//  3. Both the spoken word and the target have phonemes: the configured
//     [Policy] decides between [Close] and [Mispronounced].
//  4. Phonemes missing on either side: [Close] when the target has a hint,
//     otherwise [Mispronounced] without phoneme detail.
//
// Evaluation never fails. Dictionary errors are logged and treated as missing
// data.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sayright/sayright/internal/match"
	"github.com/sayright/sayright/internal/phoneme"
)

// Kind is the classification of a spoken word.
type Kind int

const (
	Unrecognized Kind = iota
	Correct
	Close
	Mispronounced
)

// String returns the lowercase name of k.
func (k Kind) String() string {
	switch k {
	case Correct:
		return "correct"
	case Close:
		return "close"
	case Mispronounced:
		return "mispronounced"
	default:
		return "unrecognized"
	}
}

// Outcome is the result of evaluating one spoken word.
type Outcome struct {
	Kind Kind

	// Spoken is the word as recognised.
	Spoken string

	// Target is the matched vocabulary word. Empty for [Unrecognized].
	Target string

	// Hint is the target's pronunciation hint, if any. Set for [Close].
	Hint string

	// Expected is the target's primary pronunciation. Set for
	// [Mispronounced] when phoneme data exists.
	Expected phoneme.Sequence
}

// Policy names a phoneme comparison rule used in step 3.
type Policy string

const (
	// PolicyFirstPhoneme classifies as Close when the first symbol of the
	// spoken pronunciation occurs anywhere in the target pronunciation.
	// Symbols compare literally, so "AH0" and "AH1" differ, unless
	// [WithIgnoreStress] is set.
	PolicyFirstPhoneme Policy = "first-phoneme"

	// PolicyOverlap classifies as Close when the LCS ratio of the two symbol
	// sequences reaches the configured minimum overlap.
	PolicyOverlap Policy = "overlap"
)

// IsValid reports whether p is a known policy.
func (p Policy) IsValid() bool {
	return p == PolicyFirstPhoneme || p == PolicyOverlap
}

const defaultMinOverlap = 0.6

// Option is a functional option for configuring an [Evaluator].
type Option func(*Evaluator)

// WithPolicy sets the phoneme comparison policy. Default: first-phoneme.
func WithPolicy(p Policy) Option {
	return func(e *Evaluator) {
		if p.IsValid() {
			e.policy = p
		}
	}
}

// WithMinOverlap sets the threshold used by [PolicyOverlap]. Default: 0.6.
func WithMinOverlap(v float64) Option {
	return func(e *Evaluator) {
		if v > 0 && v <= 1 {
			e.minOverlap = v
		}
	}
}

// WithIgnoreStress makes [PolicyFirstPhoneme] compare vowels without their
// stress digit. Default: false.
func WithIgnoreStress(ignore bool) Option {
	return func(e *Evaluator) { e.ignoreStress = ignore }
}

// Evaluator classifies spoken words. It holds no mutable state and is safe
// for concurrent use.
type Evaluator struct {
	dict       phoneme.Dictionary
	policy       Policy
	minOverlap   float64
	ignoreStress bool
}

// New returns an Evaluator that looks up spoken words in dict. A nil dict
// puts the evaluator in lexical-only mode.
func New(dict phoneme.Dictionary, opts ...Option) *Evaluator {
	e := &Evaluator{
		dict:       dict,
		policy:     PolicyFirstPhoneme,
		minOverlap: defaultMinOverlap,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Policy returns the configured policy.
func (e *Evaluator) Policy() Policy { return e.policy }

// Evaluate classifies spoken against its match result.
func (e *Evaluator) Evaluate(ctx context.Context, spoken string, result match.Result) Outcome {
	out := Outcome{Spoken: spoken}
	if result.Entry == nil {
		return out
	}
	entry := result.Entry
	out.Target = entry.Word

	if result.Exact {
		out.Kind = Correct
		return out
	}

	spokenSeq := e.primary(ctx, spoken)
	if entry.HasPhonemes() && len(spokenSeq) > 0 {
		target := entry.Phonemes[0]
		if e.close(spokenSeq, target) {
			out.Kind = Close
			out.Hint = entry.Hint
			return out
		}
		out.Kind = Mispronounced
		out.Expected = target
		return out
	}

	if entry.Hint != "" {
		out.Kind = Close
		out.Hint = entry.Hint
		return out
	}
	out.Kind = Mispronounced
	return out
}

// primary returns the first known pronunciation of word, or nil.
func (e *Evaluator) primary(ctx context.Context, word string) phoneme.Sequence {
	if e.dict == nil {
		return nil
	}
	seqs, err := e.dict.Lookup(ctx, word)
	switch {
	case errors.Is(err, phoneme.ErrLookupMiss):
		slog.Debug("evaluate: no phonemes for spoken word", "word", word)
		return nil
	case err != nil:
		slog.Warn("evaluate: phoneme lookup failed", "word", word, "err", err)
		return nil
	case len(seqs) == 0:
		return nil
	}
	return seqs[0]
}

func (e *Evaluator) close(spoken, target phoneme.Sequence) bool {
	switch e.policy {
	case PolicyOverlap:
		return SymbolOverlap(spoken, target) >= e.minOverlap
	default:
		symbol := func(s string) string { return s }
		if e.ignoreStress {
			symbol = phoneme.StripStress
		}
		first := symbol(spoken[0])
		return slices.ContainsFunc(target, func(p string) bool { return symbol(p) == first })
	}
}

// SymbolOverlap returns the LCS ratio of two pronunciations compared symbol
// by symbol, ignoring stress.
func SymbolOverlap(a, b phoneme.Sequence) float64 {
	alphabet := make(map[string]rune)
	encode := func(seq phoneme.Sequence) string {
		rs := make([]rune, len(seq))
		for i, p := range seq {
			sym := phoneme.StripStress(p)
			r, ok := alphabet[sym]
			if !ok {
				// Private use area: one rune per distinct symbol.
				r = rune(0xE000 + len(alphabet))
				alphabet[sym] = r
			}
			rs[i] = r
		}
		return string(rs)
	}
	return match.Ratio(encode(a), encode(b))
}

// String renders o for logs.
func (o Outcome) String() string {
	if o.Kind == Unrecognized {
		return fmt.Sprintf("%s(%q)", o.Kind, o.Spoken)
	}
	return fmt.Sprintf("%s(%q→%q)", o.Kind, o.Spoken, o.Target)
}
