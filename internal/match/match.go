// Package match finds the vocabulary entry closest to an arbitrary recognised
// word.
//
// Similarity is a normalised score in [0, 1]. Two metrics are available:
//
//   - [MetricRatio] (default): 2·LCS(a, b) / (|a| + |b|), where LCS is the
//     longest common subsequence of the lowercase runes of both words.
//   - [MetricJaroWinkler]: standard Jaro-Winkler similarity.
//
// The best-scoring entry wins when its score reaches the cutoff. Ties keep
// the entry that appears first in the vocabulary. An exact
// (case-insensitive) hit always wins with score 1.
//
// Besides the score, each [Result] records whether the two words share a
// Double Metaphone code, which callers use for diagnostics only.
package match

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/sayright/sayright/internal/vocab"
)

// Metric names a similarity function.
type Metric string

const (
	// MetricRatio is the LCS-based ratio. This is the default.
	MetricRatio Metric = "ratio"

	// MetricJaroWinkler is Jaro-Winkler similarity.
	MetricJaroWinkler Metric = "jaro-winkler"
)

// IsValid reports whether m is a known metric.
func (m Metric) IsValid() bool {
	return m == MetricRatio || m == MetricJaroWinkler
}

// Regime is a named acceptance cutoff.
type Regime string

const (
	// Loose accepts broad suggestions (cutoff 0.5).
	Loose Regime = "loose"

	// Strict accepts only close matches (cutoff 0.7), for use when a phoneme
	// level follow-up evaluation is wanted.
	Strict Regime = "strict"
)

const (
	LooseCutoff  = 0.5
	StrictCutoff = 0.7
)

// IsValid reports whether r is a known regime.
func (r Regime) IsValid() bool {
	return r == Loose || r == Strict
}

// Cutoff returns the cutoff for r. Unknown regimes fall back to [LooseCutoff].
func (r Regime) Cutoff() float64 {
	if r == Strict {
		return StrictCutoff
	}
	return LooseCutoff
}

// Result is the outcome of [Matcher.FindClosest].
type Result struct {
	// Entry is the closest entry, or nil when nothing reached the cutoff.
	Entry *vocab.Entry

	// Exact is true when the word equals Entry.Word case-insensitively.
	Exact bool

	// Score is Entry's similarity score. Zero when Entry is nil.
	Score float64

	// SoundsAlike is true when the word and Entry.Word share a Double
	// Metaphone code.
	SoundsAlike bool
}

// Matched reports whether an entry was found.
func (r Result) Matched() bool { return r.Entry != nil }

// String renders r for logs.
func (r Result) String() string {
	if r.Entry == nil {
		return "no match"
	}
	return fmt.Sprintf("%s (score=%.2f exact=%t)", r.Entry.Word, r.Score, r.Exact)
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithMetric selects the similarity metric. Unknown metrics are ignored.
func WithMetric(metric Metric) Option {
	return func(m *Matcher) {
		if metric.IsValid() {
			m.metric = metric
		}
	}
}

// Matcher scores words against vocabulary entries. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	metric Metric
}

// New returns a [Matcher] configured with opts. The default metric is
// [MetricRatio].
func New(opts ...Option) *Matcher {
	m := &Matcher{metric: MetricRatio}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Metric returns the configured metric.
func (m *Matcher) Metric() Metric { return m.metric }

// FindClosest returns the entry of entries most similar to word whose score is
// at least cutoff. A zero Result means no entry qualified; this is not an
// error.
func (m *Matcher) FindClosest(word string, entries []*vocab.Entry, cutoff float64) Result {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" || len(entries) == 0 {
		return Result{}
	}

	var (
		best      *vocab.Entry
		bestScore float64
	)
	for _, e := range entries {
		if e == nil {
			continue
		}
		target := strings.ToLower(e.Word)
		if target == w {
			return Result{Entry: e, Exact: true, Score: 1, SoundsAlike: true}
		}
		s := m.Score(w, target)
		if s >= cutoff && (best == nil || s > bestScore) {
			best, bestScore = e, s
		}
	}
	if best == nil {
		return Result{}
	}
	return Result{
		Entry:       best,
		Score:       bestScore,
		SoundsAlike: SoundsAlike(w, best.Word),
	}
}

// Score returns the similarity of a and b under the configured metric.
// Comparison is case-insensitive.
func (m *Matcher) Score(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if m.metric == MetricJaroWinkler {
		if a == b {
			return 1
		}
		return matchr.JaroWinkler(a, b, false)
	}
	return Ratio(a, b)
}

// Ratio returns 2·LCS(a, b) / (|a| + |b|) over runes. Two empty strings are
// identical (ratio 1).
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchr.LongestCommonSubsequence(a, b)) / float64(total)
}

// SoundsAlike reports whether a and b share a Double Metaphone code.
// Words too short to produce a code never sound alike.
func SoundsAlike(a, b string) bool {
	ca := codes(strings.ToLower(a))
	cb := codes(strings.ToLower(b))
	for c := range ca {
		if _, ok := cb[c]; ok {
			return true
		}
	}
	return false
}

// codes returns the non-empty Double Metaphone codes of word.
func codes(word string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		out[p] = struct{}{}
	}
	if s != "" {
		out[s] = struct{}{}
	}
	return out
}
