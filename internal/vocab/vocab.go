// Package vocab holds the target vocabulary: the closed set of words a
// practice session trains, each with an optional human-readable pronunciation
// hint and its canonical phoneme sequences.
//
// A [Vocabulary] is built once by [Load] and is read-only afterwards; it may be
// shared freely between goroutines.
package vocab

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/sayright/sayright/internal/phoneme"
)

// ErrConfiguration is returned when the vocabulary or a resource it needs is
// missing or invalid. It is fatal at startup.
var ErrConfiguration = errors.New("vocab: configuration error")

// ErrPhonemesUnavailable is returned alongside a usable, lexical-only
// [Vocabulary] when the phoneme dictionary cannot be read. Callers log it and
// continue.
var ErrPhonemesUnavailable = fmt.Errorf("%w: phoneme dictionary unavailable", ErrConfiguration)

// Word is one configured target word.
type Word struct {
	Word string
	Hint string
}

// Entry is a loaded vocabulary word. Entries are immutable once returned by
// [Load].
type Entry struct {
	// Word is the lowercase target word.
	Word string

	// Hint is a human-readable pronunciation aid such as "heh-LOH". May be
	// empty.
	Hint string

	// Phonemes holds the canonical pronunciations, primary first. Empty when
	// the dictionary does not know the word or is unavailable.
	Phonemes []phoneme.Sequence
}

// HasPhonemes reports whether at least one non-empty pronunciation is known.
func (e *Entry) HasPhonemes() bool {
	return len(e.Phonemes) > 0 && len(e.Phonemes[0]) > 0
}

// Vocabulary is an ordered, read-only set of entries.
type Vocabulary struct {
	entries     []*Entry
	index       map[string]*Entry
	lexicalOnly bool
}

// DefaultWords returns the built-in practice vocabulary used when the
// configuration lists no words.
func DefaultWords() []Word {
	return []Word{
		{Word: "hello", Hint: "heh-LOH"},
		{Word: "autism", Hint: "AW-tiz-um"},
		{Word: "speech", Hint: "SPEECH"},
		{Word: "recognition", Hint: "rek-ug-NISH-un"},
		{Word: "python", Hint: "PIE-thon"},
		{Word: "therapy", Hint: "THAIR-uh-pee"},
	}
}

// Load builds a Vocabulary from words, performing one phoneme lookup per word
// against dict.
//
// A nil dict yields a lexical-only vocabulary without error. When dict fails
// with anything other than [phoneme.ErrLookupMiss], Load stops querying it and
// returns the lexical-only vocabulary together with an error wrapping
// [ErrPhonemesUnavailable]. An empty list, an empty or multi-token word, a
// word with leading or trailing punctuation, or a duplicate word yields a nil Vocabulary and an error wrapping
// [ErrConfiguration].
func Load(ctx context.Context, words []Word, dict phoneme.Dictionary) (*Vocabulary, error) {
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: vocabulary is empty", ErrConfiguration)
	}

	v := &Vocabulary{
		entries:     make([]*Entry, 0, len(words)),
		index:       make(map[string]*Entry, len(words)),
		lexicalOnly: dict == nil,
	}

	var errs []error
	for i, w := range words {
		word := phoneme.Normalize(w.Word)
		switch {
		case word == "":
			errs = append(errs, fmt.Errorf("words[%d]: word is empty", i))
			continue
		case strings.IndexFunc(word, unicode.IsSpace) >= 0:
			errs = append(errs, fmt.Errorf("words[%d]: %q must be a single word", i, word))
			continue
		case TrimWord(word) != word:
			errs = append(errs, fmt.Errorf("words[%d]: %q must not start or end with punctuation", i, word))
			continue
		}
		if _, dup := v.index[word]; dup {
			errs = append(errs, fmt.Errorf("words[%d]: duplicate word %q", i, word))
			continue
		}
		e := &Entry{Word: word, Hint: strings.TrimSpace(w.Hint)}
		v.entries = append(v.entries, e)
		v.index[word] = e
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}

	if dict == nil {
		return v, nil
	}

	for _, e := range v.entries {
		seqs, err := dict.Lookup(ctx, e.Word)
		if errors.Is(err, phoneme.ErrLookupMiss) {
			slog.Debug("vocab: no phonemes for word", "word", e.Word)
			continue
		}
		if err != nil {
			for _, e := range v.entries {
				e.Phonemes = nil
			}
			v.lexicalOnly = true
			return v, fmt.Errorf("%w: %w", ErrPhonemesUnavailable, err)
		}
		e.Phonemes = seqs
	}
	return v, nil
}

// TrimWord strips everything but letters and digits from both ends of w.
// Inner apostrophes and hyphens are kept, so "don't" and "re-enter" survive.
// Spoken words pass through it before matching, which means a target word
// is only reachable when TrimWord leaves it unchanged.
func TrimWord(w string) string {
	return strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Entries returns the entries in configuration order. The returned slice is a
// copy; the entries themselves are shared and must not be modified.
func (v *Vocabulary) Entries() []*Entry {
	out := make([]*Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Lookup returns the entry for word (case-insensitive).
func (v *Vocabulary) Lookup(word string) (*Entry, bool) {
	e, ok := v.index[phoneme.Normalize(word)]
	return e, ok
}

// Words returns the target words in configuration order.
func (v *Vocabulary) Words() []string {
	out := make([]string, len(v.entries))
	for i, e := range v.entries {
		out[i] = e.Word
	}
	return out
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int { return len(v.entries) }

// LexicalOnly reports whether the vocabulary was loaded without phoneme data.
func (v *Vocabulary) LexicalOnly() bool { return v.lexicalOnly }
