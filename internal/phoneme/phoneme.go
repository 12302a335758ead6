// Package phoneme provides pronunciation lookups for the words the program
// hears and the words it trains.
//
// A pronunciation is a [Sequence] of ARPAbet symbols as used by the CMU
// Pronouncing Dictionary (e.g. "HH AH0 L OW1"). Vowel symbols carry a trailing
// stress digit; comparisons that should not care about stress use
// [StripStress] or [Sequence.Symbols].
//
// The [Dictionary] interface is the only contract the rest of the program
// depends on. Implementations in this module:
//
//   - [Memory]: an in-memory map, filled from a CMU dictionary file via
//     [LoadCMU] / [ParseCMU] or from the built-in seed table via [Builtin].
//   - sqlitedict.Dictionary: a SQLite-backed dictionary for the full CMU
//     corpus without loading it into memory.
//
// All implementations must be safe for concurrent use.
package phoneme

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrLookupMiss is returned by [Dictionary.Lookup] when the word has no known
// pronunciation. It is an expected condition, not a failure.
var ErrLookupMiss = errors.New("phoneme: word not in dictionary")

// ErrUnavailable is returned when the dictionary backend itself cannot be
// opened or read.
var ErrUnavailable = errors.New("phoneme: dictionary unavailable")

// Sequence is one pronunciation of a word as an ordered list of ARPAbet
// symbols.
type Sequence []string

// String joins the symbols with single spaces, e.g. "HH AH0 L OW1".
func (s Sequence) String() string {
	return strings.Join(s, " ")
}

// Symbols returns a copy of s with stress markers removed.
func (s Sequence) Symbols() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = StripStress(p)
	}
	return out
}

// StripStress removes the trailing stress marker (0, 1, 2) from an ARPAbet
// symbol. Symbols without a marker are returned unchanged.
func StripStress(symbol string) string {
	if symbol == "" {
		return symbol
	}
	last := symbol[len(symbol)-1]
	if last == '0' || last == '1' || last == '2' {
		return symbol[:len(symbol)-1]
	}
	return symbol
}

// Dictionary maps a word to its known pronunciations.
type Dictionary interface {
	// Lookup returns every known pronunciation of word, primary first.
	// Lookups are case-insensitive. Returns [ErrLookupMiss] when the word is
	// unknown, or an error wrapping [ErrUnavailable] when the backend fails.
	Lookup(ctx context.Context, word string) ([]Sequence, error)
}

// Normalize lowercases and trims a word into its dictionary key form.
func Normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// Memory is an in-memory [Dictionary]. It is read-only after construction and
// safe for concurrent use.
type Memory struct {
	entries map[string][]Sequence
}

// Compile-time interface assertion.
var _ Dictionary = (*Memory)(nil)

// NewMemory returns a Memory dictionary holding entries. Keys are normalised
// with [Normalize]; the map is copied.
func NewMemory(entries map[string][]Sequence) *Memory {
	m := &Memory{entries: make(map[string][]Sequence, len(entries))}
	for w, seqs := range entries {
		key := Normalize(w)
		m.entries[key] = append(m.entries[key], seqs...)
	}
	return m
}

// Lookup implements [Dictionary].
func (m *Memory) Lookup(_ context.Context, word string) ([]Sequence, error) {
	seqs, ok := m.entries[Normalize(word)]
	if !ok || len(seqs) == 0 {
		return nil, ErrLookupMiss
	}
	out := make([]Sequence, len(seqs))
	copy(out, seqs)
	return out, nil
}

// Len returns the number of distinct words in the dictionary.
func (m *Memory) Len() int {
	return len(m.entries)
}

// Words returns all words in the dictionary in lexical order.
func (m *Memory) Words() []string {
	words := make([]string, 0, len(m.entries))
	for w := range m.entries {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
