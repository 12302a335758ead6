package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/sayright/sayright/internal/evaluate"
	"github.com/sayright/sayright/internal/feedback"
	"github.com/sayright/sayright/internal/match"
	"github.com/sayright/sayright/internal/phoneme"
	"github.com/sayright/sayright/internal/vocab"
)

// LookupResult describes how a single word would be judged in a session.
type LookupResult struct {
	Word string

	// Phonemes are the dictionary pronunciations of Word. Empty when the
	// word is unknown or the app runs lexical-only.
	Phonemes []phoneme.Sequence

	Match   match.Result
	Outcome evaluate.Outcome

	// Message is the feedback a session would present.
	Message string

	// SoundsAlike lists vocabulary words sharing a Double Metaphone code with
	// Word.
	SoundsAlike []string
}

// Lookup matches and evaluates word against the vocabulary without touching
// audio or session state.
func (a *App) Lookup(ctx context.Context, word string) (LookupResult, error) {
	word = vocab.TrimWord(phoneme.Normalize(word))
	if word == "" {
		return LookupResult{}, errors.New("app: empty word")
	}

	res := LookupResult{Word: word}
	if a.dict != nil {
		seqs, err := a.dict.Lookup(ctx, word)
		switch {
		case errors.Is(err, phoneme.ErrLookupMiss):
		case err != nil:
			return LookupResult{}, fmt.Errorf("app: lookup %q: %w", word, err)
		default:
			res.Phonemes = seqs
		}
	}

	res.Match = a.matcher.FindClosest(word, a.vocab.Entries(), a.cfg.Match.EffectiveCutoff())
	res.Outcome = a.evaluator.Evaluate(ctx, word, res.Match)
	res.Message = feedback.Render(res.Outcome, a.vocab)
	for _, w := range a.vocab.Words() {
		if w != word && match.SoundsAlike(word, w) {
			res.SoundsAlike = append(res.SoundsAlike, w)
		}
	}
	return res, nil
}
