// Package session implements the practice session state machine.
//
// A session starts in [AwaitingActivation] and moves to [Active] once an
// utterance contains the activation keyword. The activating utterance itself
// never produces feedback. While active, every word of an utterance is, in
// order, matched against the vocabulary, evaluated, rendered and presented
// through a [feedback.Sink]. A word equal to the previously dispatched word
// is skipped, so "hello hello" yields one message. The activation keyword
// is also skipped while active, without feedback, unless it is itself a
// vocabulary word; saying "begin" again mid-session is not an error.
//
// Utterances are processed strictly one at a time: [Session.Run] does not
// read the next utterance until presentation of the previous one, settle
// delay included, has returned.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sayright/sayright/internal/evaluate"
	"github.com/sayright/sayright/internal/feedback"
	"github.com/sayright/sayright/internal/match"
	"github.com/sayright/sayright/internal/observe"
	"github.com/sayright/sayright/internal/vocab"
)

// ErrRecognitionUnavailable is returned by [Session.Run] when the utterance
// stream ends. The recogniser is not retried.
var ErrRecognitionUnavailable = errors.New("session: recognition unavailable")

// DefaultActivationKeyword is the word that activates a session.
const DefaultActivationKeyword = "begin"

// State is the session state.
type State int

const (
	AwaitingActivation State = iota
	Active
)

// String returns the snake_case name of s.
func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "awaiting_activation"
}

// Utterance is one finalised segment of recognised speech.
type Utterance struct {
	Text string
}

// Option is a functional option for configuring a [Session].
type Option func(*Session)

// WithActivationKeyword overrides [DefaultActivationKeyword].
func WithActivationKeyword(keyword string) Option {
	return func(s *Session) {
		if k := strings.ToLower(strings.TrimSpace(keyword)); k != "" {
			s.keyword = k
		}
	}
}

// WithCutoff sets the match acceptance cutoff. Default: [match.LooseCutoff].
func WithCutoff(cutoff float64) Option {
	return func(s *Session) {
		if cutoff > 0 && cutoff <= 1 {
			s.cutoff = cutoff
		}
	}
}

// WithMetrics records session metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithTranscript echoes every recognised utterance to w as "You said: …".
func WithTranscript(w io.Writer) Option {
	return func(s *Session) { s.transcript = w }
}

// Session is a single practice session. Handle and Run must not be called
// concurrently; the accessors may be called from any goroutine.
type Session struct {
	vocab     *vocab.Vocabulary
	entries   []*vocab.Entry
	matcher   *match.Matcher
	evaluator *evaluate.Evaluator
	sink      feedback.Sink

	keyword    string
	cutoff     float64
	metrics    *observe.Metrics
	transcript io.Writer

	mu       sync.Mutex
	state    State
	lastWord string
}

// New returns a session in [AwaitingActivation].
func New(v *vocab.Vocabulary, m *match.Matcher, e *evaluate.Evaluator, sink feedback.Sink, opts ...Option) *Session {
	s := &Session{
		vocab:     v,
		entries:   v.Entries(),
		matcher:   m,
		evaluator: e,
		sink:      sink,
		keyword:   DefaultActivationKeyword,
		cutoff:    match.LooseCutoff,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastWord returns the most recently dispatched word, or "".
func (s *Session) LastWord() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWord
}

// ActivationKeyword returns the configured activation keyword.
func (s *Session) ActivationKeyword() string { return s.keyword }

// Tokenize lowercases text and splits it into words trimmed with
// [vocab.TrimWord].
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		if w := vocab.TrimWord(f); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Handle processes one utterance to completion. It returns an error only when
// ctx is cancelled during feedback presentation; per-word problems resolve to
// an outcome and never abort the session.
func (s *Session) Handle(ctx context.Context, u Utterance) error {
	words := Tokenize(u.Text)
	if len(words) == 0 {
		observe.Logger(ctx).Debug("session: no speech detected")
		return nil
	}

	ctx, span := observe.StartSpan(ctx, "session.utterance")
	defer span.End()
	log := observe.Logger(ctx)

	if s.transcript != nil {
		fmt.Fprintf(s.transcript, "You said: %s\n", strings.Join(words, " "))
	}

	state := s.State()
	if s.metrics != nil {
		s.metrics.RecordUtterance(ctx, state.String())
	}
	span.SetAttributes(attribute.String("state", state.String()), attribute.Int("words", len(words)))

	if state == AwaitingActivation {
		if !slices.Contains(words, s.keyword) {
			log.Debug("session: waiting for activation keyword", "keyword", s.keyword, "text", u.Text)
			return nil
		}
		s.mu.Lock()
		s.state = Active
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.RecordActivation(ctx)
		}
		log.Info("session activated", "keyword", s.keyword)
		return nil
	}

	for _, w := range words {
		if err := s.dispatch(ctx, w); err != nil {
			return err
		}
	}
	return nil
}

// dispatch evaluates and presents one word of an active session.
func (s *Session) dispatch(ctx context.Context, word string) error {
	log := observe.Logger(ctx)

	if word == s.LastWord() {
		log.Debug("session: skipping repeated word", "word", word)
		if s.metrics != nil {
			s.metrics.RecordSkippedDuplicate(ctx)
		}
		return nil
	}
	if word == s.keyword {
		if _, isTarget := s.vocab.Lookup(word); !isTarget {
			log.Debug("session: ignoring activation keyword", "word", word)
			return nil
		}
	}

	result := s.matcher.FindClosest(word, s.entries, s.cutoff)
	outcome := s.evaluator.Evaluate(ctx, word, result)
	message := feedback.Render(outcome, s.vocab)
	log.Info("session: word evaluated",
		"word", word,
		"match", result.String(),
		"outcome", outcome.Kind.String(),
	)

	start := time.Now()
	if err := s.sink.Present(ctx, message); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("session: feedback presentation failed", "word", word, "err", err)
	}
	if s.metrics != nil {
		s.metrics.RecordDispatch(ctx, outcome.Kind.String(), time.Since(start))
	}

	s.mu.Lock()
	s.lastWord = word
	s.mu.Unlock()
	return nil
}

// Run consumes utterances one at a time until ctx is cancelled or in is
// closed. Cancellation is checked between utterances and returns ctx.Err().
// A closed channel returns [ErrRecognitionUnavailable].
func (s *Session) Run(ctx context.Context, in <-chan Utterance) error {
	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
		defer s.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-in:
			if !ok {
				return ErrRecognitionUnavailable
			}
			if err := s.Handle(ctx, u); err != nil {
				return err
			}
		}
	}
}
