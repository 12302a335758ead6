// Package text provides an STT provider that reads already-transcribed
// utterances from a text stream, one per line. It lets a practice session be
// scripted or driven from a terminal without a microphone or a recognition
// server. Audio passed to the session is discarded.
package text

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sayright/sayright/pkg/provider/stt"
)

var errClosed = errors.New("text: session is closed")

// Provider implements stt.Provider over an io.Reader.
type Provider struct {
	mu      sync.Mutex
	r       io.Reader
	started bool
}

var _ stt.Provider = (*Provider)(nil)

// New returns a Provider reading lines from r. r is consumed by the first
// session; starting a second session fails.
func New(r io.Reader) *Provider {
	return &Provider{r: r}
}

// StartStream starts reading lines. Each non-blank line becomes one final
// transcript. The Finals channel is closed when the reader is exhausted.
func (p *Provider) StartStream(ctx context.Context, _ stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("text: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil, errors.New("text: input already consumed by another session")
	}
	p.started = true

	s := &session{
		lines:    make(chan string),
		partials: make(chan stt.Transcript),
		finals:   make(chan stt.Transcript),
		done:     make(chan struct{}),
	}
	go s.scan(p.r)
	s.wg.Add(1)
	go s.forward(ctx)
	return s, nil
}

type session struct {
	lines    chan string
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// scan reads lines until EOF. A blocking Read on the underlying reader cannot
// be interrupted, so after Close this goroutine exits on the next line.
func (s *session) scan(r io.Reader) {
	defer close(s.lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case s.lines <- sc.Text():
		case <-s.done:
			return
		}
	}
}

func (s *session) forward(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case line, ok := <-s.lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			t := stt.Transcript{Text: line, IsFinal: true, Confidence: 1, Timestamp: time.Since(start)}
			select {
			case s.finals <- t:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// SendAudio discards chunk.
func (s *session) SendAudio([]byte) error {
	select {
	case <-s.done:
		return errClosed
	default:
		return nil
	}
}

// Partials never emits; it is closed with the session.
func (s *session) Partials() <-chan stt.Transcript { return s.partials }

// Finals emits one transcript per non-blank input line.
func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// SetKeywords is accepted and ignored: the text is already transcribed.
func (s *session) SetKeywords([]stt.KeywordBoost) error { return nil }

// Close stops the session and closes both channels.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}
