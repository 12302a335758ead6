package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultChunkDuration = 100 * time.Millisecond

// Source produces captured audio.
type Source interface {
	// Start begins capture and returns the frame channel. The channel is
	// closed when capture ends: on ctx cancellation, on end of input, or on
	// a read failure. Start may be called once.
	Start(ctx context.Context) (<-chan Frame, error)

	// Format returns the format of produced frames.
	Format() Format

	// Close stops capture and releases resources. It returns the terminal
	// capture error, if any. Safe to call more than once.
	Close() error
}

// SourceOption configures a [ReaderSource] or [CommandSource].
type SourceOption func(*sourceConfig)

type sourceConfig struct {
	chunk time.Duration
}

// WithChunkDuration sets the duration of audio carried by each frame.
// Default: 100 ms.
func WithChunkDuration(d time.Duration) SourceOption {
	return func(c *sourceConfig) {
		if d > 0 {
			c.chunk = d
		}
	}
}

func newSourceConfig(opts []SourceOption) sourceConfig {
	c := sourceConfig{chunk: defaultChunkDuration}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// chunkBytes returns the frame size for d, aligned to whole sample frames.
func chunkBytes(f Format, d time.Duration) int {
	align := 2 * max(f.Channels, 1)
	n := int(int64(f.BytesPerSecond()) * int64(d) / int64(time.Second))
	n -= n % align
	return max(n, align)
}

// readFrames reads fixed-size chunks from r and sends them on out until EOF,
// a read error, or ctx cancellation. A trailing partial chunk is sent after
// trimming to sample alignment. EOF and a closed reader are not errors.
func readFrames(ctx context.Context, r io.Reader, f Format, size int, out chan<- Frame) error {
	align := 2 * max(f.Channels, 1)
	var offset int
	for {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)
		n -= n % align
		if n > 0 {
			frame := Frame{Data: buf[:n], Format: f, Timestamp: f.Duration(offset)}
			offset += n
			select {
			case out <- frame:
			case <-ctx.Done():
				return nil
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
			errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed):
			return nil
		default:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("audio: read: %w", err)
		}
	}
}

// ReaderSource captures PCM from an io.Reader, e.g. a FIFO or a recorded
// file.
type ReaderSource struct {
	r      io.Reader
	format Format
	cfg    sourceConfig

	mu   sync.Mutex
	err  error
	done chan struct{}
}

var _ Source = (*ReaderSource)(nil)

// NewReaderSource returns a Source reading PCM in format from r.
func NewReaderSource(r io.Reader, format Format, opts ...SourceOption) *ReaderSource {
	return &ReaderSource{r: r, format: format, cfg: newSourceConfig(opts)}
}

// Format implements [Source].
func (s *ReaderSource) Format() Format { return s.format }

// Start implements [Source].
func (s *ReaderSource) Start(ctx context.Context) (<-chan Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil, errors.New("audio: source already started")
	}
	s.done = make(chan struct{})
	out := make(chan Frame, 8)
	go func() {
		defer close(s.done)
		defer close(out)
		err := readFrames(ctx, s.r, s.format, chunkBytes(s.format, s.cfg.chunk), out)
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}()
	return out, nil
}

// Close implements [Source]. It closes the reader when it is an io.Closer and
// waits for the capture goroutine to exit.
func (s *ReaderSource) Close() error {
	var closeErr error
	if c, ok := s.r.(io.Closer); ok {
		closeErr = c.Close()
	}
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return closeErr
}

// CommandSource captures PCM from the standard output of an external command
// such as "arecord -q -f S16_LE -r 16000 -c 1 -t raw".
type CommandSource struct {
	argv   []string
	format Format
	cfg    sourceConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	stderr bytes.Buffer
}

var _ Source = (*CommandSource)(nil)

// NewCommandSource returns a Source that runs argv and reads PCM in format
// from its stdout.
func NewCommandSource(argv []string, format Format, opts ...SourceOption) *CommandSource {
	return &CommandSource{argv: argv, format: format, cfg: newSourceConfig(opts)}
}

// Format implements [Source].
func (s *CommandSource) Format() Format { return s.format }

// Start implements [Source]. It fails when the command cannot be started.
func (s *CommandSource) Start(ctx context.Context) (<-chan Frame, error) {
	if len(s.argv) == 0 {
		return nil, errors.New("audio: capture command is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil, errors.New("audio: source already started")
	}

	cctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cctx, s.argv[0], s.argv[1:]...)
	cmd.Stderr = &s.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("audio: capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("audio: start %q: %w", s.argv[0], err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})
	out := make(chan Frame, 8)
	go func() {
		defer close(s.done)
		defer close(out)
		readErr := readFrames(cctx, stdout, s.format, chunkBytes(s.format, s.cfg.chunk), out)
		waitErr := cmd.Wait()

		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case readErr != nil:
			s.err = readErr
		case waitErr != nil && cctx.Err() == nil:
			s.err = fmt.Errorf("audio: capture command %q exited: %w: %s",
				s.argv[0], waitErr, strings.TrimSpace(s.stderr.String()))
		}
	}()
	return out, nil
}

// Close implements [Source]. It stops the command and waits for it to exit.
func (s *CommandSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
